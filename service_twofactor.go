package gatekeeper

import (
	"context"
	"fmt"

	"github.com/dkrasnov/gatekeeper/internal/common"
	"github.com/dkrasnov/gatekeeper/internal/twofactor"
)

// BeginTwoFactorSetup generates a fresh TOTP secret for the user and
// returns the provisioning material. The secret overwrites any previous
// unconfirmed one; 2FA stays disabled until ConfirmTwoFactorSetup sees a
// valid code.
func (s *Service) BeginTwoFactorSetup(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user.TwoFactorEnabled {
		return nil, common.ErrTwoFactorAlreadyEnabled
	}

	secret, err := twofactor.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}
	user.TwoFactorSecret = secret
	if _, err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}

	setup := &TwoFactorSetup{
		Data: ProvisioningData{
			Label:         user.Email,
			Issuer:        s.cfg.AppName,
			Secret:        secret,
			Algorithm:     "SHA512",
			Digits:        twofactor.Digits,
			PeriodSeconds: int(twofactor.Period.Seconds()),
		},
	}

	if s.qr != nil {
		img, mime, err := s.qr.Render(setup.Data)
		if err != nil {
			return nil, fmt.Errorf("rendering qr code: %w", err)
		}
		setup.QRImage = img
		setup.QRMimeType = mime
	}
	return setup, nil
}

// MailTwoFactorSecret regenerates the pending TOTP secret and mails it to
// the user for manual authenticator entry. Unlike notification mail this
// delivery is the point of the operation, so a send failure is returned.
func (s *Service) MailTwoFactorSecret(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if user.TwoFactorEnabled {
		return common.ErrTwoFactorAlreadyEnabled
	}
	if s.mail == nil {
		return fmt.Errorf("no mail sender configured")
	}

	secret, err := twofactor.GenerateSecret()
	if err != nil {
		return fmt.Errorf("generating secret: %w", err)
	}
	user.TwoFactorSecret = secret
	if _, err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}

	return s.mail.Send(user.Email,
		fmt.Sprintf("%s two-factor secret", s.cfg.AppName),
		fmt.Sprintf("Your two-factor authentication secret is %s", secret))
}

// ConfirmTwoFactorSetup checks a code against the pending secret, enables
// two-factor, and returns a freshly minted set of recovery codes. The codes
// are shown exactly once; only their stored copies can redeem a login.
func (s *Service) ConfirmTwoFactorSetup(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user.TwoFactorEnabled {
		return nil, common.ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == "" {
		return nil, common.ErrTwoFactorNotEnabled
	}

	if !twofactor.Verify(user.TwoFactorSecret, code, s.now()) {
		return nil, common.ErrInvalidTwoFactorCode
	}

	user.TwoFactorEnabled = true
	if _, err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}

	return s.replaceRecoveryCodes(ctx, user.ID)
}

// IssueRecoveryCodes replaces the user's recovery codes with a new set,
// invalidating every unredeemed old code.
func (s *Service) IssueRecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !user.TwoFactorEnabled {
		return nil, common.ErrTwoFactorNotEnabled
	}
	return s.replaceRecoveryCodes(ctx, user.ID)
}

// DisableTwoFactor turns two-factor off, discards the secret, and deletes
// any remaining recovery codes.
func (s *Service) DisableTwoFactor(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if !user.TwoFactorEnabled {
		return common.ErrTwoFactorNotEnabled
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = ""
	if _, err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return s.codes.DeleteAllForUser(ctx, user.ID)
}

func (s *Service) replaceRecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	codes, err := twofactor.GenerateRecoveryCodes(s.cfg.RecoveryCodeCount)
	if err != nil {
		return nil, fmt.Errorf("generating recovery codes: %w", err)
	}
	if err := s.codes.Replace(ctx, userID, codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// verifySecondFactor accepts either a current TOTP code or an unredeemed
// recovery code. A recovery code is consumed on use. A store failure during
// the recovery-code lookup propagates unchanged so the caller can retry.
func (s *Service) verifySecondFactor(ctx context.Context, user *User, code string) (bool, error) {
	if twofactor.Verify(user.TwoFactorSecret, code, s.now()) {
		return true, nil
	}
	return s.codes.Consume(ctx, user.ID, code)
}
