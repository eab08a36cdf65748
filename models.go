package gatekeeper

import (
	"fmt"
	"net/url"
)

// User is the identity record this core authenticates. It is owned by the
// external user store; the service mutates it only through
// UserRepository.Save and never deletes it.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	EmailVerified bool

	// TwoFactorEnabled is true once the user has proven possession of
	// the shared secret. TwoFactorSecret is present from the moment
	// setup begins and cleared when two-factor is disabled.
	TwoFactorEnabled bool
	TwoFactorSecret  string
}

// TokenPair bundles a short-lived access token and a long-lived refresh
// token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is the outcome of a credential check. When the account has
// two-factor enabled, TwoFactorRequired is set and no tokens are issued;
// the caller must follow up with CompleteTwoFactor using PendingUserID.
type LoginResult struct {
	TwoFactorRequired bool
	PendingUserID     string
	Tokens            *TokenPair
}

// ProvisioningData is the plain payload an authenticator app needs to
// enroll a TOTP secret. Rendering it to a QR image is the QRRenderer
// collaborator's job.
type ProvisioningData struct {
	Label         string
	Secret        string
	Issuer        string
	Algorithm     string
	Digits        int
	PeriodSeconds int
}

// URI encodes the payload as a standard otpauth:// URI.
func (d ProvisioningData) URI() string {
	q := url.Values{}
	q.Set("secret", d.Secret)
	q.Set("issuer", d.Issuer)
	q.Set("algorithm", d.Algorithm)
	q.Set("digits", fmt.Sprint(d.Digits))
	q.Set("period", fmt.Sprint(d.PeriodSeconds))
	return fmt.Sprintf("otpauth://totp/%s:%s?%s",
		url.PathEscape(d.Issuer), url.PathEscape(d.Label), q.Encode())
}

// TwoFactorSetup is returned when a user begins two-factor enrollment.
// QRImage and QRMimeType are empty when no QRRenderer is configured.
type TwoFactorSetup struct {
	Data       ProvisioningData
	QRImage    []byte
	QRMimeType string
}
