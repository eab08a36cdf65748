package gatekeeper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dkrasnov/gatekeeper/internal/common"
	"github.com/dkrasnov/gatekeeper/internal/logging"
	"github.com/dkrasnov/gatekeeper/internal/store"
	"github.com/dkrasnov/gatekeeper/internal/token"
)

// Service is the authentication orchestrator and the only component
// reachable from the boundary. Every operation is stateless request-scoped
// work over the shared store; no in-process state survives between calls,
// so a single Service is safe for concurrent use.
type Service struct {
	cfg    *Config
	users  UserRepository
	hasher PasswordHasher
	mail   MailSender
	qr     QRRenderer
	tokens store.TokenRepository
	codes  store.RecoveryCodeRepository
	signer *token.Signer
	log    logging.Logger
	now    func() time.Time
}

// Dependencies carries the collaborators the core consumes but does not
// own. Users and Hasher are required; Mail, QR, and Logger are optional.
type Dependencies struct {
	Users  UserRepository
	Hasher PasswordHasher
	Mail   MailSender
	QR     QRRenderer
	Logger *slog.Logger
}

// New constructs a Service backed by PostgreSQL repositories on db.
func New(cfg *Config, db *sql.DB, deps Dependencies) (*Service, error) {
	if cfg == nil || cfg.SecretKey == "" {
		return nil, fmt.Errorf("config with a non-empty secret key is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}

	now := time.Now
	return newService(cfg, deps,
		store.NewPostgresTokenRepository(db, now),
		store.NewPostgresRecoveryCodeRepository(db, now),
		now), nil
}

func newService(cfg *Config, deps Dependencies, tokens store.TokenRepository, codes store.RecoveryCodeRepository, now func() time.Time) *Service {
	var log logging.Logger
	if deps.Logger != nil {
		log = logging.NewSlogLogger(deps.Logger)
	} else {
		log = logging.NewDefault()
	}
	return &Service{
		cfg:    cfg,
		users:  deps.Users,
		hasher: deps.Hasher,
		mail:   deps.Mail,
		qr:     deps.QR,
		tokens: tokens,
		codes:  codes,
		signer: token.NewSigner([]byte(cfg.SecretKey), now),
		log:    log,
		now:    now,
	}
}

// OpenDB connects to PostgreSQL and verifies the connection.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	return store.Open(ctx, dsn)
}

// Migrate applies the embedded schema migrations for the token and
// recovery-code tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	return store.RunMigrations(ctx, db)
}

// Register creates an unverified user, issues an account-activation token,
// and mails the activation link. A mail delivery failure is logged but does
// not invalidate the token.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	email = normalizeEmail(email)

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailAlreadyInUse
	} else if !errors.Is(err, common.ErrUserNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.Save(ctx, &User{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}

	tok, err := s.tokens.Issue(ctx, user.ID, store.TokenAccountActivation, s.cfg.ActivationTokenTTL)
	if err != nil {
		return nil, err
	}

	s.sendMail(ctx, user.Email,
		fmt.Sprintf("%s account activation", s.cfg.AppName),
		fmt.Sprintf("Activate your account using following link %s/activate-account?token=%s",
			s.cfg.AppBaseURL, tok.Value))

	return user, nil
}

// Login checks the credentials and either returns a token pair or, for
// accounts with two-factor enabled, signals that a second factor is
// required without issuing anything. Unknown email and wrong password both
// fail with the same error.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, common.ErrBadCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := s.hasher.Matches(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, common.ErrBadCredentials
	}

	if !user.EmailVerified {
		return nil, common.ErrAccountNotActivated
	}

	if user.TwoFactorEnabled {
		return &LoginResult{TwoFactorRequired: true, PendingUserID: user.ID}, nil
	}

	pair, err := s.issueTokenPair(ctx, user.ID, rememberMe)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Tokens: pair}, nil
}

// CompleteTwoFactor finishes a pending login with a TOTP code, falling back
// to a one-time recovery code. On failure the attempt stays pending and the
// caller may retry.
func (s *Service) CompleteTwoFactor(ctx context.Context, userID, code string) (*LoginResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return nil, common.ErrBadCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		return nil, common.ErrTwoFactorNotEnabled
	}

	ok, err := s.verifySecondFactor(ctx, user, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrInvalidTwoFactorCode
	}

	pair, err := s.issueTokenPair(ctx, user.ID, false)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Tokens: pair}, nil
}

// Refresh rotates a refresh token: the presented value is consumed
// (single-use) and a fresh access+refresh pair is minted for its owner.
func (s *Service) Refresh(ctx context.Context, refreshValue string) (*TokenPair, error) {
	tok, err := s.tokens.Consume(ctx, refreshValue, store.TokenRefresh)
	if err != nil {
		return nil, err
	}
	return s.issueTokenPair(ctx, tok.UserID, false)
}

// VerifyAccess validates a signed access token and returns the embedded
// user id. It is pure and needs no store lookup, so it is safe to call on
// every protected request.
func (s *Service) VerifyAccess(value string) (string, error) {
	return s.signer.Verify(value)
}

// ActivateAccount consumes an account-activation token addressed to email
// and marks the account verified. A token owned by a different user is
// reported as not found to avoid leaking its existence.
func (s *Service) ActivateAccount(ctx context.Context, email, tokenValue string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return common.ErrTokenNotFound
		}
		return fmt.Errorf("looking up user: %w", err)
	}

	if _, err := s.tokens.ConsumeForUser(ctx, user.ID, tokenValue, store.TokenAccountActivation); err != nil {
		return err
	}

	user.EmailVerified = true
	if _, err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

// Logout revokes the refresh token identified by refreshValue when it
// belongs to userID. Unknown and foreign tokens both fail with
// ErrInvalidSession.
func (s *Service) Logout(ctx context.Context, userID, refreshValue string) error {
	tok, err := s.tokens.FindRefresh(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, common.ErrTokenNotFound) {
			return common.ErrInvalidSession
		}
		return err
	}
	if tok.UserID != userID {
		return common.ErrInvalidSession
	}
	return s.tokens.RevokeRefresh(ctx, userID, refreshValue)
}

// RequestPasswordReset issues a password-reset token and mails the reset
// link. An unknown email reports success without side effects so the
// endpoint cannot be used to probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			s.log.Debug(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("looking up user: %w", err)
	}

	tok, err := s.tokens.Issue(ctx, user.ID, store.TokenPasswordReset, s.cfg.PasswordResetTokenTTL)
	if err != nil {
		return err
	}

	s.sendMail(ctx, user.Email,
		fmt.Sprintf("%s password reset", s.cfg.AppName),
		fmt.Sprintf("Reset your password using following link %s/reset-password?token=%s",
			s.cfg.AppBaseURL, tok.Value))
	return nil
}

// ResetPassword consumes a password-reset token and replaces the password
// hash. All refresh sessions of the user are revoked so stolen sessions die
// with the old password.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	tok, err := s.tokens.Consume(ctx, tokenValue, store.TokenPasswordReset)
	if err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, tok.UserID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = hash
	if _, err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}

	return s.tokens.DeleteAllForUser(ctx, user.ID, store.TokenRefresh)
}

// ChangePassword verifies the current password, stores a new hash, and
// returns a fresh access token for the already-authenticated caller.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}

	ok, err := s.hasher.Matches(current, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return "", common.ErrBadCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = hash
	if _, err := s.users.Save(ctx, user); err != nil {
		return "", fmt.Errorf("saving user: %w", err)
	}

	return s.signer.Issue(user.ID, s.cfg.AccessTokenTTL)
}

func (s *Service) issueTokenPair(ctx context.Context, userID string, rememberMe bool) (*TokenPair, error) {
	access, err := s.signer.Issue(userID, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	ttl := s.cfg.RefreshTokenTTL
	if rememberMe {
		ttl = s.cfg.RememberMeTTL
	}
	refresh, err := s.tokens.Issue(ctx, userID, store.TokenRefresh, ttl)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh.Value}, nil
}

// sendMail delivers best-effort notification mail; failures are logged and
// swallowed because the token already exists and stays valid.
func (s *Service) sendMail(ctx context.Context, to, subject, body string) {
	if s.mail == nil {
		return
	}
	if err := s.mail.Send(to, subject, body); err != nil {
		s.log.Warn(ctx, "mail delivery failed", "subject", subject, "error", err.Error())
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
