package gatekeeper

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings for the authentication core.
//
// Fields:
//   - SecretKey: HMAC secret for signing access tokens (HS256). Do not use
//     the development default in production.
//   - AppName: issuer name shown in authenticator apps and mail subjects.
//   - AppBaseURL: base for activation / password-reset links.
//   - AccessTokenTTL: access tokens are non-revocable, so keep this short.
//   - RefreshTokenTTL / RememberMeTTL: refresh token lifetimes for ordinary
//     and remember-me sessions.
//   - ActivationTokenTTL / PasswordResetTokenTTL: single-use token windows.
//   - RecoveryCodeCount: size of a recovery-code batch.
type Config struct {
	SecretKey             string        `env:"GATEKEEPER_SECRET_KEY"`
	AppName               string        `env:"GATEKEEPER_APP_NAME"`
	AppBaseURL            string        `env:"GATEKEEPER_APP_BASE_URL"`
	AccessTokenTTL        time.Duration `env:"GATEKEEPER_ACCESS_TOKEN_TTL"`
	RefreshTokenTTL       time.Duration `env:"GATEKEEPER_REFRESH_TOKEN_TTL"`
	RememberMeTTL         time.Duration `env:"GATEKEEPER_REMEMBER_ME_TTL"`
	ActivationTokenTTL    time.Duration `env:"GATEKEEPER_ACTIVATION_TOKEN_TTL"`
	PasswordResetTokenTTL time.Duration `env:"GATEKEEPER_PASSWORD_RESET_TOKEN_TTL"`
	RecoveryCodeCount     int           `env:"GATEKEEPER_RECOVERY_CODE_COUNT"`
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: the secret key is insecure for production and must be overridden.
func (c *Config) LoadDefaults() {
	c.SecretKey = "dev-secret"
	c.AppName = "Gatekeeper"
	c.AppBaseURL = "http://localhost:3000"
	c.AccessTokenTTL = 15 * time.Minute
	c.RefreshTokenTTL = 7 * 24 * time.Hour
	c.RememberMeTTL = 30 * 24 * time.Hour
	c.ActivationTokenTTL = 24 * time.Hour
	c.PasswordResetTokenTTL = time.Hour
	c.RecoveryCodeCount = 16
}

// LoadConfig builds a Config by applying defaults and then overlaying
// values from GATEKEEPER_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
