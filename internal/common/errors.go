// Package common defines shared constants and sentinel errors used across
// the gatekeeper packages. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Credential and account errors.
	ErrBadCredentials      = errors.New("bad credentials")
	ErrAccountNotActivated = errors.New("account is not activated")
	ErrEmailAlreadyInUse   = errors.New("email address already in use")
	ErrUserNotFound        = errors.New("user not found")

	// Token lifecycle errors.
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenWrongType = errors.New("token type mismatch")
	ErrInvalidToken   = errors.New("invalid token")

	// Two-factor errors.
	ErrInvalidTwoFactorCode    = errors.New("invalid verification code")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication not enabled")

	// Session errors.
	ErrInvalidSession = errors.New("invalid session")

	// ErrStoreUnavailable wraps underlying persistence failures. It is the
	// only error class eligible for caller-driven retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)
