package gatekeeper

import "github.com/dkrasnov/gatekeeper/internal/common"

// The public error taxonomy. All values are sentinels matched with
// errors.Is; the boundary layer maps them to user-facing messages and
// status codes. ErrBadCredentials covers both "no such user" and "wrong
// password" so callers cannot probe for accounts.
var (
	ErrBadCredentials      = common.ErrBadCredentials
	ErrAccountNotActivated = common.ErrAccountNotActivated
	ErrEmailAlreadyInUse   = common.ErrEmailAlreadyInUse
	ErrUserNotFound        = common.ErrUserNotFound

	ErrTokenNotFound  = common.ErrTokenNotFound
	ErrTokenExpired   = common.ErrTokenExpired
	ErrTokenWrongType = common.ErrTokenWrongType
	ErrInvalidToken   = common.ErrInvalidToken

	ErrInvalidTwoFactorCode    = common.ErrInvalidTwoFactorCode
	ErrTwoFactorAlreadyEnabled = common.ErrTwoFactorAlreadyEnabled
	ErrTwoFactorNotEnabled     = common.ErrTwoFactorNotEnabled

	ErrInvalidSession = common.ErrInvalidSession

	// ErrStoreUnavailable wraps persistence failures; it is the only
	// class eligible for caller-driven retry.
	ErrStoreUnavailable = common.ErrStoreUnavailable
)
