package model

import "errors"

var (
	// Login failures are deliberately uniform: a wrong password, an unknown
	// username, and a not-yet-activated account all surface the same way.
	ErrBadCredentials = errors.New("bad credentials")

	// Refresh token errors. Only ErrInvalidRefresh crosses the service
	// boundary; ErrTokenNotFound is collapsed into it first.
	ErrInvalidRefresh = errors.New("invalid refresh token")
	ErrTokenNotFound  = errors.New("token not found")

	// Verification token errors (activation and password reset).
	ErrInvalidToken = errors.New("invalid verification token")

	// Access token malformed, signature mismatch, or unexpected algorithm.
	ErrCredentialInvalid = errors.New("invalid credential")

	// User directory errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	// Persistence I/O failure; transient for the caller, never retried here.
	ErrStoreUnavailable = errors.New("store unavailable")
)
