// Package common defines sentinel errors and small helpers shared by every
// layer of gophauth. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")

	// Repository-level errors. ErrNotFound must not leak past a provider.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrStorage       = errors.New("storage error")

	// Token errors.
	ErrTokenMalformed      = errors.New("malformed token")
	ErrTokenBadSignature   = errors.New("invalid token signature")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidHeaderFormat = errors.New("invalid authorization header format")

	// Configuration / validation errors.
	ErrInvalidSigningKey    = errors.New("signing key must be at least 16 bytes")
	ErrInvalidPasswordInput = errors.New("password must be between 1 and 128 characters")
	ErrInvalidUsername      = errors.New("username must not be empty or contain whitespace")
	ErrPasswordHashFormat   = errors.New("invalid password hash format")
	ErrInvalidClaims        = errors.New("invalid claims")
	ErrInvalidConfig        = errors.New("invalid configuration")

	// Boundary error returned to clients regardless of the underlying cause.
	ErrAuthenticationFailed = errors.New("authentication failed")

	ErrorInternal = errors.New("internal error")
)

// IsCredentialError reports whether err is one of the errors that must be
// presented to clients as a uniform authentication failure.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrUserDisabled) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPasswordHashFormat) ||
		errors.Is(err, ErrInvalidPasswordInput)
}

// IsTokenError reports whether err originates from token extraction or
// verification.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenBadSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrInvalidHeaderFormat)
}
