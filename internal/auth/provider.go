package auth

import "context"

// Provider verifies a username/password pair and produces Claims.
//
// Implementations must not reveal whether a username exists: an unknown user
// and a wrong password both fail with common.ErrInvalidCredentials.
type Provider interface {
	Authenticate(ctx context.Context, username, password string) (*Claims, error)

	// Name is stored in the provider field of issued claims.
	Name() string

	// ValidateConfig is a readiness probe run once at startup. Failure is
	// fatal to startup and is never retried inline.
	ValidateConfig(ctx context.Context) error

	Info() ProviderInfo
}

// ProviderInfo describes a provider for diagnostics.
type ProviderInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}
