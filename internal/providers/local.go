// Package providers contains auth.Provider implementations.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/models"
)

// DefaultSessionLifetime is the lifetime of claims issued by LocalProvider.
const DefaultSessionLifetime = 24 * time.Hour

// UserStore is the subset of users.Repository the local provider needs.
type UserStore interface {
	Get(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
}

// PasswordVerifier checks a password against a stored hash.
type PasswordVerifier interface {
	Verify(password, encoded string) error
}

// LocalProvider authenticates against the local user store.
type LocalProvider struct {
	store    UserStore
	hasher   PasswordVerifier
	lifetime time.Duration
	now      func() time.Time
}

type LocalOption func(*LocalProvider)

// WithSessionLifetime overrides DefaultSessionLifetime. Non-positive values
// are ignored.
func WithSessionLifetime(d time.Duration) LocalOption {
	return func(p *LocalProvider) {
		if d > 0 {
			p.lifetime = d
		}
	}
}

func WithClock(now func() time.Time) LocalOption {
	return func(p *LocalProvider) { p.now = now }
}

func NewLocalProvider(store UserStore, hasher PasswordVerifier, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		store:    store,
		hasher:   hasher,
		lifetime: DefaultSessionLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LocalProvider) Name() string { return common.LocalProviderName }

func (p *LocalProvider) SessionLifetime() time.Duration { return p.lifetime }

func (p *LocalProvider) Info() auth.ProviderInfo {
	return auth.ProviderInfo{
		Name:        p.Name(),
		Type:        "local",
		Description: "Local database authentication provider",
	}
}

// Authenticate verifies username and password.
//
// An unknown user fails with common.ErrInvalidCredentials, exactly like a
// wrong password. A disabled user fails with common.ErrUserDisabled before
// the password is checked. Storage errors and hash-format errors are
// returned unchanged.
func (p *LocalProvider) Authenticate(ctx context.Context, username, password string) (*auth.Claims, error) {
	user, err := p.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.Enabled {
		return nil, common.ErrUserDisabled
	}

	if err := p.hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, common.ErrInvalidPasswordInput) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	iat := p.now()
	return auth.NewClaims(user.Username, user.Groups, p.Name(), iat, iat.Add(p.lifetime), nil)
}

// ValidateConfig checks that the user store is reachable.
func (p *LocalProvider) ValidateConfig(ctx context.Context) error {
	if p.store == nil || p.hasher == nil {
		return fmt.Errorf("%w: local provider needs a user store and a hasher", common.ErrInvalidConfig)
	}
	if _, err := p.store.List(ctx); err != nil {
		return fmt.Errorf("local provider: user store unavailable: %w", err)
	}
	return nil
}

var _ auth.Provider = (*LocalProvider)(nil)
