// Package auth holds the identity types shared by providers, the token
// service and guards: the immutable Claims produced by a successful
// authentication and the Provider interface that produces them.
package auth

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/google/uuid"
)

// Registered claim names. Extension keys must not collide with them.
const (
	ClaimSubject   = "sub"
	ClaimGroups    = "groups"
	ClaimProvider  = "provider"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimID        = "jti"
)

var registered = []string{ClaimSubject, ClaimGroups, ClaimProvider, ClaimIssuedAt, ClaimExpiresAt, ClaimID}

// Claims is the authenticated identity. It is immutable: accessors return
// copies of the slice and map fields.
type Claims struct {
	subject   string
	groups    []string
	provider  string
	issuedAt  time.Time
	expiresAt time.Time
	id        string
	extra     map[string]any
}

// NewClaims builds claims with a freshly generated unique ID. Timestamps are
// truncated to whole seconds. exp must be strictly after iat.
func NewClaims(subject string, groups []string, provider string, iat, exp time.Time, extra map[string]any) (*Claims, error) {
	return build(subject, groups, provider, iat, exp, uuid.NewString(), extra)
}

// RestoreClaims rebuilds claims decoded from a verified token, keeping its ID.
func RestoreClaims(subject string, groups []string, provider string, iat, exp time.Time, id string, extra map[string]any) (*Claims, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", common.ErrInvalidClaims)
	}
	return build(subject, groups, provider, iat, exp, id, extra)
}

func build(subject string, groups []string, provider string, iat, exp time.Time, id string, extra map[string]any) (*Claims, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: empty subject", common.ErrInvalidClaims)
	}

	iat = iat.Truncate(time.Second)
	exp = exp.Truncate(time.Second)
	if !exp.After(iat) {
		return nil, fmt.Errorf("%w: expiry must be after issued-at", common.ErrInvalidClaims)
	}

	for k := range extra {
		if slices.Contains(registered, k) {
			return nil, fmt.Errorf("%w: extension key %q is reserved", common.ErrInvalidClaims, k)
		}
	}

	c := &Claims{
		subject:   subject,
		groups:    slices.Clone(groups),
		provider:  provider,
		issuedAt:  iat,
		expiresAt: exp,
		id:        id,
		extra:     maps.Clone(extra),
	}
	if c.groups == nil {
		c.groups = []string{}
	}
	return c, nil
}

func (c *Claims) Subject() string      { return c.subject }
func (c *Claims) Provider() string     { return c.provider }
func (c *Claims) IssuedAt() time.Time  { return c.issuedAt }
func (c *Claims) ExpiresAt() time.Time { return c.expiresAt }
func (c *Claims) ID() string           { return c.id }

// Groups returns a copy of the group list.
func (c *Claims) Groups() []string { return slices.Clone(c.groups) }

// Extra returns a copy of the provider-specific extension fields.
func (c *Claims) Extra() map[string]any { return maps.Clone(c.extra) }

// ExtraValue returns a single extension field.
func (c *Claims) ExtraValue(key string) (any, bool) {
	v, ok := c.extra[key]
	return v, ok
}

func (c *Claims) HasGroup(g string) bool {
	return slices.Contains(c.groups, g)
}

// HasAnyGroup is false for an empty argument list.
func (c *Claims) HasAnyGroup(gs ...string) bool {
	for _, g := range gs {
		if c.HasGroup(g) {
			return true
		}
	}
	return false
}

// HasAllGroups is true for an empty argument list.
func (c *Claims) HasAllGroups(gs ...string) bool {
	for _, g := range gs {
		if !c.HasGroup(g) {
			return false
		}
	}
	return true
}

// IsExpiredAt reports whether the claims are expired at now (now >= exp).
func (c *Claims) IsExpiredAt(now time.Time) bool {
	return !now.Before(c.expiresAt)
}

// TimeToExpiry returns the remaining lifetime at now, or zero once expired.
func (c *Claims) TimeToExpiry(now time.Time) time.Duration {
	if d := c.expiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Age returns how long ago the claims were issued.
func (c *Claims) Age(now time.Time) time.Duration {
	return now.Sub(c.issuedAt)
}

// Lifetime is exp - iat.
func (c *Claims) Lifetime() time.Duration {
	return c.expiresAt.Sub(c.issuedAt)
}

// Equal compares every field. Group order is significant because providers
// copy groups verbatim.
func (c *Claims) Equal(o *Claims) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.subject == o.subject &&
		slices.Equal(c.groups, o.groups) &&
		c.provider == o.provider &&
		c.issuedAt.Equal(o.issuedAt) &&
		c.expiresAt.Equal(o.expiresAt) &&
		c.id == o.id &&
		equalExtra(c.extra, o.extra)
}

func equalExtra(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || fmt.Sprint(av) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}
