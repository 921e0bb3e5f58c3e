// Package guard provides composable authorization predicates over claims.
//
// Guards are pure: they perform no I/O, hold no mutable state and may be
// evaluated concurrently. A nil *auth.Claims never satisfies any guard,
// including Not(...), so an unauthenticated request is always denied.
package guard

import (
	"slices"

	"github.com/dmitrijs2005/gophauth/internal/auth"
)

type Guard interface {
	Check(c *auth.Claims) bool
}

// GuardFunc adapts an ordinary function to Guard.
type GuardFunc func(c *auth.Claims) bool

func (f GuardFunc) Check(c *auth.Claims) bool {
	if c == nil {
		return false
	}
	return f(c)
}

// HasGroup is satisfied when g is one of the claims' groups (exact match).
func HasGroup(g string) Guard {
	return GuardFunc(func(c *auth.Claims) bool { return c.HasGroup(g) })
}

// HasAnyGroup is satisfied when the claims share at least one group with gs.
// It is never satisfied for an empty gs.
func HasAnyGroup(gs ...string) Guard {
	gs = slices.Clone(gs)
	return GuardFunc(func(c *auth.Claims) bool { return c.HasAnyGroup(gs...) })
}

// HasAllGroups is satisfied when every group in gs is present. It is always
// satisfied for an empty gs.
func HasAllGroups(gs ...string) Guard {
	gs = slices.Clone(gs)
	return GuardFunc(func(c *auth.Claims) bool { return c.HasAllGroups(gs...) })
}

// ProviderIs is satisfied when the claims were issued by the named provider.
func ProviderIs(name string) Guard {
	return GuardFunc(func(c *auth.Claims) bool { return c.Provider() == name })
}

// Allow is satisfied by any authenticated claims.
func Allow() Guard {
	return GuardFunc(func(*auth.Claims) bool { return true })
}

func And(a, b Guard) Guard {
	return GuardFunc(func(c *auth.Claims) bool { return a.Check(c) && b.Check(c) })
}

func Or(a, b Guard) Guard {
	return GuardFunc(func(c *auth.Claims) bool { return a.Check(c) || b.Check(c) })
}

func Not(a Guard) Guard {
	return GuardFunc(func(c *auth.Claims) bool { return !a.Check(c) })
}

// All folds gs with And. All() is satisfied by any authenticated claims.
func All(gs ...Guard) Guard {
	gs = slices.Clone(gs)
	return GuardFunc(func(c *auth.Claims) bool {
		for _, g := range gs {
			if !g.Check(c) {
				return false
			}
		}
		return true
	})
}

// Any folds gs with Or. Any() is never satisfied.
func Any(gs ...Guard) Guard {
	gs = slices.Clone(gs)
	return GuardFunc(func(c *auth.Claims) bool {
		for _, g := range gs {
			if g.Check(c) {
				return true
			}
		}
		return false
	})
}
