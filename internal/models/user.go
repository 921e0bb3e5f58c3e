// Package models holds persisted domain records.
package models

import (
	"slices"
	"time"
)

// User is a stored account. Username is the unique, case-sensitive key and is
// never changed once the record exists.
type User struct {
	Username     string
	PasswordHash string
	Groups       []string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser returns an enabled user with both timestamps set to now.
func NewUser(username, passwordHash string, groups []string, now time.Time) *User {
	now = now.UTC().Truncate(time.Second)
	return &User{
		Username:     username,
		PasswordHash: passwordHash,
		Groups:       slices.Clone(groups),
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (u *User) HasGroup(g string) bool {
	return slices.Contains(u.Groups, g)
}

// Status is "enabled" or "disabled".
func (u *User) Status() string {
	if u.Enabled {
		return "enabled"
	}
	return "disabled"
}
