// Package users defines the user store abstraction and its relational
// implementations. Username uniqueness is enforced by the database
// constraint; no application-level locking is performed.
package users

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/models"
)

// Repository persists user records. Every backing-store failure matches
// common.ErrStorage; domain outcomes use common.ErrNotFound and
// common.ErrAlreadyExists.
type Repository interface {
	Getter
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	UpdateGroups(ctx context.Context, username string, groups []string) error
	SetEnabled(ctx context.Context, username string, enabled bool) error
	// List returns every user ordered by username.
	List(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, username string) error
	Exists(ctx context.Context, username string) (bool, error)
}

type Getter interface {
	Get(ctx context.Context, username string) (*models.User, error)
}

// Exists derives existence from Get: ErrNotFound means false, success means
// true and any other error is returned as is. Implementations overriding
// Exists must keep this mapping.
func Exists(ctx context.Context, g Getter, username string) (bool, error) {
	_, err := g.Get(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
