package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/models"
)

// queries holds the dialect-specific SQL used by sqlStore.
type queries struct {
	get            string
	create         string
	updatePassword string
	updateGroups   string
	setEnabled     string
	list           string
	delete         string
}

// sqlStore implements every Repository operation except Exists on top of a
// dialect's query set.
type sqlStore struct {
	db  dbx.DBTX
	q   queries
	now func() time.Time
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrStorage, op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                models.User
		groups           string
		created, updated int64
	)
	if err := row.Scan(&u.Username, &u.PasswordHash, &groups, &u.Enabled, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(groups), &u.Groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	if u.Groups == nil {
		u.Groups = []string{}
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return &u, nil
}

func encodeGroups(groups []string) (string, error) {
	if groups == nil {
		groups = []string{}
	}
	b, err := json.Marshal(groups)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *sqlStore) timestamp() int64 {
	return s.now().UTC().Unix()
}

func (s *sqlStore) Get(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q.get, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, storageError("get user", err)
	}
	return u, nil
}

func (s *sqlStore) Create(ctx context.Context, user *models.User) error {
	groups, err := encodeGroups(user.Groups)
	if err != nil {
		return storageError("encode groups", err)
	}

	created, updated := user.CreatedAt.Unix(), user.UpdatedAt.Unix()
	if user.CreatedAt.IsZero() {
		created = s.timestamp()
	}
	if user.UpdatedAt.IsZero() {
		updated = created
	}

	res, err := s.db.ExecContext(ctx, s.q.create,
		user.Username, user.PasswordHash, groups, user.Enabled, created, updated)
	if err != nil {
		return storageError("create user", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageError("create user", err)
	}
	if n == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

// exec runs an UPDATE/DELETE and maps zero affected rows to ErrNotFound.
func (s *sqlStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError(op, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *sqlStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return s.exec(ctx, "update password", s.q.updatePassword, passwordHash, s.timestamp(), username)
}

func (s *sqlStore) UpdateGroups(ctx context.Context, username string, groups []string) error {
	encoded, err := encodeGroups(groups)
	if err != nil {
		return storageError("encode groups", err)
	}
	return s.exec(ctx, "update groups", s.q.updateGroups, encoded, s.timestamp(), username)
}

func (s *sqlStore) SetEnabled(ctx context.Context, username string, enabled bool) error {
	return s.exec(ctx, "set enabled", s.q.setEnabled, enabled, s.timestamp(), username)
}

func (s *sqlStore) Delete(ctx context.Context, username string) error {
	return s.exec(ctx, "delete user", s.q.delete, username)
}

func (s *sqlStore) List(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, s.q.list)
	if err != nil {
		return nil, storageError("list users", err)
	}
	defer rows.Close()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storageError("list users", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list users", err)
	}
	return result, nil
}
