package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
)

var postgresQueries = queries{
	get: `SELECT username, password_hash, groups_json, enabled, created_at, updated_at
		 FROM users
		 WHERE username = $1`,
	create: `INSERT INTO users (username, password_hash, groups_json, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (username) DO NOTHING`,
	updatePassword: `UPDATE users SET password_hash = $1, updated_at = $2
		 WHERE username = $3`,
	updateGroups: `UPDATE users SET groups_json = $1, updated_at = $2
		 WHERE username = $3`,
	setEnabled: `UPDATE users SET enabled = $1, updated_at = $2
		 WHERE username = $3`,
	list: `SELECT username, password_hash, groups_json, enabled, created_at, updated_at
		 FROM users
		 ORDER BY username COLLATE "C"`,
	delete: `DELETE FROM users WHERE username = $1`,
}

// PostgresRepository stores users in PostgreSQL.
type PostgresRepository struct {
	sqlStore
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{sqlStore{db: db, q: postgresQueries, now: time.Now}}
}

// Exists asks the database directly instead of loading the row.
func (r *PostgresRepository) Exists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&ok); err != nil {
		return false, storageError("user exists", err)
	}
	return ok, nil
}
