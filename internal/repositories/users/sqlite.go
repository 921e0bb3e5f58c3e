package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
)

var sqliteQueries = queries{
	get: `SELECT username, password_hash, groups_json, enabled, created_at, updated_at
		 FROM users
		 WHERE username = ?`,
	create: `INSERT INTO users (username, password_hash, groups_json, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`,
	updatePassword: `UPDATE users SET password_hash = ?, updated_at = ?
		 WHERE username = ?`,
	updateGroups: `UPDATE users SET groups_json = ?, updated_at = ?
		 WHERE username = ?`,
	setEnabled: `UPDATE users SET enabled = ?, updated_at = ?
		 WHERE username = ?`,
	list: `SELECT username, password_hash, groups_json, enabled, created_at, updated_at
		 FROM users
		 ORDER BY username`,
	delete: `DELETE FROM users WHERE username = ?`,
}

// SQLiteRepository stores users in SQLite.
type SQLiteRepository struct {
	sqlStore
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{sqlStore{db: db, q: sqliteQueries, now: time.Now}}
}

func (r *SQLiteRepository) Exists(ctx context.Context, username string) (bool, error) {
	return Exists(ctx, r, username)
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*SQLiteRepository)(nil)
)
