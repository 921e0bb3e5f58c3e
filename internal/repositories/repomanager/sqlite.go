package repomanager

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/migrations"
	"github.com/dmitrijs2005/gophauth/internal/repositories/users"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager vends SQLite-backed repositories.
type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) SQLDriver() string { return "sqlite" }

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, migrations.SQLiteDir)
}

// sharedMemoryDSN turns an in-memory DSN into a named shared-cache database
// so every pooled connection sees the same schema and rows. File DSNs are
// returned unchanged.
func sharedMemoryDSN(dsn string) string {
	if filex.SQLiteFilePath(dsn) != "" {
		return dsn
	}

	name, rawQuery := "", ""
	if rest, ok := strings.CutPrefix(dsn, "file:"); ok {
		name, rawQuery, _ = strings.Cut(rest, "?")
	}
	if name == "" || name == ":memory:" {
		name = "gophauth-" + uuid.NewString()
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}
	query.Set("mode", "memory")
	query.Set("cache", "shared")
	return "file:" + name + "?" + query.Encode()
}
