// Package repomanager vends repository implementations for a database
// dialect and runs that dialect's embedded migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/repositories/users"
	"github.com/pressly/goose/v3"
)

// Supported database drivers as named in configuration.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type RepositoryManager interface {
	// SQLDriver is the database/sql driver name to open connections with.
	SQLDriver() string
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}

// New returns the manager for a configured driver name.
func New(driver string) (RepositoryManager, error) {
	switch driver {
	case DriverPostgres:
		return NewPostgresRepositoryManager(), nil
	case DriverSQLite:
		return NewSQLiteRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", common.ErrInvalidConfig, driver)
	}
}

// Open opens and pings a database for driver, optionally running migrations.
// The directory of a SQLite database file is created when missing; in-memory
// SQLite DSNs are opened as a shared-cache database private to this pool.
func Open(ctx context.Context, driver, dsn string, migrate bool) (*sql.DB, RepositoryManager, error) {
	m, err := New(driver)
	if err != nil {
		return nil, nil, err
	}

	memory := false
	if driver == DriverSQLite {
		if path := filex.SQLiteFilePath(dsn); path != "" {
			if err := filex.EnsureParentDir(path); err != nil {
				return nil, nil, err
			}
		} else {
			memory = true
			dsn = sharedMemoryDSN(dsn)
		}
	}

	db, err := dbx.Open(ctx, m.SQLDriver(), dsn)
	if err != nil {
		return nil, nil, err
	}
	if memory {
		// the database lives only while a connection is open
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		db.SetMaxIdleConns(4)
	}

	if migrate {
		if err := m.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return db, m, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}
