// Package repomanager provides the SQLite RepositoryManager, wiring together
// repository constructors and schema migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/server/migrations"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/dogears"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// ErrSchemaOutdated is returned by CheckMigrations when migrations are pending.
var ErrSchemaOutdated = errors.New("database schema is not up to date")

type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Tokens(db dbx.DBTX) tokens.Repository {
	return tokens.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Dogears(db dbx.DBTX) dogears.Repository {
	return dogears.NewSQLiteRepository(db)
}

// seams for tests
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	gooseDBVersion = func(ctx context.Context, db *sql.DB) (int64, error) {
		return goose.GetDBVersionContext(ctx, db)
	}
)

func configureGoose() error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.SetDialect("sqlite3")
}

// RunMigrations applies every pending embedded migration.
func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	if err := configureGoose(); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// CheckMigrations fails with ErrSchemaOutdated when the database is behind
// the newest embedded migration. It changes nothing.
func (m *SQLiteRepositoryManager) CheckMigrations(ctx context.Context, db *sql.DB) error {
	if err := configureGoose(); err != nil {
		return err
	}
	all, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	if err != nil {
		return err
	}
	last, err := all.Last()
	if err != nil {
		return err
	}
	current, err := gooseDBVersion(ctx, db)
	if err != nil {
		return err
	}
	if current < last.Version {
		return fmt.Errorf("%w: at version %d, want %d", ErrSchemaOutdated, current, last.Version)
	}
	return nil
}
