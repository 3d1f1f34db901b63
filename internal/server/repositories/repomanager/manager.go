package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/dogears"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code runs
// against a pooled handle or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	CheckMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Tokens(db dbx.DBTX) tokens.Repository
	Dogears(db dbx.DBTX) dogears.Repository
}
