package repomanager

import (
	"context"
	"database/sql"

	"github.com/avoronov/demorelay/internal/dbx"
	"github.com/avoronov/demorelay/internal/server/repositories/matches"
	"github.com/avoronov/demorelay/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes a schema migration hook.
type RepositoryManager interface {
	Matches(db dbx.DBTX) matches.Repository
	Users(db dbx.DBTX) users.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
