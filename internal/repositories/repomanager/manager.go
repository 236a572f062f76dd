package repomanager

import (
	"context"
	"database/sql"

	"github.com/cloudcrate/cloudcrate/internal/dbx"
	"github.com/cloudcrate/cloudcrate/internal/repositories/items"
	"github.com/cloudcrate/cloudcrate/internal/repositories/teamspaces"
	"github.com/cloudcrate/cloudcrate/internal/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so the
// same repositories work inside and outside transactions.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Items(db dbx.DBTX) items.Repository
	Users(db dbx.DBTX) users.Repository
	Teamspaces(db dbx.DBTX) teamspaces.Repository
}
