// Package items defines the metadata repository for tree nodes and its
// PostgreSQL implementation.
package items

import (
	"context"
	"time"

	"github.com/cloudcrate/cloudcrate/internal/models"
)

// Repository is the metadata collaborator the engine drives. All descendant
// updates of one logical operation must be issued through a transactional
// DBTX (see dbx.WithTx).
type Repository interface {
	// GetByID fetches one item. Returns common.ErrorNotFound when absent.
	GetByID(ctx context.Context, id int64) (*models.Item, error)

	// GetByIDs fetches a batch of items; missing ids are silently skipped.
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Item, error)

	// ListChildren lists the direct children of parentID (nil = tenant
	// root). With trashed=false it returns only items that are not logically
	// deleted; with trashed=true only those that are, where "logically
	// deleted" means the item's own flag is set or a deleted ancestor
	// exists.
	ListChildren(ctx context.Context, tenant models.Tenant, parentID *int64, trashed bool) ([]*models.Item, error)

	// Descendants returns every node under folderID up to maxDepth levels.
	Descendants(ctx context.Context, folderID int64, maxDepth int) ([]*models.Item, error)

	// Files returns all non-deleted file nodes under folderID, or all of the
	// tenant's non-deleted files when folderID is nil.
	Files(ctx context.Context, tenant models.Tenant, folderID *int64) ([]*models.Item, error)

	// Create inserts the item and returns it with id and timestamps set.
	Create(ctx context.Context, item *models.Item) (*models.Item, error)

	// UpdateBatch persists the mutable fields of each item.
	UpdateBatch(ctx context.Context, items []*models.Item) error

	// Delete hard-deletes a single row.
	Delete(ctx context.Context, id int64) error

	// DeleteBatch hard-deletes the rows and returns how many were removed.
	DeleteBatch(ctx context.Context, ids []int64) (int64, error)

	// ExpiredIDs returns ids of logically-deleted items whose deleted_at is
	// at or before the threshold (inclusive).
	ExpiredIDs(ctx context.Context, threshold time.Time) ([]int64, error)

	// FolderPath computes a folder's relative path by walking parent links.
	FolderPath(ctx context.Context, folderID int64) (string, error)

	// ExistsWithName reports whether a non-deleted item with the name
	// already lives under parentID.
	ExistsWithName(ctx context.Context, tenant models.Tenant, parentID *int64, name string) (bool, error)
}
