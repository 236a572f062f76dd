// Package services implements the storage engine: the tree mutation
// coordinator, size aggregation, quota tracking, trash reaping and archive
// building. Services borrow metadata items by value for one operation, drive
// the physical adapter first, and persist the updated records through the
// repositories only after the physical step succeeded.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"path"
	"strings"
	"time"

	"github.com/cloudcrate/cloudcrate/internal/common"
	"github.com/cloudcrate/cloudcrate/internal/dbx"
	"github.com/cloudcrate/cloudcrate/internal/logging"
	"github.com/cloudcrate/cloudcrate/internal/models"
	"github.com/cloudcrate/cloudcrate/internal/repositories/repomanager"
	"github.com/cloudcrate/cloudcrate/internal/storage"
)

// TreeService coordinates mutations that span the metadata tree and the
// physical storage tree: rename, move, soft-delete, restore and upload.
//
// Descendant sequences are single-pass and lazily produced; every operation
// consumes its sequence at most once. Folder rename/move costs one physical
// operation plus a pure string rewrite per descendant.
type TreeService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  storage.Adapter
	quota  *QuotaService
	logger logging.Logger
	now    func() time.Time
}

func NewTreeService(db *sql.DB, repos repomanager.RepositoryManager, store storage.Adapter, quota *QuotaService, logger logging.Logger) *TreeService {
	return &TreeService{
		db:     db,
		repos:  repos,
		store:  store,
		quota:  quota,
		logger: logger,
		now:    time.Now,
	}
}

// persist writes all updated records of one logical operation in a single
// transaction.
func (s *TreeService) persist(ctx context.Context, updated []*models.Item) error {
	if len(updated) == 0 {
		return nil
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Items(tx).UpdateBatch(ctx, updated)
	})
}

// Rename renames a file in place or a folder together with the stored paths
// of its whole subtree. For files the original extension is preserved even
// when newName drops it. For folders the physical rename happens exactly
// once; descendants are rewritten as pure string edits and descendants
// stored outside the renamed subtree are left untouched.
func (s *TreeService) Rename(ctx context.Context, item *models.Item, newName string, descendants iter.Seq[*models.Item], currentFolderPath string) ([]*models.Item, error) {
	if item == nil {
		return nil, fmt.Errorf("item: %w", common.ErrorInvalidArgument)
	}
	if strings.TrimSpace(newName) == "" {
		return nil, fmt.Errorf("new name: %w", common.ErrorInvalidArgument)
	}

	var updated []*models.Item

	switch item.Type {
	case models.ItemTypeFile:
		stem := strings.TrimSuffix(newName, path.Ext(newName))
		newRel, err := s.store.Rename(ctx, item, stem, "")
		if err != nil {
			return nil, err
		}
		item.Name = path.Base(newRel)
		item.FilePath = newRel
		updated = append(updated, item)

	case models.ItemTypeFolder:
		if strings.TrimSpace(currentFolderPath) == "" {
			return nil, fmt.Errorf("folder path: %w", common.ErrorInvalidArgument)
		}
		newRel, err := s.store.Rename(ctx, item, newName, currentFolderPath)
		if err != nil {
			return nil, err
		}
		item.Name = newName
		updated = append(updated, item)
		updated = appendRewritten(updated, descendants, currentFolderPath, newRel)

	default:
		return nil, fmt.Errorf("type %q: %w", item.Type, common.ErrorNotSupportedType)
	}

	if err := s.persist(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Move relocates a file or folder under a new parent. Folder moves rewrite
// descendant paths with the same ancestor substitution used by Rename and
// issue exactly one physical move.
func (s *TreeService) Move(ctx context.Context, item *models.Item, newParentID int64, destinationPath, sourcePath string, descendants iter.Seq[*models.Item]) ([]*models.Item, error) {
	if item == nil {
		return nil, fmt.Errorf("item: %w", common.ErrorInvalidArgument)
	}
	if strings.TrimSpace(destinationPath) == "" {
		return nil, fmt.Errorf("destination path: %w", common.ErrorInvalidArgument)
	}

	var updated []*models.Item

	switch item.Type {
	case models.ItemTypeFile:
		newRel, err := s.store.Move(ctx, item, destinationPath, "")
		if err != nil {
			return nil, err
		}
		item.ParentID = &newParentID
		item.FilePath = newRel
		updated = append(updated, item)

	case models.ItemTypeFolder:
		if strings.TrimSpace(sourcePath) == "" {
			return nil, fmt.Errorf("source path: %w", common.ErrorInvalidArgument)
		}
		newRel, err := s.store.Move(ctx, item, destinationPath, sourcePath)
		if err != nil {
			return nil, err
		}
		item.ParentID = &newParentID
		updated = append(updated, item)
		updated = appendRewritten(updated, descendants, sourcePath, newRel)

	default:
		return nil, fmt.Errorf("type %q: %w", item.Type, common.ErrorNotSupportedType)
	}

	if err := s.persist(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// appendRewritten applies the ancestor-segment substitution to each
// descendant's stored path. Descendants stored outside the old prefix are
// not touched and not persisted.
func appendRewritten(updated []*models.Item, descendants iter.Seq[*models.Item], oldPrefix, newPrefix string) []*models.Item {
	if descendants == nil {
		return updated
	}
	for d := range descendants {
		if d.FilePath == "" {
			continue
		}
		if rewritten, ok := storage.RewritePrefix(d.FilePath, oldPrefix, newPrefix); ok {
			d.FilePath = rewritten
			updated = append(updated, d)
		}
	}
	return updated
}

// SoftDelete marks every item in the sequence as trashed. It is purely a
// metadata transform: physical bytes stay until permanent deletion or
// reaping. Descendants of a deleted folder are not flipped here; the
// repository's listing predicate treats them as trashed through their
// ancestor.
func (s *TreeService) SoftDelete(ctx context.Context, items iter.Seq[*models.Item]) ([]*models.Item, error) {
	deletedAt := s.now()

	var updated []*models.Item
	for item := range items {
		item.IsDeleted = true
		item.DeletedAt = &deletedAt
		updated = append(updated, item)
	}

	if err := s.persist(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Restore clears the trash flag and timestamp on every item in the sequence.
func (s *TreeService) Restore(ctx context.Context, items iter.Seq[*models.Item]) ([]*models.Item, error) {
	var updated []*models.Item
	for item := range items {
		item.IsDeleted = false
		item.DeletedAt = nil
		updated = append(updated, item)
	}

	if err := s.persist(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Upload saves the incoming stream under targetDir, creates the metadata
// record and charges the tenant's quota. ownerID is the uploading user; for
// teamspace tenants the item is additionally bound to the teamspace.
func (s *TreeService) Upload(ctx context.Context, ownerID int64, tenant models.Tenant, parentID *int64, file *models.IncomingFile, targetDir string) (*models.Item, error) {
	if file == nil || file.Content == nil {
		return nil, fmt.Errorf("incoming file: %w", common.ErrorInvalidArgument)
	}

	rel, err := s.store.Save(ctx, tenant, targetDir, file)
	if err != nil {
		return nil, err
	}

	item := &models.Item{
		OwnerID:  ownerID,
		ParentID: parentID,
		Type:     models.ItemTypeFile,
		Name:     path.Base(rel),
		FilePath: rel,
		Size:     file.Size,
		MimeType: storage.InferMimeType(path.Base(rel)),
		Access:   models.AccessPrivate,
	}
	if tenant.Kind == models.TenantTeam {
		teamID := tenant.ID
		item.TeamspaceID = &teamID
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.repos.Items(tx).Create(ctx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.quota.Add(ctx, tenant, file.Size); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file uploaded", "tenant", tenant.String(), "path", rel, "size", file.Size)
	return item, nil
}
