package services

import (
	"context"
	"database/sql"
	"iter"

	"github.com/cloudcrate/cloudcrate/internal/models"
	"github.com/cloudcrate/cloudcrate/internal/repositories/repomanager"
)

// SizeService computes recursive aggregates (total byte size, file count)
// for folder subtrees and heterogeneous selections. It holds no mutable
// state, so concurrent calls for different folders are safe.
type SizeService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewSizeService(db *sql.DB, repos repomanager.RepositoryManager) *SizeService {
	return &SizeService{db: db, repos: repos}
}

// FolderSize sums the sizes of all non-deleted file descendants of the
// folder and counts them. A nil folderID means the tenant's root. Empty and
// unknown folders yield (0, 0) rather than an error.
func (s *SizeService) FolderSize(ctx context.Context, tenant models.Tenant, folderID *int64) (int64, int64, error) {
	files, err := s.repos.Items(s.db).Files(ctx, tenant, folderID)
	if err != nil {
		return 0, 0, err
	}

	var bytes, count int64
	for _, f := range files {
		bytes += f.Size
		count++
	}
	return bytes, count, nil
}

// MixedBatchSize aggregates a lazy selection of heterogeneous items. Only
// logically-deleted items count: a trashed file adds its declared size (a
// missing size counts as zero) and one to the file count, a trashed folder
// delegates to FolderSize for its whole subtree. Everything else is skipped.
// Its primary caller is trash-size estimation, hence the deleted-only rule.
func (s *SizeService) MixedBatchSize(ctx context.Context, tenant models.Tenant, items iter.Seq[*models.Item]) (int64, int64, error) {
	var bytes, count int64
	for item := range items {
		if !item.IsDeleted {
			continue
		}
		switch item.Type {
		case models.ItemTypeFile:
			bytes += item.Size
			count++
		case models.ItemTypeFolder:
			folderID := item.ID
			b, n, err := s.FolderSize(ctx, tenant, &folderID)
			if err != nil {
				return 0, 0, err
			}
			bytes += b
			count += n
		}
	}
	return bytes, count, nil
}
