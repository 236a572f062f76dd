package services

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/cloudcrate/cloudcrate/internal/common"
	"github.com/cloudcrate/cloudcrate/internal/logging"
	"github.com/cloudcrate/cloudcrate/internal/metrics"
	"github.com/cloudcrate/cloudcrate/internal/models"
	"github.com/cloudcrate/cloudcrate/internal/repositories/repomanager"
	"github.com/cloudcrate/cloudcrate/internal/storage"
)

// ArchiveService streams zip archives of folder subtrees or arbitrary item
// selections without buffering the archive in memory. Size and file-count
// ceilings are enforced against metadata before the first byte is produced,
// so a caller that receives a reader will never see the archive abort for
// being too large.
type ArchiveService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	store    storage.Adapter
	size     *SizeService
	logger   logging.Logger
	metrics  *metrics.StorageMetrics
	maxBytes int64
	maxFiles int64
}

func NewArchiveService(db *sql.DB, repos repomanager.RepositoryManager, store storage.Adapter, size *SizeService, logger logging.Logger, m *metrics.StorageMetrics, maxBytes, maxFiles int64) *ArchiveService {
	return &ArchiveService{
		db:       db,
		repos:    repos,
		store:    store,
		size:     size,
		logger:   logger,
		metrics:  m,
		maxBytes: maxBytes,
		maxFiles: maxFiles,
	}
}

// archiveEntry pairs a stored file with the name it gets inside the zip.
type archiveEntry struct {
	file *models.Item
	name string
}

func (s *ArchiveService) checkCeilings(bytes, files int64) error {
	if s.maxFiles > 0 && files > s.maxFiles {
		return fmt.Errorf("%w: %d files exceeds the limit of %d", common.ErrorTooManyFiles, files, s.maxFiles)
	}
	if s.maxBytes > 0 && bytes > s.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds the limit of %d", common.ErrorArchiveTooLarge, bytes, s.maxBytes)
	}
	return nil
}

// folderEntries lists the folder's non-deleted file descendants and maps
// each one to an entry name rooted at rootName, preserving the subtree
// structure below the folder itself.
func (s *ArchiveService) folderEntries(ctx context.Context, tenant models.Tenant, folderID int64, rootName string) ([]archiveEntry, error) {
	folderPath, err := s.repos.Items(s.db).FolderPath(ctx, folderID)
	if err != nil {
		return nil, err
	}

	files, err := s.repos.Items(s.db).Files(ctx, tenant, &folderID)
	if err != nil {
		return nil, err
	}

	entries := make([]archiveEntry, 0, len(files))
	for _, f := range files {
		if f.FilePath == "" {
			s.logger.Warn(ctx, "skipping file with no stored path", "item", f.ID, "name", f.Name)
			if s.metrics != nil {
				s.metrics.ArchiveSkipped.Inc()
			}
			continue
		}
		rel := strings.TrimPrefix(f.FilePath, folderPath+"/")
		entries = append(entries, archiveEntry{file: f, name: path.Join(rootName, rel)})
	}
	return entries, nil
}

// FolderArchive streams a zip of the folder's entire non-deleted subtree.
// Entry names are rooted at folderName so the archive unpacks into a single
// directory. The returned reader must be fully consumed or closed.
func (s *ArchiveService) FolderArchive(ctx context.Context, tenant models.Tenant, folderID int64, folderName string) (io.ReadCloser, error) {
	bytes, files, err := s.size.FolderSize(ctx, tenant, &folderID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCeilings(bytes, files); err != nil {
		return nil, err
	}

	entries, err := s.folderEntries(ctx, tenant, folderID, folderName)
	if err != nil {
		return nil, err
	}
	return s.stream(ctx, tenant, entries), nil
}

// MultiItemArchive streams a zip of an arbitrary selection. Files land at
// the top level under their display name; each folder becomes a directory
// named after itself containing its subtree. Logically deleted items are
// skipped entirely.
func (s *ArchiveService) MultiItemArchive(ctx context.Context, tenant models.Tenant, items []*models.Item) (io.ReadCloser, error) {
	var bytes, files int64
	selection := make([]*models.Item, 0, len(items))
	for _, item := range items {
		if item.IsDeleted {
			continue
		}
		selection = append(selection, item)
		switch item.Type {
		case models.ItemTypeFile:
			bytes += item.Size
			files++
		case models.ItemTypeFolder:
			folderID := item.ID
			b, n, err := s.size.FolderSize(ctx, tenant, &folderID)
			if err != nil {
				return nil, err
			}
			bytes += b
			files += n
		}
	}
	if err := s.checkCeilings(bytes, files); err != nil {
		return nil, err
	}

	var entries []archiveEntry
	for _, item := range selection {
		switch item.Type {
		case models.ItemTypeFile:
			if item.FilePath == "" {
				s.logger.Warn(ctx, "skipping file with no stored path", "item", item.ID, "name", item.Name)
				if s.metrics != nil {
					s.metrics.ArchiveSkipped.Inc()
				}
				continue
			}
			entries = append(entries, archiveEntry{file: item, name: item.Name})
		case models.ItemTypeFolder:
			sub, err := s.folderEntries(ctx, tenant, item.ID, item.Name)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sub...)
		}
	}
	return s.stream(ctx, tenant, entries), nil
}

// stream builds the zip on a pipe so the archive is produced as the caller
// reads. A file that went missing between the metadata listing and the read
// is skipped with a warning rather than aborting the whole archive.
func (s *ArchiveService) stream(ctx context.Context, tenant models.Tenant, entries []archiveEntry) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		zw := zip.NewWriter(pw)
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, flate.BestSpeed)
		})

		for _, e := range entries {
			if err := s.writeEntry(ctx, zw, tenant, e); err != nil {
				zw.Close()
				pw.CloseWithError(err)
				return
			}
		}

		if err := zw.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	return pr
}

func (s *ArchiveService) writeEntry(ctx context.Context, zw *zip.Writer, tenant models.Tenant, e archiveEntry) error {
	src, err := s.store.Open(ctx, tenant, e.file.FilePath)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "skipping missing file", "item", e.file.ID, "path", e.file.FilePath)
			if s.metrics != nil {
				s.metrics.ArchiveSkipped.Inc()
			}
			return nil
		}
		return err
	}
	defer src.Close()

	hdr := &zip.FileHeader{
		Name:     e.name,
		Method:   zip.Deflate,
		Modified: e.file.UpdatedAt,
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ArchiveEntries.Inc()
	}
	return nil
}
