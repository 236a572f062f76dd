package services

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/cloudcrate/cloudcrate/internal/dbx"
	"github.com/cloudcrate/cloudcrate/internal/logging"
	"github.com/cloudcrate/cloudcrate/internal/metrics"
	"github.com/cloudcrate/cloudcrate/internal/models"
	"github.com/cloudcrate/cloudcrate/internal/repositories/repomanager"
	"github.com/cloudcrate/cloudcrate/internal/storage"
)

// DefaultReaperBatchSize bounds how many expired items one batch handles.
const DefaultReaperBatchSize = 500

// TrashReaper permanently removes trashed items once their retention period
// has passed: physical bytes first, then the metadata rows, in bounded
// batches processed independently of each other.
//
// A failed physical delete is logged and the item's metadata is still
// removed with its batch. A failed metadata delete leaves the batch's rows
// in place for the next pass.
type TrashReaper struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	store     storage.Adapter
	logger    logging.Logger
	metrics   *metrics.StorageMetrics
	retention time.Duration
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewTrashReaper(db *sql.DB, repos repomanager.RepositoryManager, store storage.Adapter, logger logging.Logger, m *metrics.StorageMetrics, retention, interval time.Duration, batchSize int) *TrashReaper {
	if batchSize <= 0 {
		batchSize = DefaultReaperBatchSize
	}
	return &TrashReaper{
		db:        db,
		repos:     repos,
		store:     store,
		logger:    logger,
		metrics:   m,
		retention: retention,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// CleanupExpired removes every item whose deletion timestamp is at or before
// now-retention (the boundary is inclusive) and returns how many metadata
// rows were actually deleted. A failure in one batch never prevents later
// batches from running.
func (r *TrashReaper) CleanupExpired(ctx context.Context) (int, error) {
	threshold := r.now().Add(-r.retention)

	ids, err := r.repos.Items(r.db).ExpiredIDs(ctx, threshold)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	total := 0
	for batch := range slices.Chunk(ids, r.batchSize) {
		total += r.reapBatch(ctx, batch)
	}

	r.logger.Info(ctx, "trash cleanup finished", "expired", len(ids), "reaped", total)
	return total, nil
}

// reapBatch handles one batch independently: physical deletes item by item
// with failures downgraded to warnings, then one transactional metadata
// delete for the whole batch. A failed metadata delete contributes zero;
// physical deletions already attempted are not rolled back.
func (r *TrashReaper) reapBatch(ctx context.Context, batch []int64) int {
	items, err := r.repos.Items(r.db).GetByIDs(ctx, batch)
	if err != nil {
		r.logger.Error(ctx, "failed to load reaper batch", "error", err, "batch_size", len(batch))
		if r.metrics != nil {
			r.metrics.ReapBatchErrors.Inc()
		}
		return 0
	}

	for _, item := range items {
		if err := r.deletePhysical(ctx, item); err != nil {
			r.logger.Warn(ctx, "physical delete failed, metadata will still be removed",
				"item", item.ID, "type", item.Type, "error", err)
			if r.metrics != nil {
				r.metrics.ReapPhysicalErrors.Inc()
			}
		}
	}

	var removed int64
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		removed, err = r.repos.Items(tx).DeleteBatch(ctx, batch)
		return err
	})
	if err != nil {
		r.logger.Error(ctx, "metadata delete failed for batch", "error", err, "batch_size", len(batch))
		if r.metrics != nil {
			r.metrics.ReapBatchErrors.Inc()
		}
		return 0
	}

	if r.metrics != nil {
		r.metrics.ItemsReaped.Add(float64(removed))
	}
	return int(removed)
}

func (r *TrashReaper) deletePhysical(ctx context.Context, item *models.Item) error {
	if item.IsFolder() {
		folderPath, err := r.repos.Items(r.db).FolderPath(ctx, item.ID)
		if err != nil {
			return err
		}
		return r.store.Delete(ctx, item, folderPath)
	}
	return r.store.Delete(ctx, item, "")
}

// Run executes cleanup passes on the configured interval until the context
// is cancelled.
func (r *TrashReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info(ctx, "trash reaper started", "interval", r.interval, "retention", r.retention)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "trash reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.CleanupExpired(ctx); err != nil {
				r.logger.Error(ctx, "trash cleanup pass failed", "error", err)
			}
		}
	}
}
