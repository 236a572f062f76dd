// Package metrics holds the Prometheus instrumentation for the storage
// engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storageMetricsOnce ensures metrics are only registered once.
var storageMetricsOnce sync.Once

// storageMetricsInstance is the singleton instance of storage metrics.
var storageMetricsInstance *StorageMetrics

// StorageMetrics holds all Prometheus metrics for the storage engine.
type StorageMetrics struct {
	// Trash reaper outcomes
	ItemsReaped        prometheus.Counter // metadata rows permanently removed
	ReapPhysicalErrors prometheus.Counter // per-item physical deletes downgraded to warnings
	ReapBatchErrors    prometheus.Counter // whole-batch metadata deletes that failed

	// Quota counter adjustments, labelled by tenant kind and direction
	QuotaAdjustedMB *prometheus.CounterVec // cloudcrate_quota_adjusted_mb_total{tenant,op}

	// Archive streaming
	ArchiveEntries prometheus.Counter
	ArchiveSkipped prometheus.Counter // stale metadata records skipped with a warning
}

// InitStorageMetrics initializes all storage metrics. Metrics are only
// registered once; subsequent calls return the same instance. Pass nil to
// use the default Prometheus registry.
func InitStorageMetrics(registry prometheus.Registerer) *StorageMetrics {
	storageMetricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		storageMetricsInstance = &StorageMetrics{
			ItemsReaped: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "cloudcrate_trash_items_reaped_total",
				Help: "Metadata rows permanently removed by the trash reaper",
			}),

			ReapPhysicalErrors: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "cloudcrate_trash_physical_delete_errors_total",
				Help: "Physical deletes that failed during reaping and were skipped",
			}),

			ReapBatchErrors: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "cloudcrate_trash_batch_errors_total",
				Help: "Reaper batches whose metadata delete failed",
			}),

			QuotaAdjustedMB: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "cloudcrate_quota_adjusted_mb_total",
				Help: "Megabytes added to or removed from usage counters",
			}, []string{"tenant", "op"}),

			ArchiveEntries: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "cloudcrate_archive_entries_total",
				Help: "Files streamed into archives",
			}),

			ArchiveSkipped: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "cloudcrate_archive_skipped_total",
				Help: "Stale metadata records skipped while building archives",
			}),
		}
	})

	return storageMetricsInstance
}
