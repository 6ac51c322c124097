package gc

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
	"github.com/zynqcloud/objectstore/internal/fsstore"
	"github.com/zynqcloud/objectstore/internal/pgstore"
)

var (
	orphansDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "objectstore_gc_orphaned_blobs_deleted_total",
		Help: "Orphaned blob records (and their files) reclaimed by the GC orphan collector.",
	})
	orphanDeleteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "objectstore_gc_orphan_delete_errors_total",
		Help: "Errors encountered deleting an orphaned blob's file or record, by failure stage.",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(orphansDeleted, orphanDeleteErrors)
}

// OrphanedBlobCollector implements spec.md §4.6's orphaned-blob collector:
// every cycle, find blobs at ref_count == 0 and delete the file then the
// record, bounded by concurrency, tolerating per-blob failure.
type OrphanedBlobCollector struct {
	db          pgstore.Store
	fs          *fsstore.Driver
	batchSize   int
	concurrency int
	log         zerolog.Logger
}

func NewOrphanedBlobCollector(db pgstore.Store, fs *fsstore.Driver, batchSize, concurrency int, log zerolog.Logger) *OrphanedBlobCollector {
	return &OrphanedBlobCollector{db: db, fs: fs, batchSize: batchSize, concurrency: concurrency, log: log}
}

func (c *OrphanedBlobCollector) Name() string { return "orphaned_blobs" }

// ShouldRun always runs this collector on its host scheduler's own tick —
// the orphan collector is the scheduler's baseline cadence (§4.6).
func (c *OrphanedBlobCollector) ShouldRun(now, lastRun time.Time) bool { return true }

// Collect queries find_orphaned(batch_size) and deletes each blob's file
// then its record. Success is counted on persistence-delete success only;
// filesystem failures are logged, not retried in-cycle (§4.6: "a later
// cycle, or the manual retry path, handles them").
func (c *OrphanedBlobCollector) Collect(ctx context.Context) (int, error) {
	blobs, err := c.db.FindOrphanedBlobs(ctx, c.batchSize)
	if err != nil {
		return 0, err
	}
	if len(blobs) == 0 {
		return 0, nil
	}

	errs := boundedEach(ctx, c.concurrency, blobs, func(ctx context.Context, b *domain.Blob) error {
		return c.reclaim(ctx, b)
	})

	deleted := 0
	var firstErr error
	for i, err := range errs {
		if err == nil {
			deleted++
			continue
		}
		c.log.Warn().Err(err).Str("content_hash", blobs[i].ContentHash.String()).
			Str("storage_class", string(blobs[i].StorageClass)).Msg("orphan reclaim failed")
		if firstErr == nil {
			firstErr = err
		}
	}
	orphansDeleted.Add(float64(deleted))
	return deleted, firstErr
}

func (c *OrphanedBlobCollector) reclaim(ctx context.Context, b *domain.Blob) error {
	// Re-check ref_count == 0 immediately before physical deletion, per §5's
	// stricter GC re-check: a concurrent get_or_create between the original
	// find_orphaned scan and now may have resurrected this blob.
	fresh, err := c.db.GetBlob(ctx, b.ContentHash, b.StorageClass)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil // already reclaimed by a concurrent cycle
		}
		orphanDeleteErrors.WithLabelValues("recheck").Inc()
		return err
	}
	if !fresh.Orphaned() {
		return nil // resurrected since the scan; leave it alone
	}

	if err := c.fs.Delete(ctx, b.StorageClass, b.ContentHash); err != nil && apperr.KindOf(err) != apperr.NotFound {
		// NOT_FOUND here is benign (§7): another path already removed the
		// file. Any other filesystem error is logged but does not block the
		// record delete below.
		orphanDeleteErrors.WithLabelValues("filesystem").Inc()
		c.log.Warn().Err(err).Str("content_hash", b.ContentHash.String()).Msg("orphan file delete failed")
	}
	if err := c.db.DeleteBlob(ctx, b.ContentHash, b.StorageClass); err != nil && apperr.KindOf(err) != apperr.NotFound {
		orphanDeleteErrors.WithLabelValues("persistence").Inc()
		return err
	}
	return nil
}
