package gc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/pgstore"
)

var stuckUploadsReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "objectstore_gc_stuck_uploads_reclaimed_total",
	Help: "WRITING objects deleted by the GC stuck-upload collector.",
})

func init() {
	prometheus.MustRegister(stuckUploadsReclaimed)
}

// StuckUploadCollector implements spec.md §4.6's stuck-upload collector:
// objects left in WRITING past a configured age are recovered by deleting
// the row outright — no blob was ever referenced by them, so storage is
// untouched (scenario S5).
type StuckUploadCollector struct {
	db          pgstore.Store
	ageHours    float64
	cycleRatio  int // run once per cycleRatio scheduler ticks
	batchSize   int
	concurrency int
	log         zerolog.Logger
	ticks       int
}

func NewStuckUploadCollector(db pgstore.Store, ageHours float64, cycleRatio, batchSize, concurrency int, log zerolog.Logger) *StuckUploadCollector {
	if cycleRatio <= 0 {
		cycleRatio = 1
	}
	return &StuckUploadCollector{db: db, ageHours: ageHours, cycleRatio: cycleRatio, batchSize: batchSize, concurrency: concurrency, log: log}
}

func (c *StuckUploadCollector) Name() string { return "stuck_uploads" }

// ShouldRun fires once every cycleRatio scheduler ticks (§4.6: "runs on a
// separate, longer cadence... 1x per N orphan-cycles"), tracked by a local
// tick counter rather than wall-clock time since the scheduler's own
// interval is the unit of cadence here.
func (c *StuckUploadCollector) ShouldRun(now, lastRun time.Time) bool {
	c.ticks++
	return c.ticks%c.cycleRatio == 1 || c.cycleRatio == 1
}

func (c *StuckUploadCollector) Collect(ctx context.Context) (int, error) {
	ids, err := c.db.FindStuckWritingObjects(ctx, c.ageHours, c.batchSize)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	errs := boundedEach(ctx, c.concurrency, ids, func(ctx context.Context, id uuid.UUID) error {
		if err := c.db.DeleteObject(ctx, id); err != nil && apperr.KindOf(err) != apperr.NotFound {
			return err
		}
		return nil
	})

	reclaimed := 0
	var firstErr error
	for i, err := range errs {
		if err == nil {
			reclaimed++
			continue
		}
		c.log.Warn().Err(err).Str("object_id", ids[i].String()).Msg("stuck upload reclaim failed")
		if firstErr == nil {
			firstErr = err
		}
	}
	stuckUploadsReclaimed.Add(float64(reclaimed))
	return reclaimed, firstErr
}
