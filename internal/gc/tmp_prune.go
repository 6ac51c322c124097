package gc

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/zynqcloud/objectstore/internal/domain"
	"github.com/zynqcloud/objectstore/internal/fsstore"
)

// TmpPruneCollector is the "recommended auxiliary mechanism" spec.md §9
// mentions but does not mandate a schedule for: age-pruning each tier's
// tmp/ directory so crashed or cancelled uploads don't accumulate forever.
// Registered as an independent, optional collector rather than folded into
// the orphan collector, since its target (stray files) and cadence concerns
// are unrelated to blob refcounts.
type TmpPruneCollector struct {
	fs      *fsstore.Driver
	ttl     time.Duration
	classes []domain.StorageClass
	log     zerolog.Logger
}

func NewTmpPruneCollector(fs *fsstore.Driver, ttl time.Duration, log zerolog.Logger) *TmpPruneCollector {
	return &TmpPruneCollector{fs: fs, ttl: ttl, classes: []domain.StorageClass{domain.Hot, domain.Cold}, log: log}
}

func (c *TmpPruneCollector) Name() string { return "tmp_prune" }

func (c *TmpPruneCollector) ShouldRun(now, lastRun time.Time) bool { return true }

func (c *TmpPruneCollector) Collect(ctx context.Context) (int, error) {
	total := 0
	var firstErr error
	for _, class := range c.classes {
		n, err := c.fs.PruneTemp(ctx, class, c.ttl, c.log)
		total += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return total, firstErr
}
