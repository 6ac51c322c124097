// Package gc implements the background reclaimer from spec.md §4.6: a
// periodic scheduler running registered collectors, each on its own cadence,
// tolerating partial per-item failure within a cycle.
//
// The scheduler loop is grounded on the teacher's internal/cleanup.RunPeriodic
// (ticker + immediate first pass + cooperative ctx.Done() exit); bounded
// concurrency within a cycle generalizes internal/middleware.UploadLimiter's
// semaphore into golang.org/x/sync/errgroup's Go/SetLimit pattern, which
// additionally gives each failing item's error back to the caller instead of
// just rejecting admission.
package gc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Collector is one reclaiming task the scheduler drives. Name identifies it
// in logs and metrics; ShouldRun lets collectors run on cadences slower than
// the scheduler's own tick (§4.6: "honoring each collector's own schedule").
type Collector interface {
	Name() string
	ShouldRun(now time.Time, lastRun time.Time) bool
	Collect(ctx context.Context) (count int, err error)
}

// CycleResult aggregates one scheduler tick's outcome across every collector
// that ran, per §4.6's "cycle result".
type CycleResult struct {
	Counts map[string]int
	Errors map[string]error
}

// Successful reports whether the cycle's error list is empty.
func (r CycleResult) Successful() bool { return len(r.Errors) == 0 }

// HasDeletions reports whether any collector reported a positive count.
func (r CycleResult) HasDeletions() bool {
	for _, c := range r.Counts {
		if c > 0 {
			return true
		}
	}
	return false
}

// Scheduler runs registered collectors on a fixed tick, tracking each one's
// last-run time so collectors can opt out of a given tick (§4.6 cadence).
type Scheduler struct {
	interval   time.Duration
	collectors []Collector
	lastRun    map[string]time.Time
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a Scheduler. Collectors run in the order they're registered,
// per §4.6: "iterates registered collectors in fixed order".
func New(interval time.Duration, log zerolog.Logger, collectors ...Collector) *Scheduler {
	return &Scheduler{
		interval:   interval,
		collectors: collectors,
		lastRun:    make(map[string]time.Time, len(collectors)),
		log:        log,
		now:        time.Now,
	}
}

// RunOnce executes a single cycle immediately, honoring each collector's
// ShouldRun predicate. Exposed directly so cmd/storagectl's "gc run-once"
// subcommand can trigger a cycle outside the periodic loop.
func (s *Scheduler) RunOnce(ctx context.Context, concurrency int) CycleResult {
	now := s.now()
	result := CycleResult{Counts: map[string]int{}, Errors: map[string]error{}}

	for _, c := range s.collectors {
		if !c.ShouldRun(now, s.lastRun[c.Name()]) {
			continue
		}
		count, err := c.Collect(ctx)
		s.lastRun[c.Name()] = now
		result.Counts[c.Name()] = count
		if err != nil {
			result.Errors[c.Name()] = err
		}
	}

	switch {
	case !result.Successful():
		s.log.Error().Interface("errors", errStrings(result.Errors)).Interface("counts", result.Counts).Msg("gc cycle completed with errors")
	case result.HasDeletions():
		s.log.Info().Interface("counts", result.Counts).Msg("gc cycle completed")
	}
	return result
}

func errStrings(errs map[string]error) map[string]string {
	out := make(map[string]string, len(errs))
	for k, v := range errs {
		out[k] = v.Error()
	}
	return out
}

// Run starts the periodic loop, ticking every interval until ctx is
// cancelled. An immediate first cycle runs at startup, mirroring
// internal/cleanup.RunPeriodic's "flush leftovers from a prior run" behavior.
func (s *Scheduler) Run(ctx context.Context, concurrency int) {
	s.RunOnce(ctx, concurrency)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx, concurrency)
		case <-ctx.Done():
			s.log.Info().Msg("gc scheduler stopping: context cancelled")
			return
		}
	}
}

// boundedEach runs fn over items with at most `concurrency` in flight at
// once, collecting the per-item error instead of aborting the batch —
// exactly the "per-blob failures are captured as structured results; the
// cycle continues" requirement of §4.6.
func boundedEach[T any](ctx context.Context, concurrency int, items []T, fn func(context.Context, T) error) []error {
	if concurrency <= 0 {
		concurrency = 1
	}
	errs := make([]error, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			errs[i] = fn(gctx, item)
			return nil // never abort the group; errors are per-item, not fatal to the batch
		})
	}
	_ = g.Wait()
	return errs
}
