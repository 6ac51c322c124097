package fsstore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/zynqcloud/objectstore/internal/domain"
)

// PruneTemp removes entries under tier's tmp/ directory whose mtime predates
// ttl. Spec.md §9 calls this "a recommended auxiliary mechanism" for the
// orphan temp files that a crashed upload leaves behind — they are never
// interpreted as blobs (they never live under sha256/), so it is always
// safe to age them out.
//
// Generalizes the teacher's internal/cleanup.Sessions, which pruned the
// chunked-upload staging directory (.uploads/<session>/); this applies the
// same age-cutoff directory scan to each tier's CAS tmp/ directory instead.
func (d *Driver) PruneTemp(ctx context.Context, class domain.StorageClass, ttl time.Duration, log zerolog.Logger) (removed int, err error) {
	root, err := d.root(class)
	if err != nil {
		return 0, err
	}
	tmpDir := filepath.Join(root, "tmp")

	entries, readErr := os.ReadDir(tmpDir)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return 0, nil
		}
		return 0, readErr
	}

	cutoff := time.Now().Add(-ttl)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(tmpDir, e.Name())
		if rmErr := os.Remove(path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", path).Msg("tmp prune: remove failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("tier", string(class)).Msg("tmp prune: cycle complete")
	}
	return removed, nil
}
