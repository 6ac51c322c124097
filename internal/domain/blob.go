package domain

import (
	"time"

	"github.com/zynqcloud/objectstore/internal/apperr"
)

// Blob is the aggregate described in spec.md §3: the physical, content
// addressed payload, keyed by (ContentHash, StorageClass). It is never
// owned by a single Object — RefCount governs its lifetime.
type Blob struct {
	ContentHash  ContentHash
	StorageClass StorageClass
	SizeBytes    int64
	RefCount     int64
	CreatedAt    time.Time
}

// Orphaned reports whether this blob has no live referrers and is therefore
// GC-eligible (§3: "A blob is GC-eligible iff ref_count == 0").
func (b *Blob) Orphaned() bool { return b.RefCount == 0 }

// ValidateDecrement guards against the underflow §4.2 and §7 both forbid:
// decrement_ref must never produce a negative count. Callers use this to
// classify a would-be-negative result as an INTEGRITY error rather than
// silently clamping it, since it indicates a refcount bookkeeping bug
// upstream rather than a normal runtime condition.
func ValidateDecrement(current int64) error {
	if current <= 0 {
		return apperr.New(apperr.Integrity, "domain.Blob.decrement",
			"ref_count underflow: decrement attempted at ref_count <= 0")
	}
	return nil
}
