// Package pgstore implements the persistence driver contract from
// spec.md §4.2: durable object/blob records plus the atomic refcount
// operations the upload, delete and GC paths depend on.
//
// Two implementations satisfy the Store interface: a GORM-backed driver
// (gorm.go, objects.go, blobs.go) fronting either PostgreSQL or SQLite —
// grounded on marmos91-dittofs's pkg/controlplane/store package — and an
// in-memory implementation (memstore/) for tests that should not need a
// live database.
package pgstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/zynqcloud/objectstore/internal/domain"
)

// ObjectFilter is the search surface described in spec.md §6's `search`
// operation.
type ObjectFilter struct {
	Namespace     string
	TenantID      uuid.UUID
	KeySubstring  string
	ContentType   string
	StorageClass  *domain.StorageClass
	MinSize       *int64
	MaxSize       *int64
	CreatedAfter  *int64 // unix seconds, nil = unbounded
	CreatedBefore *int64
	UpdatedAfter  *int64
	UpdatedBefore *int64
	MetadataKey   string // metadata[MetadataKey] == MetadataValue, applied when MetadataKey is set
	MetadataValue string

	SortBy         SortField
	SortDescending bool

	Limit  int
	Offset int
}

// SortField enumerates the columns spec.md §6 allows sorting `search` by.
type SortField string

const (
	SortCreatedAt  SortField = "created_at"
	SortUpdatedAt  SortField = "updated_at"
	SortSizeBytes  SortField = "size_bytes"
	SortKey        SortField = "key"
	SortContentType SortField = "content_type"
)

// Store is the persistence driver contract. Every method is its own
// transaction (§4.2: "Each operation is its own transaction").
type Store interface {
	// SaveObject inserts or updates by id (§4.2 save).
	SaveObject(ctx context.Context, obj *domain.Object) error

	// FindObjectByID returns a COMMITTED object only; WRITING/DELETING/DELETED
	// records are invisible (§4.2 find_by_id).
	FindObjectByID(ctx context.Context, id uuid.UUID) (*domain.Object, error)

	// FindObjectByKey returns a COMMITTED object by (namespace, tenant, key).
	FindObjectByKey(ctx context.Context, namespace string, tenantID uuid.UUID, key string) (*domain.Object, error)

	// LoadObjectAny returns an object in any status, used internally by the
	// delete orchestrator which must load the object before checking that it
	// is COMMITTED and transitioning it.
	LoadObjectAny(ctx context.Context, id uuid.UUID) (*domain.Object, error)

	// ListObjects paginates COMMITTED records newest first (§4.2 list).
	ListObjects(ctx context.Context, namespace string, tenantID uuid.UUID, limit, offset int) ([]*domain.Object, error)

	// SearchObjects implements the `search` service operation (§6).
	SearchObjects(ctx context.Context, filter ObjectFilter) ([]*domain.Object, error)

	// TextSearchObjects implements `text_search` (§6): full-text over
	// metadata and/or key.
	TextSearchObjects(ctx context.Context, namespace string, tenantID uuid.UUID, query string, limit, offset int) ([]*domain.Object, error)

	// DeleteObject removes a record by id (§4.2 delete).
	DeleteObject(ctx context.Context, id uuid.UUID) error

	// FindStuckWritingObjects returns ids of objects in WRITING older than
	// ageHours (§4.2 find_stuck_writing_objects).
	FindStuckWritingObjects(ctx context.Context, ageHours float64, limit int) ([]uuid.UUID, error)

	// GetOrCreateBlob atomically increments ref_count on an existing blob or
	// inserts a new one with ref_count = 1 (§4.2 get_or_create). Race-free
	// against concurrent callers for the same (contentHash, class).
	GetOrCreateBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass, sizeBytes int64) (*domain.Blob, error)

	// IncrementRefBlob atomically increments ref_count and returns the new value.
	IncrementRefBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass) (int64, error)

	// DecrementRefBlob atomically decrements ref_count and returns the new
	// value. Returns an apperr.Integrity error on underflow, never a
	// negative count (§4.2, §7).
	DecrementRefBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass) (int64, error)

	// FindOrphanedBlobs returns up to limit blobs with ref_count == 0
	// (§4.2 find_orphaned).
	FindOrphanedBlobs(ctx context.Context, limit int) ([]*domain.Blob, error)

	// DeleteBlob removes a blob record (§4.2 delete).
	DeleteBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass) error

	// GetBlob loads a blob row without mutating it, used by the orphaned-blob
	// collector's re-check before physical deletion (§5).
	GetBlob(ctx context.Context, hash domain.ContentHash, class domain.StorageClass) (*domain.Blob, error)
}
