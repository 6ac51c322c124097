// Package memstore is an in-memory implementation of pgstore.Store used by
// unit and scenario tests that exercise orchestrator logic without a live
// database — in the spirit of the teacher's table-driven
// internal/store/local_test.go, which exercises the filesystem driver
// against a real (but temporary) filesystem rather than a mock.
//
// All mutation goes through a single mutex; this is deliberately simpler
// than the GORM driver's row-level locking, but it gives the contract in
// pgstore.Store (§4.2's atomicity guarantees) the same race-free semantics
// for test purposes.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
	"github.com/zynqcloud/objectstore/internal/pgstore"
)

type blobKey struct {
	hash  domain.ContentHash
	class domain.StorageClass
}

// Store is a pgstore.Store backed by in-process maps.
type Store struct {
	mu      sync.Mutex
	objects map[uuid.UUID]*domain.Object
	blobs   map[blobKey]*domain.Blob
	now     func() time.Time
}

// New creates an empty Store. now defaults to time.Now if nil, letting tests
// inject a deterministic clock.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		objects: make(map[uuid.UUID]*domain.Object),
		blobs:   make(map[blobKey]*domain.Blob),
		now:     now,
	}
}

var _ pgstore.Store = (*Store)(nil)

func clone(o *domain.Object) *domain.Object {
	cp := *o
	meta := make(domain.Metadata, len(o.Metadata))
	for k, v := range o.Metadata {
		meta[k] = v
	}
	cp.Metadata = meta
	if o.Key != nil {
		k := *o.Key
		cp.Key = &k
	}
	return &cp
}

func (s *Store) SaveObject(_ context.Context, obj *domain.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj.Key != nil && obj.Status != domain.StatusDeleted {
		for id, existing := range s.objects {
			if id == obj.ID || existing.Status == domain.StatusDeleted || existing.Key == nil {
				continue
			}
			if existing.Namespace == obj.Namespace && existing.TenantID == obj.TenantID && *existing.Key == *obj.Key {
				return apperr.New(apperr.InvalidRequest, "memstore.SaveObject",
					fmt.Sprintf("key %q already in use for this namespace/tenant", *obj.Key))
			}
		}
	}
	s.objects[obj.ID] = clone(obj)
	return nil
}

func (s *Store) FindObjectByID(ctx context.Context, id uuid.UUID) (*domain.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok || o.Status != domain.StatusCommitted {
		return nil, apperr.New(apperr.NotFound, "memstore.FindObjectByID", "object not found")
	}
	return clone(o), nil
}

func (s *Store) FindObjectByKey(_ context.Context, namespace string, tenantID uuid.UUID, key string) (*domain.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.objects {
		if o.Status == domain.StatusCommitted && o.Namespace == namespace && o.TenantID == tenantID && o.Key != nil && *o.Key == key {
			return clone(o), nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "memstore.FindObjectByKey", "object not found")
}

func (s *Store) LoadObjectAny(_ context.Context, id uuid.UUID) (*domain.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "memstore.LoadObjectAny", "object not found")
	}
	return clone(o), nil
}

func (s *Store) ListObjects(_ context.Context, namespace string, tenantID uuid.UUID, limit, offset int) ([]*domain.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Object
	for _, o := range s.objects {
		if o.Status == domain.StatusCommitted && o.Namespace == namespace && o.TenantID == tenantID {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (s *Store) SearchObjects(_ context.Context, f pgstore.ObjectFilter) ([]*domain.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Object
	for _, o := range s.objects {
		if o.Status != domain.StatusCommitted {
			continue
		}
		if f.Namespace != "" && o.Namespace != f.Namespace {
			continue
		}
		if f.TenantID != uuid.Nil && o.TenantID != f.TenantID {
			continue
		}
		if f.KeySubstring != "" && (o.Key == nil || !strings.Contains(*o.Key, f.KeySubstring)) {
			continue
		}
		if f.ContentType != "" && o.ContentType != f.ContentType {
			continue
		}
		if f.StorageClass != nil && o.StorageClass != *f.StorageClass {
			continue
		}
		if f.MinSize != nil && o.SizeBytes < *f.MinSize {
			continue
		}
		if f.MaxSize != nil && o.SizeBytes > *f.MaxSize {
			continue
		}
		if f.CreatedAfter != nil && o.CreatedAt.Unix() < *f.CreatedAfter {
			continue
		}
		if f.CreatedBefore != nil && o.CreatedAt.Unix() > *f.CreatedBefore {
			continue
		}
		if f.UpdatedAfter != nil && o.UpdatedAt.Unix() < *f.UpdatedAfter {
			continue
		}
		if f.UpdatedBefore != nil && o.UpdatedAt.Unix() > *f.UpdatedBefore {
			continue
		}
		if f.MetadataKey != "" && o.Metadata[f.MetadataKey] != f.MetadataValue {
			continue
		}
		out = append(out, clone(o))
	}
	sortObjects(out, f.SortBy, f.SortDescending)
	return paginate(out, f.Limit, f.Offset), nil
}

func (s *Store) TextSearchObjects(_ context.Context, namespace string, tenantID uuid.UUID, query string, limit, offset int) ([]*domain.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []*domain.Object
	for _, o := range s.objects {
		if o.Status != domain.StatusCommitted || o.Namespace != namespace || o.TenantID != tenantID {
			continue
		}
		hay := strings.ToLower(metaBlob(o))
		if (o.Key != nil && strings.Contains(strings.ToLower(*o.Key), q)) || strings.Contains(hay, q) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func metaBlob(o *domain.Object) string {
	var b strings.Builder
	for k, v := range o.Metadata {
		b.WriteString(k)
		b.WriteByte(' ')
		b.WriteString(v)
		b.WriteByte(' ')
	}
	return b.String()
}

func sortObjects(objs []*domain.Object, by pgstore.SortField, desc bool) {
	less := func(i, j int) bool {
		a, b := objs[i], objs[j]
		switch by {
		case pgstore.SortUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		case pgstore.SortSizeBytes:
			return a.SizeBytes < b.SizeBytes
		case pgstore.SortKey:
			ak, bk := "", ""
			if a.Key != nil {
				ak = *a.Key
			}
			if b.Key != nil {
				bk = *b.Key
			}
			return ak < bk
		case pgstore.SortContentType:
			return a.ContentType < b.ContentType
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.Slice(objs, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *Store) DeleteObject(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, id)
	return nil
}

func (s *Store) FindStuckWritingObjects(_ context.Context, ageHours float64, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-time.Duration(ageHours * float64(time.Hour)))
	var ids []uuid.UUID
	for _, o := range s.objects {
		if o.Status == domain.StatusWriting && o.CreatedAt.Before(cutoff) {
			ids = append(ids, o.ID)
			if limit > 0 && len(ids) >= limit {
				break
			}
		}
	}
	return ids, nil
}

func (s *Store) GetOrCreateBlob(_ context.Context, hash domain.ContentHash, class domain.StorageClass, sizeBytes int64) (*domain.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := blobKey{hash, class}
	if b, ok := s.blobs[key]; ok {
		b.RefCount++
		cp := *b
		return &cp, nil
	}
	b := &domain.Blob{ContentHash: hash, StorageClass: class, SizeBytes: sizeBytes, RefCount: 1, CreatedAt: s.now()}
	s.blobs[key] = b
	cp := *b
	return &cp, nil
}

func (s *Store) IncrementRefBlob(_ context.Context, hash domain.ContentHash, class domain.StorageClass) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := blobKey{hash, class}
	b, ok := s.blobs[key]
	if !ok {
		return 0, apperr.New(apperr.NotFound, "memstore.IncrementRefBlob", "blob not found")
	}
	b.RefCount++
	return b.RefCount, nil
}

func (s *Store) DecrementRefBlob(_ context.Context, hash domain.ContentHash, class domain.StorageClass) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := blobKey{hash, class}
	b, ok := s.blobs[key]
	if !ok {
		return 0, apperr.New(apperr.NotFound, "memstore.DecrementRefBlob", "blob not found")
	}
	if err := domain.ValidateDecrement(b.RefCount); err != nil {
		return 0, err
	}
	b.RefCount--
	return b.RefCount, nil
}

func (s *Store) FindOrphanedBlobs(_ context.Context, limit int) ([]*domain.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Blob
	for _, b := range s.blobs {
		if b.RefCount == 0 {
			cp := *b
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) DeleteBlob(_ context.Context, hash domain.ContentHash, class domain.StorageClass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := blobKey{hash, class}
	b, ok := s.blobs[key]
	if !ok || b.RefCount != 0 {
		return apperr.New(apperr.NotFound, "memstore.DeleteBlob", "blob not found or no longer orphaned")
	}
	delete(s.blobs, key)
	return nil
}

func (s *Store) GetBlob(_ context.Context, hash domain.ContentHash, class domain.StorageClass) (*domain.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[blobKey{hash, class}]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "memstore.GetBlob", "blob not found")
	}
	cp := *b
	return &cp, nil
}
