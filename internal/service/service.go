// Package service implements the seven service-boundary operations from
// spec.md §6, wiring the domain state machine, the fsstore filesystem
// driver and the pgstore persistence driver together into the upload,
// download, delete, list and search orchestrators of §4.3–§4.5.
package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
	"github.com/zynqcloud/objectstore/internal/fsstore"
	"github.com/zynqcloud/objectstore/internal/pgstore"
)

// ObjectView is the read surface spec.md §6 defines for the service
// boundary: everything about an object except the bytes themselves.
type ObjectView struct {
	ID           uuid.UUID
	Namespace    string
	TenantID     uuid.UUID
	Key          *string
	Status       domain.Status
	StorageClass domain.StorageClass
	ContentHash  *string
	SizeBytes    *int64
	ContentType  string
	Metadata     domain.Metadata
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func newObjectView(o *domain.Object) ObjectView {
	v := ObjectView{
		ID:           o.ID,
		Namespace:    o.Namespace,
		TenantID:     o.TenantID,
		Key:          o.Key,
		Status:       o.Status,
		StorageClass: o.StorageClass,
		ContentType:  o.ContentType,
		Metadata:     o.Metadata,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.HasHash {
		h := o.ContentHash.String()
		v.ContentHash = &h
	}
	if o.HasSize {
		s := o.SizeBytes
		v.SizeBytes = &s
	}
	return v
}

// commitRetries bounds the step-5 retry the Open Question in spec.md §9
// leaves to the implementation: "implementations may perform step 5 with
// bounded retries." A transient persistence hiccup on the commit write gets
// a few tries before the refcount leak is accepted as the lesser evil over
// a double-decrement.
const commitRetries = 3

// Service is the application-layer façade spec.md §6 calls the "service
// boundary" — the seam the (out-of-scope) HTTP layer would call through.
type Service struct {
	fs  *fsstore.Driver
	db  pgstore.Store
	log zerolog.Logger
	now func() time.Time
}

// New wires a Service from its two required collaborators.
func New(fs *fsstore.Driver, db pgstore.Store, log zerolog.Logger) *Service {
	return &Service{fs: fs, db: db, log: log, now: time.Now}
}

// Upload implements the §4.3 orchestrator's six steps.
func (s *Service) Upload(ctx context.Context, namespace string, tenantID uuid.UUID, key *string, class domain.StorageClass, r io.Reader, contentType string, meta domain.Metadata) (ObjectView, error) {
	// Step 1: validate.
	obj, err := domain.NewWriting(namespace, tenantID, key, class, contentType, meta, s.now().UTC())
	if err != nil {
		return ObjectView{}, err
	}

	// Step 2: persist in WRITING.
	if err := s.db.SaveObject(ctx, obj); err != nil {
		return ObjectView{}, apperr.Wrap("service.Upload", apperr.Persistence, err)
	}

	// Step 3: stream, hash, publish.
	result, err := s.fs.Write(ctx, class, r)
	if err != nil {
		// Object remains WRITING; the GC stuck-upload collector reclaims it
		// (§4.3 failure handling).
		return ObjectView{}, err
	}

	// Step 4: atomic get_or_create on the blob.
	if _, err := s.db.GetOrCreateBlob(ctx, result.ContentHash, class, result.SizeBytes); err != nil {
		return ObjectView{}, apperr.Wrap("service.Upload", apperr.Persistence, err)
	}

	// Step 5: commit, with bounded retry on persistence failure. The blob's
	// refcount is now >= 1 with no committed object yet — if every retry
	// fails we leak that refcount rather than risk double-decrementing it,
	// per the Open Question in spec.md §9.
	if err := obj.Commit(result.ContentHash, result.SizeBytes, s.now().UTC()); err != nil {
		return ObjectView{}, err
	}
	var commitErr error
	for attempt := 0; attempt < commitRetries; attempt++ {
		commitErr = s.db.SaveObject(ctx, obj)
		if commitErr == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	if commitErr != nil {
		s.log.Error().Err(commitErr).Str("object_id", obj.ID.String()).Str("content_hash", result.ContentHash.String()).
			Msg("upload commit failed after retries; blob refcount leaked")
		return ObjectView{}, apperr.Wrap("service.Upload", apperr.Persistence, commitErr)
	}

	// Step 6.
	return newObjectView(obj), nil
}

// DownloadByID implements the by-id path of §4.4.
func (s *Service) DownloadByID(ctx context.Context, id uuid.UUID) (ObjectView, io.ReadCloser, error) {
	obj, err := s.db.FindObjectByID(ctx, id)
	if err != nil {
		return ObjectView{}, nil, err
	}
	return s.openBlob(ctx, obj)
}

// DownloadByKey implements the by-key path of §4.4.
func (s *Service) DownloadByKey(ctx context.Context, namespace string, tenantID uuid.UUID, key string) (ObjectView, io.ReadCloser, error) {
	obj, err := s.db.FindObjectByKey(ctx, namespace, tenantID, key)
	if err != nil {
		return ObjectView{}, nil, err
	}
	return s.openBlob(ctx, obj)
}

func (s *Service) openBlob(ctx context.Context, obj *domain.Object) (ObjectView, io.ReadCloser, error) {
	if !obj.Readable() || !obj.HasHash {
		return ObjectView{}, nil, apperr.New(apperr.NotFound, "service.openBlob", "object not found")
	}
	rc, _, err := s.fs.Read(ctx, obj.StorageClass, obj.ContentHash)
	if err != nil {
		return ObjectView{}, nil, err
	}
	return newObjectView(obj), rc, nil
}

// List implements §6's `list` operation.
func (s *Service) List(ctx context.Context, namespace string, tenantID uuid.UUID, limit, offset int) ([]ObjectView, error) {
	objs, err := s.db.ListObjects(ctx, namespace, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	return viewAll(objs), nil
}

// Search implements §6's `search` operation.
func (s *Service) Search(ctx context.Context, filter pgstore.ObjectFilter) ([]ObjectView, error) {
	objs, err := s.db.SearchObjects(ctx, filter)
	if err != nil {
		return nil, err
	}
	return viewAll(objs), nil
}

// TextSearch implements §6's `text_search` operation.
func (s *Service) TextSearch(ctx context.Context, namespace string, tenantID uuid.UUID, query string, limit, offset int) ([]ObjectView, error) {
	objs, err := s.db.TextSearchObjects(ctx, namespace, tenantID, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return viewAll(objs), nil
}

func viewAll(objs []*domain.Object) []ObjectView {
	out := make([]ObjectView, len(objs))
	for i, o := range objs {
		out[i] = newObjectView(o)
	}
	return out
}

// Delete implements the five steps of §4.5.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	// Step 1.
	obj, err := s.db.LoadObjectAny(ctx, id)
	if err != nil {
		return err
	}
	if obj.Status != domain.StatusCommitted {
		return apperr.New(apperr.NotFound, "service.Delete", "object not found")
	}

	// Step 2: DELETING makes the object invisible to readers before any
	// physical work happens.
	if err := obj.BeginDelete(s.now().UTC()); err != nil {
		return err
	}
	if err := s.db.SaveObject(ctx, obj); err != nil {
		return apperr.Wrap("service.Delete", apperr.Persistence, err)
	}

	// Step 3: atomic decrement.
	refCount, err := s.db.DecrementRefBlob(ctx, obj.ContentHash, obj.StorageClass)
	if err != nil {
		return err
	}

	// Step 4: conditional physical reclaim. Failures here are logged, not
	// fatal — GC retries them (§4.5 step 4, §9 "decrement before delete").
	if refCount == 0 {
		if err := s.fs.Delete(ctx, obj.StorageClass, obj.ContentHash); err != nil && apperr.KindOf(err) != apperr.NotFound {
			s.log.Warn().Err(err).Str("content_hash", obj.ContentHash.String()).Msg("physical blob delete failed; GC will retry")
		}
		if err := s.db.DeleteBlob(ctx, obj.ContentHash, obj.StorageClass); err != nil && apperr.KindOf(err) != apperr.NotFound {
			s.log.Warn().Err(err).Str("content_hash", obj.ContentHash.String()).Msg("blob row delete failed; GC will retry")
		}
	}

	// Step 5.
	if err := obj.FinishDelete(s.now().UTC()); err != nil {
		return err
	}
	if err := s.db.SaveObject(ctx, obj); err != nil {
		return apperr.Wrap("service.Delete", apperr.Persistence, err)
	}
	return nil
}
