package service_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
	"github.com/zynqcloud/objectstore/internal/fsstore"
	"github.com/zynqcloud/objectstore/internal/pgstore/memstore"
	"github.com/zynqcloud/objectstore/internal/service"
)

func newHarness(t *testing.T) *service.Service {
	t.Helper()
	fs, err := fsstore.New(fsstore.Config{
		HotRoot:  filepath.Join(t.TempDir(), "hot"),
		ColdRoot: filepath.Join(t.TempDir(), "cold"),
	})
	require.NoError(t, err)
	db := memstore.New(nil)
	return service.New(fs, db, zerolog.Nop())
}

func strPtr(s string) *string { return &s }

// S1: upload-download round trip with the literal digest the spec names.
func TestS1UploadDownloadRoundTrip(t *testing.T) {
	svc := newHarness(t)
	ctx := context.Background()
	tenant := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	view, err := svc.Upload(ctx, "docs", tenant, strPtr("greeting"), domain.Hot, bytes.NewReader([]byte("hello world")), "", nil)
	require.NoError(t, err)
	require.NotNil(t, view.SizeBytes)
	require.EqualValues(t, 11, *view.SizeBytes)
	require.NotNil(t, view.ContentHash)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde", *view.ContentHash)

	gotView, reader, err := svc.DownloadByID(ctx, view.ID)
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), data)
	require.Equal(t, domain.StatusCommitted, gotView.Status)
}

// S2/S6-lite: deduplication across two distinct keys.
func TestS2Deduplication(t *testing.T) {
	svc := newHarness(t)
	ctx := context.Background()
	tenant := uuid.New()

	a, err := svc.Upload(ctx, "docs", tenant, strPtr("a"), domain.Hot, bytes.NewReader([]byte("dedupe")), "", nil)
	require.NoError(t, err)
	b, err := svc.Upload(ctx, "docs", tenant, strPtr("b"), domain.Hot, bytes.NewReader([]byte("dedupe")), "", nil)
	require.NoError(t, err)

	require.Equal(t, *a.ContentHash, *b.ContentHash)
	require.Equal(t, domain.StatusCommitted, a.Status)
	require.Equal(t, domain.StatusCommitted, b.Status)
}

// S3: deleting the first of two objects sharing a blob leaves the other one
// downloadable; deleting the last one makes it unreadable. The blob row and
// the physical file are not inspected here.
func TestS3DeleteLastReference(t *testing.T) {
	svc := newHarness(t)
	ctx := context.Background()
	tenant := uuid.New()

	a, err := svc.Upload(ctx, "docs", tenant, strPtr("a"), domain.Hot, bytes.NewReader([]byte("dedupe")), "", nil)
	require.NoError(t, err)
	b, err := svc.Upload(ctx, "docs", tenant, strPtr("b"), domain.Hot, bytes.NewReader([]byte("dedupe")), "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, a.ID))
	// Blob still reachable via b.
	_, reader, err := svc.DownloadByID(ctx, b.ID)
	require.NoError(t, err)
	reader.Close()

	require.NoError(t, svc.Delete(ctx, b.ID))
	_, _, err = svc.DownloadByID(ctx, b.ID)
	require.Error(t, err)
}

// S6: ten concurrent uploads of identical bytes leave ten COMMITTED objects
// sharing one content hash. The blob's ref_count is not inspected here;
// TestGetOrCreateBlobConcurrentRace in memstore covers the count.
func TestS6ConcurrentDedupRace(t *testing.T) {
	svc := newHarness(t)
	ctx := context.Background()
	tenant := uuid.New()
	const n = 10

	var wg sync.WaitGroup
	views := make([]service.ObjectView, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			views[i], errs[i] = svc.Upload(ctx, "docs", tenant, strPtr(key), domain.Hot, bytes.NewReader([]byte("same payload")), "", nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	hash := sha256.Sum256([]byte("same payload"))
	want := hex.EncodeToString(hash[:])
	for _, v := range views {
		require.Equal(t, domain.StatusCommitted, v.Status)
		require.Equal(t, want, *v.ContentHash)
	}
}

// Boundary: zero-byte upload succeeds with the empty-string digest.
func TestZeroByteUpload(t *testing.T) {
	svc := newHarness(t)
	ctx := context.Background()

	view, err := svc.Upload(ctx, "docs", uuid.New(), nil, domain.Hot, bytes.NewReader(nil), "", nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, *view.SizeBytes)
	empty := sha256.Sum256(nil)
	require.Equal(t, hex.EncodeToString(empty[:]), *view.ContentHash)
}

// Boundary: identical payload uploaded to both tiers produces independent
// blobs sharing a content hash but distinct storage classes.
func TestHotAndColdAreIndependentBlobs(t *testing.T) {
	svc := newHarness(t)
	ctx := context.Background()
	tenant := uuid.New()

	hot, err := svc.Upload(ctx, "docs", tenant, strPtr("h"), domain.Hot, bytes.NewReader([]byte("same")), "", nil)
	require.NoError(t, err)
	cold, err := svc.Upload(ctx, "docs", tenant, strPtr("c"), domain.Cold, bytes.NewReader([]byte("same")), "", nil)
	require.NoError(t, err)

	require.Equal(t, *hot.ContentHash, *cold.ContentHash)
	require.Equal(t, domain.Hot, hot.StorageClass)
	require.Equal(t, domain.Cold, cold.StorageClass)

	// Deleting one tier's object must not affect the other tier's blob.
	require.NoError(t, svc.Delete(ctx, hot.ID))
	_, reader, err := svc.DownloadByID(ctx, cold.ID)
	require.NoError(t, err)
	reader.Close()
}

func TestDownloadByKey(t *testing.T) {
	svc := newHarness(t)
	ctx := context.Background()
	tenant := uuid.New()

	_, err := svc.Upload(ctx, "docs", tenant, strPtr("greeting"), domain.Hot, bytes.NewReader([]byte("hi")), "text/plain", domain.Metadata{"lang": "en"})
	require.NoError(t, err)

	view, reader, err := svc.DownloadByKey(ctx, "docs", tenant, "greeting")
	require.NoError(t, err)
	defer reader.Close()
	require.Equal(t, "en", view.Metadata["lang"])
}

func TestListAndSearch(t *testing.T) {
	svc := newHarness(t)
	ctx := context.Background()
	tenant := uuid.New()

	for _, k := range []string{"report-1", "report-2", "notes"} {
		_, err := svc.Upload(ctx, "docs", tenant, strPtr(k), domain.Hot, bytes.NewReader([]byte(k)), "text/plain", nil)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "docs", tenant, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	found, err := svc.TextSearch(ctx, "docs", tenant, "report", 10, 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
}

// §3: "key: optional human label, unique per (namespace, tenant_id) when
// present." A second upload reusing a key already COMMITTED in the same
// namespace/tenant must be rejected, not silently accepted.
func TestDuplicateKeyRejected(t *testing.T) {
	svc := newHarness(t)
	ctx := context.Background()
	tenant := uuid.New()

	_, err := svc.Upload(ctx, "docs", tenant, strPtr("greeting"), domain.Hot, bytes.NewReader([]byte("hello")), "", nil)
	require.NoError(t, err)

	_, err = svc.Upload(ctx, "docs", tenant, strPtr("greeting"), domain.Hot, bytes.NewReader([]byte("different bytes")), "", nil)
	require.Error(t, err)
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	// Distinct namespace/tenant or a nil key must not collide.
	_, err = svc.Upload(ctx, "other-namespace", tenant, strPtr("greeting"), domain.Hot, bytes.NewReader([]byte("fine")), "", nil)
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "docs", tenant, nil, domain.Hot, bytes.NewReader([]byte("keyless")), "", nil)
	require.NoError(t, err)
}
