package memstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
	"github.com/zynqcloud/objectstore/internal/pgstore/memstore"
)

func TestGetOrCreateBlobConcurrentRace(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()
	hash := domain.ContentHash{1, 2, 3}

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := s.GetOrCreateBlob(ctx, hash, domain.Hot, 100)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	b, err := s.GetBlob(ctx, hash, domain.Hot)
	require.NoError(t, err)
	require.Equal(t, int64(n), b.RefCount, "ten concurrent get_or_create calls must leave ref_count == 10, never less")
}

func TestDecrementRefBlobUnderflowIsIntegrityError(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()
	hash := domain.ContentHash{9}

	_, err := s.GetOrCreateBlob(ctx, hash, domain.Hot, 1)
	require.NoError(t, err)

	_, err = s.DecrementRefBlob(ctx, hash, domain.Hot)
	require.NoError(t, err)

	_, err = s.DecrementRefBlob(ctx, hash, domain.Hot)
	require.Error(t, err)
	require.Equal(t, apperr.Integrity, apperr.KindOf(err))
}

func TestFindOrphanedBlobs(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()
	hash := domain.ContentHash{4}

	_, err := s.GetOrCreateBlob(ctx, hash, domain.Hot, 1)
	require.NoError(t, err)
	_, err = s.DecrementRefBlob(ctx, hash, domain.Hot)
	require.NoError(t, err)

	orphans, err := s.FindOrphanedBlobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, hash, orphans[0].ContentHash)
	require.True(t, orphans[0].Orphaned())
}

func TestHiddenStatusesAreInvisibleToFind(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()

	writing, err := domain.NewWriting("docs", mustUUID(), nil, domain.Hot, "", nil, nowUTC())
	require.NoError(t, err)
	require.NoError(t, s.SaveObject(ctx, writing))

	_, err = s.FindObjectByID(ctx, writing.ID)
	require.Error(t, err)
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))

	// But LoadObjectAny (used internally by the delete orchestrator) can still see it.
	loaded, err := s.LoadObjectAny(ctx, writing.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusWriting, loaded.Status)
}

func TestSaveObjectRejectsDuplicateKey(t *testing.T) {
	s := memstore.New(nil)
	ctx := context.Background()
	tenant := mustUUID()
	key := "greeting"

	first, err := domain.NewWriting("docs", tenant, &key, domain.Hot, "", nil, nowUTC())
	require.NoError(t, err)
	require.NoError(t, s.SaveObject(ctx, first))

	second, err := domain.NewWriting("docs", tenant, &key, domain.Hot, "", nil, nowUTC())
	require.NoError(t, err)
	err = s.SaveObject(ctx, second)
	require.Error(t, err)
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	// A different tenant, or no key at all, must not collide.
	otherTenant, err := domain.NewWriting("docs", mustUUID(), &key, domain.Hot, "", nil, nowUTC())
	require.NoError(t, err)
	require.NoError(t, s.SaveObject(ctx, otherTenant))

	keyless, err := domain.NewWriting("docs", tenant, nil, domain.Hot, "", nil, nowUTC())
	require.NoError(t, err)
	require.NoError(t, s.SaveObject(ctx, keyless))
}
