package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
)

func TestNormalizeNamespace(t *testing.T) {
	ns, err := domain.NormalizeNamespace("Docs")
	require.NoError(t, err)
	require.Equal(t, "docs", ns)

	_, err = domain.NormalizeNamespace("1docs")
	require.Error(t, err)
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = domain.NormalizeNamespace("")
	require.Error(t, err)
}

func TestObjectLifecycleHappyPath(t *testing.T) {
	now := time.Now()
	obj, err := domain.NewWriting("docs", uuid.New(), nil, domain.Hot, "text/plain", nil, now)
	require.NoError(t, err)
	require.Equal(t, domain.StatusWriting, obj.Status)
	require.False(t, obj.Readable())
	require.False(t, obj.HasHash)
	require.False(t, obj.HasSize)

	hash := domain.ContentHash{0xde, 0xad}
	require.NoError(t, obj.Commit(hash, 11, now.Add(time.Second)))
	require.Equal(t, domain.StatusCommitted, obj.Status)
	require.True(t, obj.Readable())
	require.True(t, obj.HasHash)
	require.Equal(t, int64(11), obj.SizeBytes)

	require.NoError(t, obj.BeginDelete(now.Add(2*time.Second)))
	require.Equal(t, domain.StatusDeleting, obj.Status)
	require.False(t, obj.Readable())

	require.NoError(t, obj.FinishDelete(now.Add(3*time.Second)))
	require.Equal(t, domain.StatusDeleted, obj.Status)
	require.False(t, obj.Readable())
}

func TestObjectIllegalTransitions(t *testing.T) {
	now := time.Now()
	obj, err := domain.NewWriting("docs", uuid.New(), nil, domain.Hot, "", nil, now)
	require.NoError(t, err)

	// Cannot delete straight from WRITING.
	err = obj.BeginDelete(now)
	require.Error(t, err)
	require.Equal(t, apperr.Integrity, apperr.KindOf(err))
	require.Equal(t, domain.StatusWriting, obj.Status, "failed transition must not mutate state")

	// Cannot finish-delete before beginning delete.
	err = obj.FinishDelete(now)
	require.Error(t, err)

	require.NoError(t, obj.Commit(domain.ContentHash{1}, 1, now))
	// Cannot commit twice.
	err = obj.Commit(domain.ContentHash{2}, 2, now)
	require.Error(t, err)
	require.Equal(t, domain.ContentHash{1}, obj.ContentHash, "failed re-commit must not overwrite the hash")
}

func TestObjectUpdatedAtMonotonic(t *testing.T) {
	now := time.Now()
	obj, err := domain.NewWriting("docs", uuid.New(), nil, domain.Cold, "", nil, now)
	require.NoError(t, err)

	// An out-of-order timestamp (clock skew) must never move UpdatedAt backwards.
	require.NoError(t, obj.Commit(domain.ContentHash{1}, 1, now.Add(-time.Hour)))
	require.False(t, obj.UpdatedAt.Before(obj.CreatedAt))
}

func TestInvalidStorageClass(t *testing.T) {
	_, err := domain.NewWriting("docs", uuid.New(), nil, domain.StorageClass("WARM"), "", nil, time.Now())
	require.Error(t, err)
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))
}
