package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
)

func TestBlobOrphaned(t *testing.T) {
	b := &domain.Blob{RefCount: 0, CreatedAt: time.Now()}
	require.True(t, b.Orphaned())

	b.RefCount = 1
	require.False(t, b.Orphaned())
}

func TestValidateDecrementUnderflow(t *testing.T) {
	require.NoError(t, domain.ValidateDecrement(1))

	err := domain.ValidateDecrement(0)
	require.Error(t, err)
	require.Equal(t, apperr.Integrity, apperr.KindOf(err))
}

func TestContentHashString(t *testing.T) {
	var h domain.ContentHash
	require.True(t, h.IsZero())
	h[0] = 0xab
	require.False(t, h.IsZero())
	require.Equal(t, 64, len(h.String()))
}
