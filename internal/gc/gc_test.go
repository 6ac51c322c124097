package gc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zynqcloud/objectstore/internal/domain"
	"github.com/zynqcloud/objectstore/internal/fsstore"
	"github.com/zynqcloud/objectstore/internal/gc"
	"github.com/zynqcloud/objectstore/internal/pgstore/memstore"
)

func mustUUID() uuid.UUID { return uuid.New() }

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

func newTestFS(t *testing.T) *fsstore.Driver {
	t.Helper()
	fs, err := fsstore.New(fsstore.Config{
		HotRoot:  filepath.Join(t.TempDir(), "hot"),
		ColdRoot: filepath.Join(t.TempDir(), "cold"),
	})
	require.NoError(t, err)
	return fs
}

// S4: a zero-refcount blob with a matching file is reclaimed in one cycle.
func TestS4OrphanCollection(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	db := memstore.New(nil)

	hash, err := writeAndOrphan(ctx, t, fs, db)
	require.NoError(t, err)

	coll := gc.NewOrphanedBlobCollector(db, fs, 10, 4, zerolog.Nop())
	n, err := coll.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = db.GetBlob(ctx, hash, domain.Hot)
	require.Error(t, err)
	exists, err := fs.Exists(ctx, domain.Hot, hash)
	require.NoError(t, err)
	require.False(t, exists)
}

func writeAndOrphan(ctx context.Context, t *testing.T, fs *fsstore.Driver, db *memstore.Store) (domain.ContentHash, error) {
	t.Helper()
	result, err := fs.Write(ctx, domain.Hot, stringsReader("orphan me"))
	if err != nil {
		return domain.ContentHash{}, err
	}
	if _, err := db.GetOrCreateBlob(ctx, result.ContentHash, domain.Hot, result.SizeBytes); err != nil {
		return domain.ContentHash{}, err
	}
	if _, err := db.DecrementRefBlob(ctx, result.ContentHash, domain.Hot); err != nil {
		return domain.ContentHash{}, err
	}
	return result.ContentHash, nil
}

// S5: a WRITING object older than the threshold is reclaimed without
// touching storage.
func TestS5StuckUpload(t *testing.T) {
	ctx := context.Background()
	past := time.Now().UTC().Add(-48 * time.Hour)
	db := memstore.New(func() time.Time { return time.Now().UTC() })

	obj, err := domain.NewWriting("docs", mustUUID(), nil, domain.Hot, "", nil, past)
	require.NoError(t, err)
	require.NoError(t, db.SaveObject(ctx, obj))

	coll := gc.NewStuckUploadCollector(db, 1.0, 1, 10, 4, zerolog.Nop())
	n, err := coll.Collect(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = db.LoadObjectAny(ctx, obj.ID)
	require.Error(t, err)
}

func TestCycleResultSilentWhenNothingHappens(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	db := memstore.New(nil)

	sched := gc.New(time.Hour, zerolog.Nop(),
		gc.NewOrphanedBlobCollector(db, fs, 10, 4, zerolog.Nop()),
		gc.NewStuckUploadCollector(db, 24, 4, 10, 4, zerolog.Nop()),
	)
	result := sched.RunOnce(ctx, 4)
	require.True(t, result.Successful())
	require.False(t, result.HasDeletions())
}
