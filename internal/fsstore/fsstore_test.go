package fsstore_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
	"github.com/zynqcloud/objectstore/internal/fsstore"
)

func newDriver(t *testing.T) *fsstore.Driver {
	t.Helper()
	d, err := fsstore.New(fsstore.Config{
		HotRoot:  filepath.Join(t.TempDir(), "hot"),
		ColdRoot: filepath.Join(t.TempDir(), "cold"),
	})
	require.NoError(t, err)
	return d
}

func TestWriteReadRoundTrip(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	want := []byte("hello world")

	res, err := d.Write(ctx, domain.Hot, bytes.NewReader(want))
	require.NoError(t, err)
	require.Equal(t, int64(len(want)), res.SizeBytes)
	require.Equal(t, fmt.Sprintf("%x", sha256.Sum256(want)), res.ContentHash.String())

	rc, size, err := d.Read(ctx, domain.Hot, res.ContentHash)
	require.NoError(t, err)
	defer rc.Close()
	require.Equal(t, int64(len(want)), size)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestWriteEmptyStream(t *testing.T) {
	d := newDriver(t)
	res, err := d.Write(context.Background(), domain.Hot, bytes.NewReader(nil))
	require.NoError(t, err)
	require.Equal(t, int64(0), res.SizeBytes)
	require.Equal(t, fmt.Sprintf("%x", sha256.Sum256(nil)), res.ContentHash.String())
}

func TestReadMissingIsNotFound(t *testing.T) {
	d := newDriver(t)
	var hash domain.ContentHash
	_, _, err := d.Read(context.Background(), domain.Hot, hash)
	require.Error(t, err)
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	d := newDriver(t)
	var hash domain.ContentHash
	err := d.Delete(context.Background(), domain.Hot, hash)
	require.Error(t, err)
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestHotAndColdAreIndependent(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()
	payload := []byte("same bytes, two tiers")

	hotRes, err := d.Write(ctx, domain.Hot, bytes.NewReader(payload))
	require.NoError(t, err)
	coldRes, err := d.Write(ctx, domain.Cold, bytes.NewReader(payload))
	require.NoError(t, err)

	require.Equal(t, hotRes.ContentHash, coldRes.ContentHash, "same content hashes the same regardless of tier")

	existsHot, err := d.Exists(ctx, domain.Hot, hotRes.ContentHash)
	require.NoError(t, err)
	require.True(t, existsHot)

	existsCold, err := d.Exists(ctx, domain.Cold, hotRes.ContentHash)
	require.NoError(t, err)
	require.True(t, existsCold)

	// Deleting from HOT must not affect COLD's independent copy.
	require.NoError(t, d.Delete(ctx, domain.Hot, hotRes.ContentHash))
	existsHot, err = d.Exists(ctx, domain.Hot, hotRes.ContentHash)
	require.NoError(t, err)
	require.False(t, existsHot)

	existsCold, err = d.Exists(ctx, domain.Cold, hotRes.ContentHash)
	require.NoError(t, err)
	require.True(t, existsCold)
}

func TestConcurrentDedupWriteLeavesOneFile(t *testing.T) {
	hotRoot := filepath.Join(t.TempDir(), "hot")
	d, err := fsstore.New(fsstore.Config{HotRoot: hotRoot, ColdRoot: filepath.Join(t.TempDir(), "cold")})
	require.NoError(t, err)
	ctx := context.Background()
	payload := bytes.Repeat([]byte("x"), 4096)

	const n = 10
	hashes := make([]domain.ContentHash, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			res, err := d.Write(ctx, domain.Hot, bytes.NewReader(payload))
			require.NoError(t, err)
			hashes[i] = res.ContentHash
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Equal(t, hashes[0], hashes[i])
	}

	files := 0
	err = filepath.WalkDir(filepath.Join(hotRoot, "sha256"), func(_ string, de os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !de.IsDir() {
			files++
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, files)
}

func TestNoTempFileEverAppearsUnderSha256(t *testing.T) {
	hotRoot := filepath.Join(t.TempDir(), "hot")
	d, err := fsstore.New(fsstore.Config{HotRoot: hotRoot, ColdRoot: filepath.Join(t.TempDir(), "cold")})
	require.NoError(t, err)

	_, err = d.Write(context.Background(), domain.Hot, strings.NewReader("payload"))
	require.NoError(t, err)

	// Every leaf under sha256/ must be named exactly the hex digest of its
	// own contents — the content-address invariant (§8 property 3).
	sha256Root := filepath.Join(hotRoot, "sha256")
	err = filepath.WalkDir(sha256Root, func(path string, de os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if de.IsDir() {
			return nil
		}
		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		want := fmt.Sprintf("%x", sha256.Sum256(data))
		require.Equal(t, want, de.Name())
		return nil
	})
	require.NoError(t, err)
}

func TestPruneTempRemovesOldOrphans(t *testing.T) {
	hotRoot := filepath.Join(t.TempDir(), "hot")
	d, err := fsstore.New(fsstore.Config{HotRoot: hotRoot, ColdRoot: filepath.Join(t.TempDir(), "cold")})
	require.NoError(t, err)

	stalePath := filepath.Join(hotRoot, "tmp", "stale-upload")
	require.NoError(t, os.WriteFile(stalePath, []byte("abandoned"), 0o640))
	oldTime := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stalePath, oldTime, oldTime))

	removed, err := d.PruneTemp(context.Background(), domain.Hot, 24*time.Hour, testLogger())
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, statErr := os.Stat(stalePath)
	require.True(t, os.IsNotExist(statErr))
}

func TestPruneTempKeepsRecentInFlightUploads(t *testing.T) {
	hotRoot := filepath.Join(t.TempDir(), "hot")
	d, err := fsstore.New(fsstore.Config{HotRoot: hotRoot, ColdRoot: filepath.Join(t.TempDir(), "cold")})
	require.NoError(t, err)

	fresh := filepath.Join(hotRoot, "tmp", "in-flight")
	require.NoError(t, os.WriteFile(fresh, []byte("still uploading"), 0o640))

	removed, err := d.PruneTemp(context.Background(), domain.Hot, 24*time.Hour, testLogger())
	require.NoError(t, err)
	require.Equal(t, 0, removed)

	_, statErr := os.Stat(fresh)
	require.NoError(t, statErr)
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}
