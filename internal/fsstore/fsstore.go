// Package fsstore implements the content-addressable filesystem driver from
// spec.md §4.1: streaming hash-then-publish writes, a two-level fanout under
// sha256/, atomic rename as the publish point, and a tmp/ staging area that
// is never mistaken for a published blob.
//
// Generalizes the teacher's internal/store/cas.go (a single-root CAS) to two
// independent tiers (HOT/COLD), each with its own root, sha256/ and tmp/
// subtrees, plus an optional durability fsync before rename.
package fsstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/zynqcloud/objectstore/internal/apperr"
	"github.com/zynqcloud/objectstore/internal/domain"
)

// chunkSize matches the teacher's cas.go buffer size — large enough to keep
// syscall overhead low, small enough that hashing interleaves with I/O
// instead of blocking the scheduler on one giant read (§5: "CPU-bound work
// is interleaved chunk-by-chunk with async I/O reads").
const chunkSize = 512 * 1024

// Driver is the concrete §4.1 implementation. One Driver serves both tiers;
// each tier gets its own root directory supplied at construction.
type Driver struct {
	roots   map[domain.StorageClass]string
	durable bool

	// hashLocks serialises the first concurrent writer of a given
	// (tier, hash) pair so that at most one goroutine performs the
	// temp-to-final rename race per hash; all others observe the already
	// published file and dedup at the filesystem level. Generalizes
	// cas.go's per-hash sync.Map of refcounted mutexes to a tier-qualified key.
	hashLocks sync.Map // map[string]*hashLock
}

type hashLock struct {
	mu   sync.Mutex
	refs int32
}

// Config configures a Driver.
type Config struct {
	HotRoot  string
	ColdRoot string
	// Durable, when true, fsyncs each temp file before the publish rename
	// (spec.md §4.1 step 3: "optionally flush/synchronize ... (configurable)").
	Durable bool
}

// New creates the root/sha256/tmp directory trees for both tiers.
func New(cfg Config) (*Driver, error) {
	roots := map[domain.StorageClass]string{
		domain.Hot:  cfg.HotRoot,
		domain.Cold: cfg.ColdRoot,
	}
	for class, root := range roots {
		if root == "" {
			return nil, apperr.New(apperr.InvalidRequest, "fsstore.New", fmt.Sprintf("storage root for %s is empty", class))
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, apperr.Wrap("fsstore.New", apperr.StorageIO, err)
		}
		roots[class] = abs
		for _, sub := range []string{"sha256", "tmp"} {
			if err := os.MkdirAll(filepath.Join(abs, sub), 0o750); err != nil {
				return nil, apperr.Wrap("fsstore.New", apperr.StorageIO, fmt.Errorf("mkdir %s/%s: %w", abs, sub, err))
			}
		}
	}
	return &Driver{roots: roots, durable: cfg.Durable}, nil
}

func (d *Driver) root(class domain.StorageClass) (string, error) {
	r, ok := d.roots[class]
	if !ok || r == "" {
		return "", apperr.New(apperr.InvalidRequest, "fsstore", fmt.Sprintf("unknown storage class %q", class))
	}
	return r, nil
}

// finalPath derives the fanout path for a hash under a tier's sha256/ dir:
// sha256/<first 2 hex>/<next 2 hex>/<full 64-hex hash>.
func finalPath(root string, hash domain.ContentHash) string {
	hex := hash.String()
	return filepath.Join(root, "sha256", hex[0:2], hex[2:4], hex)
}

// WriteResult is returned by Write.
type WriteResult struct {
	ContentHash domain.ContentHash
	SizeBytes   int64
}

// Write streams r into a random temp file while hashing and counting bytes
// in the same pass, then atomically publishes it under its content-derived
// path within the given tier. Implements spec.md §4.1's write contract
// verbatim, including the dedup-at-rename behavior (§4.1 step 4: if the
// final path already exists, the temp file is discarded rather than
// overwriting — the existing file is already correct since it is keyed by
// the same hash).
func (d *Driver) Write(ctx context.Context, class domain.StorageClass, r io.Reader) (WriteResult, error) {
	root, err := d.root(class)
	if err != nil {
		return WriteResult{}, err
	}

	tmpDir := filepath.Join(root, "tmp")
	tmp, err := os.CreateTemp(tmpDir, "blob-*")
	if err != nil {
		return WriteResult{}, apperr.Wrap("fsstore.Write", apperr.StorageIO, err)
	}
	tmpPath := tmp.Name()
	// abort cleans up the temp file on any failure path below, per §4.1:
	// "If any step fails after step 1, the temp file is removed; no partial
	// object is ever visible at the final path."
	abort := func() { os.Remove(tmpPath) } //nolint:errcheck

	hasher := sha256.New()
	var written int64
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			tmp.Close() //nolint:errcheck
			abort()
			return WriteResult{}, apperr.Wrap("fsstore.Write", apperr.Cancelled, err)
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				tmp.Close() //nolint:errcheck
				abort()
				return WriteResult{}, apperr.Wrap("fsstore.Write", apperr.StorageIO, werr)
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			tmp.Close() //nolint:errcheck
			abort()
			return WriteResult{}, apperr.Wrap("fsstore.Write", apperr.StorageIO, rerr)
		}
	}

	if d.durable {
		if err := tmp.Sync(); err != nil {
			tmp.Close() //nolint:errcheck
			abort()
			return WriteResult{}, apperr.Wrap("fsstore.Write", apperr.StorageIO, err)
		}
	}
	if err := tmp.Close(); err != nil {
		abort()
		return WriteResult{}, apperr.Wrap("fsstore.Write", apperr.StorageIO, err)
	}

	var hash domain.ContentHash
	copy(hash[:], hasher.Sum(nil))
	final := finalPath(root, hash)

	unlock := d.lockHash(class, hash)
	defer unlock()

	if _, statErr := os.Stat(final); statErr == nil {
		// Dedup hit at the filesystem level: an identical blob is already
		// published. Discard our temp file — no double write.
		abort()
		return WriteResult{ContentHash: hash, SizeBytes: written}, nil
	} else if !os.IsNotExist(statErr) {
		abort()
		return WriteResult{}, apperr.Wrap("fsstore.Write", apperr.StorageIO, statErr)
	}

	if err := os.MkdirAll(filepath.Dir(final), 0o750); err != nil {
		abort()
		return WriteResult{}, apperr.Wrap("fsstore.Write", apperr.StorageIO, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		abort()
		return WriteResult{}, apperr.Wrap("fsstore.Write", apperr.StorageIO, err)
	}

	return WriteResult{ContentHash: hash, SizeBytes: written}, nil
}

// Read opens the blob at (hash, class) for streaming. Returns apperr.NotFound
// if the file is absent, per §4.1's read contract.
func (d *Driver) Read(ctx context.Context, class domain.StorageClass, hash domain.ContentHash) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, apperr.Wrap("fsstore.Read", apperr.Cancelled, err)
	}
	root, err := d.root(class)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(finalPath(root, hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, apperr.Wrap("fsstore.Read", apperr.NotFound, err)
		}
		return nil, 0, apperr.Wrap("fsstore.Read", apperr.StorageIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, 0, apperr.Wrap("fsstore.Read", apperr.StorageIO, err)
	}
	return f, info.Size(), nil
}

// Delete removes the blob at (hash, class). Fails with NotFound if absent;
// other I/O errors surface, per §4.1's delete contract.
func (d *Driver) Delete(ctx context.Context, class domain.StorageClass, hash domain.ContentHash) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap("fsstore.Delete", apperr.Cancelled, err)
	}
	root, err := d.root(class)
	if err != nil {
		return err
	}
	if err := os.Remove(finalPath(root, hash)); err != nil {
		if os.IsNotExist(err) {
			return apperr.Wrap("fsstore.Delete", apperr.NotFound, err)
		}
		return apperr.Wrap("fsstore.Delete", apperr.StorageIO, err)
	}
	return nil
}

// Exists reports whether the blob at (hash, class) is present.
func (d *Driver) Exists(ctx context.Context, class domain.StorageClass, hash domain.ContentHash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperr.Wrap("fsstore.Exists", apperr.Cancelled, err)
	}
	root, err := d.root(class)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(finalPath(root, hash))
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return false, apperr.Wrap("fsstore.Exists", apperr.StorageIO, statErr)
}

// lockHash acquires a per-(tier,hash) mutex, reference-counting the entry so
// it is removed from the map once no goroutine holds it — otherwise a
// long-lived process would accumulate one entry per distinct hash ever
// uploaded. Lifted from cas.go's lockHash with an added tier qualifier.
func (d *Driver) lockHash(class domain.StorageClass, hash domain.ContentHash) (unlock func()) {
	key := string(class) + ":" + hash.String()
	v, _ := d.hashLocks.LoadOrStore(key, &hashLock{})
	e := v.(*hashLock)
	atomic.AddInt32(&e.refs, 1)
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		if atomic.AddInt32(&e.refs, -1) == 0 {
			d.hashLocks.CompareAndDelete(key, e)
		}
	}
}

// DiskStats reports available/total bytes for the filesystem backing class's
// root, used by cmd/storagectl's status subcommand. Returns (0, 0) on
// platforms or errors where this cannot be determined — callers must treat
// that as "unavailable", not "disk full" (see diskstats_other.go).
func (d *Driver) DiskStats(class domain.StorageClass) (avail, total uint64) {
	root, err := d.root(class)
	if err != nil {
		return 0, 0
	}
	return diskStats(root)
}
