//go:build linux

package fsstore

import "syscall"

// diskStats returns the available and total bytes on the filesystem
// containing path, using Bavail (blocks available to unprivileged
// processes) rather than Bfree (which includes root-reserved blocks) since
// the storage service is expected to run as non-root.
//
// Lifted from the teacher's internal/store/diskstats_linux.go unchanged —
// the Statfs syscall and field selection do not depend on CAS vs. tiered
// layout.
func diskStats(path string) (avail, total uint64) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, 0
	}
	bsize := uint64(st.Bsize)
	return st.Bavail * bsize, st.Blocks * bsize
}
