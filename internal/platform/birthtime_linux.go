//go:build linux

package platform

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// birthTime reads the file creation time via statx. Not every filesystem
// records one; ok is false when btime is unavailable.
func birthTime(path string, _ os.FileInfo) (time.Time, bool) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, false
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), true
}
