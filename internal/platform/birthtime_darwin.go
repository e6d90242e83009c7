//go:build darwin

package platform

import (
	"os"
	"syscall"
	"time"
)

// birthTime reads the file creation time from the stat birthtime field.
func birthTime(_ string, info os.FileInfo) (time.Time, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	ts := stat.Birthtimespec
	if ts.Sec == 0 && ts.Nsec == 0 {
		return time.Time{}, false
	}
	return time.Unix(ts.Sec, ts.Nsec), true
}
