//go:build linux || darwin

package platform

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// SetModTime sets the modification time of path, leaving the access time
// untouched.
func SetModTime(path string, mod time.Time) error {
	times := []unix.Timespec{
		{Nsec: unix.UTIME_OMIT},
		unix.NsecToTimespec(mod.UnixNano()),
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, times, 0); err != nil {
		return fmt.Errorf("utimensat %s: %w", path, err)
	}
	return nil
}

// SetBirthTime would set the creation time of path. Unix filesystems record
// a birth time but expose no API to change it, so this always reports
// ErrBirthTimeUnsupported.
func SetBirthTime(string, time.Time) error {
	return ErrBirthTimeUnsupported
}
