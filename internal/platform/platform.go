// Package platform wraps the OS-specific primitives the mirror pipeline
// depends on: a verbatim file copy and capture/apply of file timestamps,
// including the creation ("birth") time where the platform exposes one.
package platform

import (
	"errors"
	"os"
	"time"
)

// FileTimes is the timestamp pair captured from a source file before
// processing and applied to the committed output afterward.
type FileTimes struct {
	Mod   time.Time
	Birth time.Time
}

// ErrBirthTimeUnsupported is returned by SetBirthTime on platforms that
// have no API for assigning a file's creation time. Callers degrade to a
// recorded warning, never a failure.
var ErrBirthTimeUnsupported = errors.New("setting file creation time is not supported on this platform")

// ReadTimes captures the modification and creation time of path. On
// platforms (or filesystems) without a creation time, Birth falls back to
// the modification time.
func ReadTimes(path string) (FileTimes, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileTimes{}, err
	}
	ft := FileTimes{Mod: info.ModTime()}
	if birth, ok := birthTime(path, info); ok && !birth.IsZero() {
		ft.Birth = birth
	} else {
		ft.Birth = ft.Mod
	}
	return ft, nil
}
