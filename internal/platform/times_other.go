//go:build !linux && !darwin && !windows

package platform

import (
	"fmt"
	"os"
	"time"
)

// SetModTime sets the modification time of path.
func SetModTime(path string, mod time.Time) error {
	if err := os.Chtimes(path, time.Time{}, mod); err != nil {
		return fmt.Errorf("chtimes %s: %w", path, err)
	}
	return nil
}

// SetBirthTime is unavailable on this platform.
func SetBirthTime(string, time.Time) error {
	return ErrBirthTimeUnsupported
}

// birthTime has no portable source on this platform.
func birthTime(_ string, _ os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
