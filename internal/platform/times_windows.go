//go:build windows

package platform

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

// SetModTime sets the modification time of path.
func SetModTime(path string, mod time.Time) error {
	// Chtimes with a zero atime leaves the access time untouched.
	if err := os.Chtimes(path, time.Time{}, mod); err != nil {
		return fmt.Errorf("chtimes %s: %w", path, err)
	}
	return nil
}

// SetBirthTime sets the creation time of path via SetFileTime. The file
// must already exist.
func SetBirthTime(path string, birth time.Time) error {
	pathp, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("encode path %s: %w", path, err)
	}

	h, err := windows.CreateFile(
		pathp,
		windows.FILE_WRITE_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return fmt.Errorf("open %s for attribute write: %w", path, err)
	}
	defer windows.CloseHandle(h)

	ctime := windows.NsecToFiletime(birth.UnixNano())
	if err := windows.SetFileTime(h, &ctime, nil, nil); err != nil {
		return fmt.Errorf("set creation time %s: %w", path, err)
	}
	return nil
}
