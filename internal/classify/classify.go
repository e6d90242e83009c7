// Package classify maps file names to a broad media kind using
// extension-based content-type inference. Classification is a pure
// function: it never touches the filesystem and never fails.
package classify

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind is the broad media category of a file.
type Kind int

const (
	Other Kind = iota
	Image
	Video
)

var kindNames = [...]string{
	Other: "other",
	Image: "image",
	Video: "video",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// extraVideo covers container extensions missing from Go's built-in mime
// table. The builtin table carries no video types at all; without these a
// host with no /etc/mime.types would classify every video as Other.
var extraVideo = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".mpg":  true,
	".mpeg": true,
	".ts":   true,
	".mkv":  true,
	".m4v":  true,
	".mts":  true,
	".m2ts": true,
	".3gp":  true,
	".wmv":  true,
	".flv":  true,
}

// extraImage covers raw/modern image extensions the mime table may not know.
var extraImage = map[string]bool{
	".heic": true,
	".heif": true,
	".webp": true,
	".dng":  true,
	".cr2":  true,
	".nef":  true,
	".arw":  true,
}

// Detect returns the media kind for a file name. Anything whose inferred
// content type is not under the image/ or video/ top-level category
// (documents, audio, sidecar files, unknown extensions) is Other.
func Detect(name string) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return Other
	}

	switch {
	case extraVideo[ext]:
		return Video
	case extraImage[ext]:
		return Image
	}

	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return Other
	}
	if mediaType, _, err := mime.ParseMediaType(mt); err == nil {
		mt = mediaType
	}

	switch {
	case strings.HasPrefix(mt, "image/"):
		return Image
	case strings.HasPrefix(mt, "video/"):
		return Video
	default:
		return Other
	}
}
