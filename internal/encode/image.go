package encode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Image shrinks images with ImageMagick, capping the longer dimension
// while preserving aspect ratio. Images already within bounds pass through
// a no-op resize.
type Image struct {
	Binary       string // magick binary, e.g. "magick"
	MaxDimension int    // longest-edge bound in pixels
	ScratchRoot  string // parent for per-invocation scratch dirs; defaults to os.TempDir()
	Command      CommandContext
}

// NewImage creates an Image encoder with the given binary and bound.
func NewImage(binary string, maxDimension int) *Image {
	return &Image{
		Binary:       binary,
		MaxDimension: maxDimension,
		Command:      exec.CommandContext,
	}
}

// Encode resizes src into dst. ImageMagick on some platforms leaks large
// temporary files, so every invocation runs with its own scratch directory
// (via MAGICK_TMPDIR) which is removed afterward, success or failure.
func (e *Image) Encode(ctx context.Context, src, dst string) error {
	root := e.ScratchRoot
	if root == "" {
		root = os.TempDir()
	}
	scratch := filepath.Join(root, "magick-"+uuid.NewString()[:8])
	if err := os.MkdirAll(scratch, 0o700); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	// The staging suffix is not a media extension, so the output format
	// must be forced explicitly. It is inherited from the source.
	out := dst
	if format := strings.TrimPrefix(strings.ToLower(filepath.Ext(src)), "."); format != "" {
		out = format + ":" + dst
	}

	geometry := fmt.Sprintf("%dx%d>", e.MaxDimension, e.MaxDimension)
	cmd := e.Command(ctx, e.Binary, src, "-resize", geometry, out)
	cmd.Env = append(os.Environ(), "MAGICK_TMPDIR="+scratch)

	return run(cmd)
}
