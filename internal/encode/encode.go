// Package encode shells out to external media encoders. ImageMagick
// handles images, ffmpeg handles videos. Both are treated as black boxes:
// the pipeline hands them a source path and a staging path and only looks
// at the exit status.
package encode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandContext matches exec.CommandContext. Tests substitute fakes so
// encoder behavior can be exercised without the real binaries.
type CommandContext func(ctx context.Context, name string, args ...string) *exec.Cmd

// stderrTail caps how much encoder stderr is carried into error messages.
const stderrTail = 4 << 10

// run executes cmd, capturing stderr. On a non-zero exit the tail of
// stderr is folded into the returned error; encoder diagnostics are
// otherwise discarded.
func run(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > stderrTail {
			msg = msg[len(msg)-stderrTail:]
		}
		msg = strings.TrimSpace(msg)
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", cmd.Args[0], err, msg)
		}
		return fmt.Errorf("%s: %w", cmd.Args[0], err)
	}
	return nil
}
