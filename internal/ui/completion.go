package ui

import (
	"fmt"

	"github.com/mediamirror/mediamirror/internal/stats"
)

// completionSummary builds a final summary line from a snapshot.
// Format: done ✓  files 48,917  converted 1,204  copied 213  skipped 47,500  saved 2.1 GiB  time 3m 17s
func completionSummary(snap stats.Snapshot, dryRun bool) string {
	icon := "✓"
	if snap.EncodeFailed > 0 || snap.VerifyFailed > 0 {
		icon = "✗"
	}

	verb := "done"
	if dryRun {
		verb = "dry run"
	}

	base := fmt.Sprintf("%s %s  files %s  converted %s  copied %s  skipped %s  saved %s  time %s",
		verb, icon,
		FormatCount(snap.FilesProcessed),
		FormatCount(snap.Converted()),
		FormatCount(snap.FilesCopied),
		FormatCount(snap.FilesSkipped),
		FormatBytes(snap.BytesSaved()),
		FormatDuration(snap.Elapsed),
	)

	if snap.FilesVerified > 0 || snap.VerifyFailed > 0 {
		base += fmt.Sprintf("  verified %s", FormatCount(snap.FilesVerified))
	}
	if snap.Rejected > 0 {
		base += fmt.Sprintf("  rejected %s", FormatCount(snap.Rejected))
	}
	if snap.EncodeFailed+snap.VerifyFailed > 0 {
		base += fmt.Sprintf("  errors %d", snap.EncodeFailed+snap.VerifyFailed)
	}

	return base
}
