package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/mediamirror/mediamirror/internal/event"
	"github.com/mediamirror/mediamirror/internal/stats"
)

// plainPresenter outputs one line per mirrored file to stdout, and
// periodic progress to stderr when the output is not a terminal. The
// pipeline is sequential, so the event stream is already in walk order.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   *stats.Collector
	isTTY   bool
	verbose bool
	dryRun  bool
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			if !p.isTTY {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.FileConverted:
		verb := "converted"
		if p.dryRun {
			verb = "would convert"
		}
		// Dry runs report no output size, so there is no delta to show.
		if ev.NewSize == 0 {
			fmt.Fprintf(p.w, "%s  %s %s  %s\n",
				ev.Path, verb, ev.Kind, FormatBytes(ev.OrigSize))
			return
		}
		fmt.Fprintf(p.w, "%s  %s %s  %s -> %s\n",
			ev.Path, verb, ev.Kind,
			FormatBytes(ev.OrigSize), FormatBytes(ev.NewSize))
	case event.FileCopied:
		verb := "copied"
		if p.dryRun {
			verb = "would copy"
		}
		if ev.Reason == event.CopyNotMedia {
			fmt.Fprintf(p.w, "%s  %s  %s\n", ev.Path, verb, FormatBytes(ev.OrigSize))
			return
		}
		fmt.Fprintf(p.w, "%s  %s (%s)  %s\n",
			ev.Path, verb, ev.Reason, FormatBytes(ev.OrigSize))
	case event.FileSkipped:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  skipped\n", ev.Path)
		}
	case event.FileExcluded:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  excluded\n", ev.Path)
		}
	case event.EncodeRetried:
		fmt.Fprintf(p.errW, "%s  hardware encode failed, retrying in software\n", ev.Path)
	case event.VerifyFailed:
		fmt.Fprintf(p.errW, "MISMATCH: %s\n", ev.Path)
	case event.VerifyOK:
		// silent in plain mode
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	fmt.Fprintf(p.errW, "progress: %s files  %s converted  %s copied  saved %s\n",
		FormatCount(snap.FilesProcessed),
		FormatCount(snap.Converted()),
		FormatCount(snap.FilesCopied),
		FormatBytes(snap.BytesSaved()),
	)
}

func (p *plainPresenter) Summary() string {
	return completionSummary(p.stats.Snapshot(), p.dryRun)
}
