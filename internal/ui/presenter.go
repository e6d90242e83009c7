// Package ui renders mirror run progress to the console and fans log
// records out to multiple slog handlers.
package ui

import (
	"io"

	"github.com/mediamirror/mediamirror/internal/event"
	"github.com/mediamirror/mediamirror/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer    io.Writer
	ErrWriter io.Writer
	Stats     *stats.Collector
	IsTTY     bool
	Quiet     bool
	Verbose   bool
	DryRun    bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{stats: cfg.Stats}
	}
	return &plainPresenter{
		w:       cfg.Writer,
		errW:    cfg.ErrWriter,
		stats:   cfg.Stats,
		isTTY:   cfg.IsTTY,
		verbose: cfg.Verbose,
		dryRun:  cfg.DryRun,
	}
}
