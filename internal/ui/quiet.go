package ui

import (
	"github.com/mediamirror/mediamirror/internal/event"
	"github.com/mediamirror/mediamirror/internal/stats"
)

// quietPresenter consumes events but produces no output.
type quietPresenter struct {
	stats *stats.Collector
}

func (p *quietPresenter) Run(events <-chan event.Event) error {
	// Counters are updated by the pipeline directly; presenters only
	// read from the collector, never write.
	for range events {
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
