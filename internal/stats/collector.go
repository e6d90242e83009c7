// Package stats tracks run counters for the mirror pipeline.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks pipeline statistics using lock-free atomic counters.
// The pipeline itself is sequential, but presenters read concurrently.
type Collector struct {
	filesProcessed  atomic.Int64
	imagesConverted atomic.Int64
	videosConverted atomic.Int64
	filesCopied     atomic.Int64
	filesSkipped    atomic.Int64
	filesExcluded   atomic.Int64
	rejected        atomic.Int64
	encodeFailed    atomic.Int64
	hwFallbacks     atomic.Int64
	bytesIn         atomic.Int64
	bytesOut        atomic.Int64
	filesVerified   atomic.Int64
	verifyFailed    atomic.Int64
	startTime       time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

func (c *Collector) AddFilesProcessed(n int64)  { c.filesProcessed.Add(n) }
func (c *Collector) AddImagesConverted(n int64) { c.imagesConverted.Add(n) }
func (c *Collector) AddVideosConverted(n int64) { c.videosConverted.Add(n) }
func (c *Collector) AddFilesCopied(n int64)     { c.filesCopied.Add(n) }
func (c *Collector) AddFilesSkipped(n int64)    { c.filesSkipped.Add(n) }
func (c *Collector) AddFilesExcluded(n int64)   { c.filesExcluded.Add(n) }
func (c *Collector) AddRejected(n int64)        { c.rejected.Add(n) }
func (c *Collector) AddEncodeFailed(n int64)    { c.encodeFailed.Add(n) }
func (c *Collector) AddHWFallbacks(n int64)     { c.hwFallbacks.Add(n) }
func (c *Collector) AddBytesIn(n int64)         { c.bytesIn.Add(n) }
func (c *Collector) AddBytesOut(n int64)        { c.bytesOut.Add(n) }
func (c *Collector) AddFilesVerified(n int64)   { c.filesVerified.Add(n) }
func (c *Collector) AddVerifyFailed(n int64)    { c.verifyFailed.Add(n) }

// Elapsed returns the time since the collector was created.
func (c *Collector) Elapsed() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesProcessed  int64
	ImagesConverted int64
	VideosConverted int64
	FilesCopied     int64
	FilesSkipped    int64
	FilesExcluded   int64
	Rejected        int64
	EncodeFailed    int64
	HWFallbacks     int64
	BytesIn         int64
	BytesOut        int64
	FilesVerified   int64
	VerifyFailed    int64
	Elapsed         time.Duration
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesProcessed:  c.filesProcessed.Load(),
		ImagesConverted: c.imagesConverted.Load(),
		VideosConverted: c.videosConverted.Load(),
		FilesCopied:     c.filesCopied.Load(),
		FilesSkipped:    c.filesSkipped.Load(),
		FilesExcluded:   c.filesExcluded.Load(),
		Rejected:        c.rejected.Load(),
		EncodeFailed:    c.encodeFailed.Load(),
		HWFallbacks:     c.hwFallbacks.Load(),
		BytesIn:         c.bytesIn.Load(),
		BytesOut:        c.bytesOut.Load(),
		FilesVerified:   c.filesVerified.Load(),
		VerifyFailed:    c.verifyFailed.Load(),
		Elapsed:         c.Elapsed(),
	}
}

// Converted returns the total number of converted files.
func (s Snapshot) Converted() int64 {
	return s.ImagesConverted + s.VideosConverted
}

// BytesSaved returns how many bytes the run saved over a plain copy.
// Negative values never occur: rejected conversions fall back to copies.
func (s Snapshot) BytesSaved() int64 {
	return s.BytesIn - s.BytesOut
}

// String returns a compact single-line summary, used in debug logs.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"processed=%d images=%d videos=%d copied=%d skipped=%d rejected=%d failed=%d in=%d out=%d",
		s.FilesProcessed, s.ImagesConverted, s.VideosConverted, s.FilesCopied,
		s.FilesSkipped, s.Rejected, s.EncodeFailed, s.BytesIn, s.BytesOut,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < 0 {
		return "-" + FormatBytes(-b)
	}
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
