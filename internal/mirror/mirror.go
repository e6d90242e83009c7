// Package mirror implements the transactional shrink-or-copy pipeline: it
// walks a source tree and materializes a destination tree in which large
// media files are replaced by smaller re-encoded equivalents and
// everything else is copied verbatim, with source timestamps preserved.
//
// Every output is written to a staging path and promoted with a single
// rename, so an interrupted run never leaves a partial file at a final
// path. Already-mirrored entries are skipped, which makes re-running after
// an interruption the recovery mechanism.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mediamirror/mediamirror/internal/classify"
	"github.com/mediamirror/mediamirror/internal/event"
	"github.com/mediamirror/mediamirror/internal/filter"
	"github.com/mediamirror/mediamirror/internal/platform"
	"github.com/mediamirror/mediamirror/internal/stats"
)

// StagingSuffix is appended to a mirror target to form its staging path.
// It is reserved: no real media extension collides with it, and it is
// deterministic so a rerun overwrites stale artifacts from an interrupted
// run instead of accumulating them.
const StagingSuffix = ".mmtmp"

// DefaultAcceptRatio is the acceptance threshold for converted outputs: a
// conversion is kept only if it shrank the file to at most this fraction
// of the original size.
const DefaultAcceptRatio = 0.9

// ImageEncoder shrinks an image from src into dst.
type ImageEncoder interface {
	Encode(ctx context.Context, src, dst string) error
}

// VideoEncoder re-encodes a video from src into dst, optionally using
// hardware acceleration.
type VideoEncoder interface {
	Encode(ctx context.Context, src, dst string, hwAccel bool) error
}

// Config describes a mirror run.
type Config struct {
	Source string
	Dest   string

	Images ImageEncoder // nil routes images to the copier
	Videos VideoEncoder // nil routes videos to the copier

	// AcceptRatio is the maximum converted/original size ratio that still
	// counts as a worthwhile conversion. Zero means DefaultAcceptRatio.
	AcceptRatio float64

	// UseHWAccel enables the hardware tier for video encodes, with an
	// automatic one-shot software retry on failure.
	UseHWAccel bool

	Excludes *filter.Chain
	Verify   bool // re-hash committed verbatim copies against the source
	DryRun   bool

	Events chan<- event.Event
	Stats  *stats.Collector
}

// Result is the outcome of a mirror run.
type Result struct {
	Stats stats.Snapshot
	Err   error
}

// Run executes a mirror run, blocking until the walk completes, the
// context is cancelled, or a fatal error occurs. Recognized soft outcomes
// (encode failure, rejected conversion, non-media input) are absorbed into
// copy fallbacks; anything else aborts the run.
func Run(ctx context.Context, cfg Config) Result {
	if cfg.AcceptRatio == 0 {
		cfg.AcceptRatio = DefaultAcceptRatio
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}

	m := &mirrorer{cfg: cfg}

	if err := m.prepare(); err != nil {
		return Result{Stats: cfg.Stats.Snapshot(), Err: err}
	}

	m.emit(event.Event{Type: event.WalkStarted})
	err := m.walk(ctx)
	m.emit(event.Event{Type: event.WalkComplete})

	return Result{Stats: cfg.Stats.Snapshot(), Err: err}
}

type mirrorer struct {
	cfg         Config
	source      string // absolute
	dest        string // absolute
	warnedBirth bool   // creation-time degradation is logged once per run
}

// prepare resolves roots and enforces the nesting precondition before any
// file is touched.
func (m *mirrorer) prepare() error {
	src, err := filepath.Abs(m.cfg.Source)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}
	dst, err := filepath.Abs(m.cfg.Dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}

	// The destination must not live inside the source, or the walk would
	// consume its own output.
	if isWithin(src, dst) {
		return fmt.Errorf("destination %s is inside source %s", dst, src)
	}

	m.source = src
	m.dest = dst
	return nil
}

// isWithin reports whether child equals parent or lies under it.
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (m *mirrorer) walk(ctx context.Context) error {
	return filepath.WalkDir(m.source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		rel, rerr := filepath.Rel(m.source, path)
		if rerr != nil {
			return fmt.Errorf("rel path for %s: %w", path, rerr)
		}

		if d.IsDir() {
			if path != m.source && m.cfg.Excludes.Excluded(filepath.ToSlash(rel), true) {
				m.cfg.Stats.AddFilesExcluded(1)
				m.emit(event.Event{Type: event.FileExcluded, Path: rel})
				return filepath.SkipDir
			}
			// Directories are never replicated standalone; parents are
			// created lazily when a file needs them.
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, ierr := d.Info()
		if ierr != nil {
			return fmt.Errorf("stat %s: %w", path, ierr)
		}
		if info.Size() == 0 {
			return nil
		}

		if m.cfg.Excludes.Excluded(filepath.ToSlash(rel), false) {
			m.cfg.Stats.AddFilesExcluded(1)
			m.emit(event.Event{Type: event.FileExcluded, Path: rel})
			return nil
		}

		return m.processEntry(ctx, path, rel, info.Size())
	})
}

// processEntry runs the per-file protocol: classify, attempt a shrink,
// judge the result, fall back to a verbatim copy, commit atomically, and
// restore timestamps.
func (m *mirrorer) processEntry(ctx context.Context, src, rel string, origSize int64) error {
	target := filepath.Join(m.dest, rel)

	// Resumability: an existing target is never re-examined.
	if _, err := os.Lstat(target); err == nil {
		m.cfg.Stats.AddFilesSkipped(1)
		m.emit(event.Event{Type: event.FileSkipped, Path: rel, OrigSize: origSize})
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat target %s: %w", target, err)
	}

	kind := classify.Detect(src)

	// Timestamps are captured before processing so slow encodes cannot
	// observe a source modified mid-run without us noticing at apply time.
	times, err := platform.ReadTimes(src)
	if err != nil {
		return fmt.Errorf("read times %s: %w", src, err)
	}

	if m.cfg.DryRun {
		m.reportDryRun(rel, kind, origSize)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	staging := target + StagingSuffix
	out := m.convert(ctx, kind, src, staging, origSize)
	if out.retried {
		m.cfg.Stats.AddHWFallbacks(1)
		m.emit(event.Event{Type: event.EncodeRetried, Path: rel, Kind: kind, Err: out.err})
	}

	reason := event.CopyNone
	switch out.status {
	case statusConverted:
		// keep the staged encode
	case statusRejected:
		reason = event.CopyRejected
		m.cfg.Stats.AddRejected(1)
	case statusFailed:
		reason = event.CopyEncodeFailed
		m.cfg.Stats.AddEncodeFailed(1)
		slog.Warn("encode failed, copying verbatim", "path", rel, "error", out.err)
	case statusNotApplicable:
		reason = event.CopyNotMedia
	}

	newSize := out.newSize
	if reason != event.CopyNone {
		n, cerr := platform.CopyFile(src, staging)
		if cerr != nil {
			return cerr
		}
		newSize = n
	}

	// The rename is the only point where the output becomes visible.
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("commit %s: %w", target, err)
	}

	m.applyTimes(target, times)

	m.cfg.Stats.AddFilesProcessed(1)
	m.cfg.Stats.AddBytesIn(origSize)
	m.cfg.Stats.AddBytesOut(newSize)

	if reason == event.CopyNone {
		switch kind {
		case classify.Image:
			m.cfg.Stats.AddImagesConverted(1)
		case classify.Video:
			m.cfg.Stats.AddVideosConverted(1)
		}
		m.emit(event.Event{
			Type: event.FileConverted, Path: rel, Kind: kind,
			OrigSize: origSize, NewSize: newSize,
		})
		return nil
	}

	m.cfg.Stats.AddFilesCopied(1)
	m.emit(event.Event{
		Type: event.FileCopied, Path: rel, Kind: kind, Reason: reason,
		OrigSize: origSize, NewSize: newSize, Err: out.err,
	})

	if m.cfg.Verify {
		return m.verifyCopy(src, target, rel)
	}
	return nil
}

// applyTimes restores the captured timestamp pair on the committed file.
// Both components are attempted for every file; neither is
// correctness-critical, so failures degrade to warnings.
func (m *mirrorer) applyTimes(target string, times platform.FileTimes) {
	if err := platform.SetModTime(target, times.Mod); err != nil {
		slog.Warn("failed to set modification time", "path", target, "error", err)
	}
	if err := platform.SetBirthTime(target, times.Birth); err != nil {
		if errors.Is(err, platform.ErrBirthTimeUnsupported) {
			if !m.warnedBirth {
				m.warnedBirth = true
				slog.Debug("creation time not preserved", "reason", err)
			}
			return
		}
		slog.Warn("failed to set creation time", "path", target, "error", err)
	}
}

func (m *mirrorer) reportDryRun(rel string, kind classify.Kind, origSize int64) {
	m.cfg.Stats.AddFilesProcessed(1)
	convertible := (kind == classify.Image && m.cfg.Images != nil) ||
		(kind == classify.Video && m.cfg.Videos != nil)
	if convertible {
		m.emit(event.Event{Type: event.FileConverted, Path: rel, Kind: kind, OrigSize: origSize})
		return
	}
	m.emit(event.Event{
		Type: event.FileCopied, Path: rel, Kind: kind,
		Reason: event.CopyNotMedia, OrigSize: origSize, NewSize: origSize,
	})
}

func (m *mirrorer) emit(ev event.Event) {
	if m.cfg.Events == nil {
		return
	}
	ev.Timestamp = time.Now()
	m.cfg.Events <- ev
}
