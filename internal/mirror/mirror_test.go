package mirror_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediamirror/mediamirror/internal/classify"
	"github.com/mediamirror/mediamirror/internal/event"
	"github.com/mediamirror/mediamirror/internal/filter"
	"github.com/mediamirror/mediamirror/internal/mirror"
	"github.com/mediamirror/mediamirror/internal/stats"
)

// fakeImage is an ImageEncoder driven by a closure.
type fakeImage struct {
	fn    func(src, dst string) error
	calls int
}

func (f *fakeImage) Encode(_ context.Context, src, dst string) error {
	f.calls++
	if f.fn != nil {
		return f.fn(src, dst)
	}
	return halve(src, dst)
}

// fakeVideo is a VideoEncoder driven by a closure.
type fakeVideo struct {
	fn      func(src, dst string, hw bool) error
	hwCalls int
	swCalls int
}

func (f *fakeVideo) Encode(_ context.Context, src, dst string, hw bool) error {
	if hw {
		f.hwCalls++
	} else {
		f.swCalls++
	}
	if f.fn != nil {
		return f.fn(src, dst, hw)
	}
	return halve(src, dst)
}

// halve writes a dst half the size of src, simulating a worthwhile encode.
func halve(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data[:len(data)/2], 0o644)
}

// writeAt writes an output of exactly n bytes, for threshold tests.
func writeAt(n int) func(src, dst string) error {
	return func(_, dst string) error {
		return os.WriteFile(dst, make([]byte, n), 0o644)
	}
}

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, data := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
}

func runMirror(t *testing.T, cfg mirror.Config) (mirror.Result, []event.Event) {
	t.Helper()
	events := make(chan event.Event, 1024)
	cfg.Events = events
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	res := mirror.Run(context.Background(), cfg)
	close(events)
	var got []event.Event
	for ev := range events {
		got = append(got, ev)
	}
	return res, got
}

func eventsOfType(evs []event.Event, typ event.Type) []event.Event {
	var out []event.Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestRun_MixedTree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{
		"2020/IMG_1.jpg":  make([]byte, 4000),
		"2020/clip.mp4":   make([]byte, 8000),
		"2020/notes.txt":  []byte("not media at all"),
		"loose/track.mp3": make([]byte, 500),
	})

	img := &fakeImage{}
	vid := &fakeVideo{}
	res, evs := runMirror(t, mirror.Config{
		Source: src, Dest: dst, Images: img, Videos: vid,
	})
	require.NoError(t, res.Err)

	assert.Equal(t, int64(4), res.Stats.FilesProcessed)
	assert.Equal(t, int64(1), res.Stats.ImagesConverted)
	assert.Equal(t, int64(1), res.Stats.VideosConverted)
	assert.Equal(t, int64(2), res.Stats.FilesCopied)
	assert.Equal(t, 1, img.calls)
	assert.Equal(t, 1, vid.swCalls) // hw accel off by default

	// Converted files carry the shrunk content, copies are verbatim.
	converted, err := os.ReadFile(filepath.Join(dst, "2020", "IMG_1.jpg"))
	require.NoError(t, err)
	assert.Len(t, converted, 2000)

	copied, err := os.ReadFile(filepath.Join(dst, "2020", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("not media at all"), copied)

	assert.Len(t, eventsOfType(evs, event.FileConverted), 2)
	assert.Len(t, eventsOfType(evs, event.FileCopied), 2)
}

func TestRun_Idempotence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{
		"a.jpg": make([]byte, 1000),
		"b.txt": []byte("plain"),
	})

	img := &fakeImage{}
	cfg := mirror.Config{Source: src, Dest: dst, Images: img}

	res1, _ := runMirror(t, cfg)
	require.NoError(t, res1.Err)
	assert.Equal(t, int64(2), res1.Stats.FilesProcessed)

	first := map[string][]byte{}
	for _, rel := range []string{"a.jpg", "b.txt"} {
		data, err := os.ReadFile(filepath.Join(dst, rel))
		require.NoError(t, err)
		first[rel] = data
	}

	// Second run touches nothing: every entry is skipped, no encoder runs.
	res2, evs := runMirror(t, cfg)
	require.NoError(t, res2.Err)
	assert.Equal(t, int64(0), res2.Stats.FilesProcessed)
	assert.Equal(t, int64(2), res2.Stats.FilesSkipped)
	assert.Equal(t, 1, img.calls)
	assert.Len(t, eventsOfType(evs, event.FileSkipped), 2)

	for rel, want := range first {
		got, err := os.ReadFile(filepath.Join(dst, rel))
		require.NoError(t, err)
		assert.Equal(t, want, got, rel)
	}
}

func TestRun_AcceptanceThreshold(t *testing.T) {
	t.Parallel()

	const origSize = 1000 // threshold at ratio 0.9 is exactly 900 bytes

	tests := []struct {
		name     string
		newSize  int
		accepted bool
	}{
		{"just under", 899, true},
		{"exactly at", 900, true},
		{"just over", 901, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			src := filepath.Join(dir, "src")
			dst := filepath.Join(dir, "dst")
			writeTree(t, src, map[string][]byte{"p.jpg": make([]byte, origSize)})

			img := &fakeImage{fn: writeAt(tt.newSize)}
			res, evs := runMirror(t, mirror.Config{Source: src, Dest: dst, Images: img})
			require.NoError(t, res.Err)

			got, err := os.ReadFile(filepath.Join(dst, "p.jpg"))
			require.NoError(t, err)

			if tt.accepted {
				assert.Len(t, got, tt.newSize)
				assert.Equal(t, int64(1), res.Stats.ImagesConverted)
			} else {
				// Rejected: the destination is a byte-identical copy.
				assert.Len(t, got, origSize)
				assert.Equal(t, int64(1), res.Stats.Rejected)
				assert.Equal(t, int64(1), res.Stats.FilesCopied)
				copies := eventsOfType(evs, event.FileCopied)
				require.Len(t, copies, 1)
				assert.Equal(t, event.CopyRejected, copies[0].Reason)
			}
		})
	}
}

func TestRun_VideoHardwareFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{"clip.mp4": make([]byte, 8000)})

	vid := &fakeVideo{fn: func(src, dst string, hw bool) error {
		if hw {
			return fmt.Errorf("h264_cuvid: no NVIDIA device")
		}
		return halve(src, dst)
	}}
	res, evs := runMirror(t, mirror.Config{
		Source: src, Dest: dst, Videos: vid, UseHWAccel: true,
	})
	require.NoError(t, res.Err)

	// The software retry rescued the conversion: Converted, not a copy.
	assert.Equal(t, int64(1), res.Stats.VideosConverted)
	assert.Equal(t, int64(0), res.Stats.FilesCopied)
	assert.Equal(t, int64(1), res.Stats.HWFallbacks)
	assert.Equal(t, 1, vid.hwCalls)
	assert.Equal(t, 1, vid.swCalls)
	assert.Len(t, eventsOfType(evs, event.EncodeRetried), 1)
}

func TestRun_VideoBothTiersFail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	orig := []byte("certainly not a real mp4, but bytes are bytes")
	writeTree(t, src, map[string][]byte{"clip.mp4": orig})

	vid := &fakeVideo{fn: func(_, _ string, _ bool) error {
		return fmt.Errorf("moov atom not found")
	}}
	res, evs := runMirror(t, mirror.Config{
		Source: src, Dest: dst, Videos: vid, UseHWAccel: true,
	})
	require.NoError(t, res.Err, "encode failure is a soft outcome")

	// Exactly two tiers, never a third.
	assert.Equal(t, 1, vid.hwCalls)
	assert.Equal(t, 1, vid.swCalls)
	assert.Equal(t, int64(1), res.Stats.EncodeFailed)

	got, err := os.ReadFile(filepath.Join(dst, "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, orig, got)

	copies := eventsOfType(evs, event.FileCopied)
	require.Len(t, copies, 1)
	assert.Equal(t, event.CopyEncodeFailed, copies[0].Reason)
	assert.ErrorContains(t, copies[0].Err, "moov atom")
}

func TestRun_NonMediaPassthrough(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	orig := []byte("GPS sidecar data")
	writeTree(t, src, map[string][]byte{"track.gpx": orig})

	img := &fakeImage{}
	vid := &fakeVideo{}
	res, evs := runMirror(t, mirror.Config{Source: src, Dest: dst, Images: img, Videos: vid})
	require.NoError(t, res.Err)

	// Neither strategy is ever invoked for Other.
	assert.Equal(t, 0, img.calls)
	assert.Equal(t, 0, vid.hwCalls+vid.swCalls)

	got, err := os.ReadFile(filepath.Join(dst, "track.gpx"))
	require.NoError(t, err)
	assert.Equal(t, orig, got)

	copies := eventsOfType(evs, event.FileCopied)
	require.Len(t, copies, 1)
	assert.Equal(t, event.CopyNotMedia, copies[0].Reason)
	assert.Equal(t, classify.Other, copies[0].Kind)
}

func TestRun_TimestampFidelity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{
		"shot.jpg": make([]byte, 1000),
		"note.txt": []byte("copied verbatim"),
	})

	want := time.Date(2017, 3, 9, 8, 15, 42, 0, time.Local)
	for _, rel := range []string{"shot.jpg", "note.txt"} {
		require.NoError(t, os.Chtimes(filepath.Join(src, rel), want, want))
	}

	res, _ := runMirror(t, mirror.Config{Source: src, Dest: dst, Images: &fakeImage{}})
	require.NoError(t, res.Err)

	// Both the transformed file and the verbatim copy carry the source's
	// modification time.
	for _, rel := range []string{"shot.jpg", "note.txt"} {
		info, err := os.Stat(filepath.Join(dst, rel))
		require.NoError(t, err)
		assert.WithinDuration(t, want, info.ModTime(), time.Second, rel)
	}
}

func TestRun_NestingGuard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeTree(t, src, map[string][]byte{"a.jpg": make([]byte, 100)})

	img := &fakeImage{}

	for _, dst := range []string{src, filepath.Join(src, "mirror")} {
		res, _ := runMirror(t, mirror.Config{Source: src, Dest: dst, Images: img})
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "inside source")
		assert.Equal(t, int64(0), res.Stats.FilesProcessed, "zero files processed")
		assert.Equal(t, 0, img.calls)
	}

	// A sibling directory sharing a name prefix is fine.
	res, _ := runMirror(t, mirror.Config{Source: src, Dest: src + "-mirror", Images: img})
	require.NoError(t, res.Err)
}

func TestRun_NoStagingArtifactSurvives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{
		"a.jpg": make([]byte, 1000),
		"b.txt": []byte("x"),
	})

	res, _ := runMirror(t, mirror.Config{Source: src, Dest: dst, Images: &fakeImage{}})
	require.NoError(t, res.Err)

	var leftovers []string
	require.NoError(t, filepath.WalkDir(dst, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if filepath.Ext(path) == mirror.StagingSuffix {
			leftovers = append(leftovers, path)
		}
		return nil
	}))
	assert.Empty(t, leftovers)
}

func TestRun_StaleStagingArtifactOverwritten(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{"note.txt": []byte("fresh content")})

	// Simulate a crash from a previous run: a stale artifact, no target.
	require.NoError(t, os.MkdirAll(dst, 0o755))
	stale := filepath.Join(dst, "note.txt"+mirror.StagingSuffix)
	require.NoError(t, os.WriteFile(stale, []byte("half-written garbage from the crashed run"), 0o644))

	res, _ := runMirror(t, mirror.Config{Source: src, Dest: dst})
	require.NoError(t, res.Err)

	got, err := os.ReadFile(filepath.Join(dst, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh content"), got)

	_, err = os.Lstat(stale)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_SkipsEmptyFilesAndDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{
		"real.txt":  []byte("content"),
		"empty.txt": {},
	})
	require.NoError(t, os.MkdirAll(filepath.Join(src, "vacant", "nested"), 0o755))

	res, _ := runMirror(t, mirror.Config{Source: src, Dest: dst})
	require.NoError(t, res.Err)
	assert.Equal(t, int64(1), res.Stats.FilesProcessed)

	_, err := os.Lstat(filepath.Join(dst, "empty.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Lstat(filepath.Join(dst, "vacant"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_Excludes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{
		"keep.txt":         []byte("keep"),
		"skip.xmp":         []byte("sidecar"),
		"cache/thumb.jpg":  make([]byte, 100),
		"albums/photo.jpg": make([]byte, 100),
	})

	chain := filter.NewChain()
	require.NoError(t, chain.Add("*.xmp"))
	require.NoError(t, chain.Add("/cache/"))

	res, _ := runMirror(t, mirror.Config{
		Source: src, Dest: dst, Images: &fakeImage{}, Excludes: chain,
	})
	require.NoError(t, res.Err)

	_, err := os.Lstat(filepath.Join(dst, "skip.xmp"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Lstat(filepath.Join(dst, "cache"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Lstat(filepath.Join(dst, "keep.txt"))
	assert.NoError(t, err)
	_, err = os.Lstat(filepath.Join(dst, "albums", "photo.jpg"))
	assert.NoError(t, err)
	assert.Equal(t, int64(2), res.Stats.FilesExcluded)
}

func TestRun_FatalErrorAbortsRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{"sub/file.txt": []byte("x")})

	// The destination parent path is occupied by a regular file, so
	// creating the parent directory is a hard filesystem error.
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "sub"), []byte("in the way"), 0o644))

	res, _ := runMirror(t, mirror.Config{Source: src, Dest: dst})
	require.Error(t, res.Err)
	assert.Equal(t, int64(0), res.Stats.FilesProcessed)
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{"a.txt": []byte("x")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := mirror.Run(ctx, mirror.Config{Source: src, Dest: dst, Stats: stats.NewCollector()})
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRun_Verify(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{"doc.pdf": []byte("important bytes")})

	res, evs := runMirror(t, mirror.Config{Source: src, Dest: dst, Verify: true})
	require.NoError(t, res.Err)
	assert.Equal(t, int64(1), res.Stats.FilesVerified)
	assert.Equal(t, int64(0), res.Stats.VerifyFailed)
	assert.Len(t, eventsOfType(evs, event.VerifyOK), 1)
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeTree(t, src, map[string][]byte{
		"a.jpg": make([]byte, 1000),
		"b.txt": []byte("x"),
	})

	img := &fakeImage{}
	res, _ := runMirror(t, mirror.Config{Source: src, Dest: dst, Images: img, DryRun: true})
	require.NoError(t, res.Err)

	assert.Equal(t, int64(2), res.Stats.FilesProcessed)
	assert.Equal(t, 0, img.calls)
	_, err := os.Lstat(dst)
	assert.ErrorIs(t, err, os.ErrNotExist, "dry run writes nothing")
}

func TestHashFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("different"), 0o644))

	ha, err := mirror.HashFile(a)
	require.NoError(t, err)
	hb, err := mirror.HashFile(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)

	ha2, err := mirror.HashFile(a)
	require.NoError(t, err)
	assert.Equal(t, ha, ha2)
}
