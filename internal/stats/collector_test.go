package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mediamirror/mediamirror/internal/stats"
)

func TestCollector_Snapshot(t *testing.T) {
	t.Parallel()

	c := stats.NewCollector()
	c.AddFilesProcessed(5)
	c.AddImagesConverted(2)
	c.AddVideosConverted(1)
	c.AddFilesCopied(2)
	c.AddFilesSkipped(3)
	c.AddRejected(1)
	c.AddBytesIn(1000)
	c.AddBytesOut(400)

	snap := c.Snapshot()
	assert.Equal(t, int64(5), snap.FilesProcessed)
	assert.Equal(t, int64(3), snap.Converted())
	assert.Equal(t, int64(2), snap.FilesCopied)
	assert.Equal(t, int64(3), snap.FilesSkipped)
	assert.Equal(t, int64(1), snap.Rejected)
	assert.Equal(t, int64(600), snap.BytesSaved())
	assert.GreaterOrEqual(t, snap.Elapsed.Nanoseconds(), int64(0))
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
		{-2048, "-2.0 KiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stats.FormatBytes(tt.in), "FormatBytes(%d)", tt.in)
	}
}
