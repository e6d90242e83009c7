package encode

import (
	"context"
	"fmt"
	"os/exec"
)

// Video re-encodes videos to HEVC with ffmpeg, scaling the longer
// dimension down to the configured bound while preserving aspect ratio.
// Audio streams and embedded metadata are carried over untouched.
type Video struct {
	Binary       string // ffmpeg binary, e.g. "ffmpeg"
	MaxDimension int
	Quality      int // CRF for software encodes, CQ for NVENC
	Command      CommandContext
}

// NewVideo creates a Video encoder with the given binary and bound.
func NewVideo(binary string, maxDimension, quality int) *Video {
	return &Video{
		Binary:       binary,
		MaxDimension: maxDimension,
		Quality:      quality,
		Command:      exec.CommandContext,
	}
}

// Encode re-encodes src into dst. With hwAccel the NVDEC/NVENC path is
// used end to end; without it the encode runs entirely in software. Both
// modes write the same mp4 container to the same destination, so a failed
// hardware attempt can be retried in software against the identical paths.
func (e *Video) Encode(ctx context.Context, src, dst string, hwAccel bool) error {
	args := []string{
		"-noautorotate",
		"-fps_mode", "passthrough",
	}
	if hwAccel {
		args = append(args,
			"-hwaccel", "cuda",
			"-hwaccel_output_format", "cuda",
			"-c:v", "h264_cuvid",
		)
	}
	args = append(args, "-i", src)
	if hwAccel {
		args = append(args,
			"-c:v", "hevc_nvenc",
			"-cq", fmt.Sprint(e.Quality),
			"-vf", fmt.Sprintf("scale_cuda=%d:%d:force_original_aspect_ratio=decrease", e.MaxDimension, e.MaxDimension),
		)
	} else {
		args = append(args,
			"-c:v", "libx265",
			"-crf", fmt.Sprint(e.Quality),
			"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", e.MaxDimension, e.MaxDimension),
		)
	}
	args = append(args,
		"-c:a", "copy",
		"-movflags", "use_metadata_tags",
		"-map_metadata", "0",
		"-f", "mp4",
		"-y",
		dst,
	)

	return run(e.Command(ctx, e.Binary, args...))
}
