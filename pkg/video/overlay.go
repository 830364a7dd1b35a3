package video

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"imtools/pkg/fsutil"
)

// OverlayOptions selects the diagnostic layers burned into the output.
type OverlayOptions struct {
	// DrawFrameNumber draws the running frame number in the top left
	// corner.
	DrawFrameNumber bool

	// DrawTimestamp draws the presentation timestamp in the bottom left
	// corner.
	DrawTimestamp bool

	// DownscaleFactor divides both dimensions; values below 2 keep the
	// original size.
	DownscaleFactor int

	// SubtitlesPath burns the given subtitle file into the frames.
	SubtitlesPath string
}

// overlayArgs builds the ffmpeg invocation for Overlay.
func (e *Extractor) overlayArgs(outputPath string, opts OverlayOptions) []string {
	var filters []string
	if opts.DownscaleFactor > 1 {
		filters = append(filters, fmt.Sprintf("scale=iw/%d:ih/%d",
			opts.DownscaleFactor, opts.DownscaleFactor))
	}
	if opts.DrawFrameNumber {
		filters = append(filters, "drawtext=text=%{n}:fontcolor=Yellow:x=0:y=0")
	}
	if opts.DrawTimestamp {
		filters = append(filters, "drawtext=text=%{pts}:fontcolor=Yellow:x=0:y=h-text_h")
	}
	if opts.SubtitlesPath != "" {
		filters = append(filters, "subtitles="+opts.SubtitlesPath)
	}

	args := append(e.baseArgs(), "-i", e.Video.Path)
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	return append(args, outputPath)
}

// Overlay re-encodes the source video with frame numbers, timestamps and
// subtitles rendered into the frames, for eyeballing synchronization issues.
func (e *Extractor) Overlay(ctx context.Context, outputPath string, opts OverlayOptions) error {
	if err := fsutil.EnsureDir(outputPath); err != nil {
		return errors.Wrapf(err, "preparing output %s", outputPath)
	}
	return runCommand(ctx, e.Binary, e.overlayArgs(outputPath, opts))
}

// framesToVideoArgs builds the ffmpeg invocation for FramesToVideo.
func framesToVideoArgs(framesDir, videoPath string, fps float64, pattern string) []string {
	if pattern == "" {
		pattern = "*.jpg"
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-framerate", formatFloat(fps),
		"-pattern_type", "glob",
		"-i", filepath.Join(framesDir, pattern),
		videoPath,
	}
}

// FramesToVideo encodes the frame files in framesDir matching pattern into a
// video at the given frame rate. An empty pattern encodes every .jpg file.
func FramesToVideo(ctx context.Context, binary, framesDir, videoPath string, fps float64, pattern string) error {
	if err := fsutil.EnsureDir(videoPath); err != nil {
		return errors.Wrapf(err, "preparing output %s", videoPath)
	}
	return runCommand(ctx, binary, framesToVideoArgs(framesDir, videoPath, fps, pattern))
}
