// Package video wraps ffmpeg and ffprobe subprocesses for frame extraction,
// overlay rendering and motion profiling of video files.
package video

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"imtools/internal/ffprobe"
)

// Default subprocess binaries, resolved through PATH.
const (
	DefaultBinary      = "ffmpeg"
	DefaultProbeBinary = "ffprobe"
)

// Video is a probed video file. The metadata is read once when the video is
// opened and never refreshed.
type Video struct {
	// Path is the probed media file.
	Path string

	// Width and Height are the video stream dimensions in pixels.
	Width  int
	Height int

	// FPS is the base frame rate reported by the stream.
	FPS float64

	// Duration is the playable length in seconds.
	Duration float64

	// NumFrames is the frame count, taken from the stream metadata or
	// derived from FPS and Duration when the container does not store it.
	NumFrames int
}

// Open probes path with the default ffprobe binary.
func Open(ctx context.Context, path string) (*Video, error) {
	return OpenWith(ctx, DefaultProbeBinary, path)
}

// OpenWith probes path with the given ffprobe binary.
func OpenWith(ctx context.Context, probeBinary, path string) (*Video, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "opening video %s", path)
	}
	result, err := ffprobe.Run(ctx, probeBinary, path)
	if err != nil {
		return nil, err
	}
	return fromProbe(path, result)
}

// fromProbe builds a Video from a decoded probe result.
func fromProbe(path string, result *ffprobe.Result) (*Video, error) {
	stream := result.VideoStream()
	if stream == nil {
		return nil, errors.Errorf("%s has no video stream", path)
	}
	fps, err := stream.FrameRate()
	if err != nil {
		return nil, errors.Wrapf(err, "probing %s", path)
	}
	duration, err := result.DurationSeconds()
	if err != nil {
		return nil, errors.Wrapf(err, "probing %s", path)
	}

	v := &Video{
		Path:     path,
		Width:    stream.Width,
		Height:   stream.Height,
		FPS:      fps,
		Duration: duration,
	}
	if stream.NbFrames != "" {
		if n, err := strconv.Atoi(stream.NbFrames); err == nil {
			v.NumFrames = n
		}
	}
	if v.NumFrames == 0 {
		v.NumFrames = int(math.Round(fps * duration))
	}
	return v, nil
}

// FramePattern returns the filename pattern for extracted frames, with the
// video's stem and enough zero padding to index every frame.
func (v *Video) FramePattern() string {
	width := len(strconv.Itoa(v.NumFrames))
	stem := strings.TrimSuffix(filepath.Base(v.Path), filepath.Ext(v.Path))
	return fmt.Sprintf("%s_%%0%dd", stem, width)
}

// PositionError reports a seek position outside the video.
type PositionError struct {
	Position float64
	Duration float64
}

func (e *PositionError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("position %.3f is negative", e.Position)
	}
	return fmt.Sprintf("position %.3f is larger than the video duration %.3f",
		e.Position, e.Duration)
}

// TimeToFrame converts a position in seconds to a fractional frame number.
func TimeToFrame(seconds, fps float64) float64 {
	return seconds * fps
}

// FrameToTime converts a frame number to its position in seconds.
func FrameToTime(frame int, fps float64) float64 {
	return float64(frame) / fps
}

// RoundTime snaps a position to the start of the frame containing it.
func RoundTime(seconds, fps float64) float64 {
	return math.Floor(seconds*fps) / fps
}

// formatFloat renders a float for an ffmpeg argument without trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// runCommand runs the binary with args, discarding stdout. The captured
// stderr is folded into the returned error.
func runCommand(ctx context.Context, binary string, args []string) error {
	_, err := outputCommand(ctx, binary, args)
	return err
}

// outputCommand runs the binary with args and returns its stdout.
func outputCommand(ctx context.Context, binary string, args []string) ([]byte, error) {
	log.WithFields(log.Fields{
		"binary": binary,
		"args":   strings.Join(args, " "),
	}).Debug("Running subprocess")

	cmd := exec.CommandContext(ctx, binary, args...)
	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "running %s: %s", binary, strings.TrimSpace(errb.String()))
	}
	return outb.Bytes(), nil
}
