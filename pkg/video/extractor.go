package video

import (
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"imtools/pkg/fsutil"
)

// Extractor pulls frame sequences out of a video. The zero value is not
// usable; construct one with NewExtractor and adjust the fields before the
// first extraction.
type Extractor struct {
	// Video is the source to extract from.
	Video *Video

	// Binary is the ffmpeg executable.
	Binary string

	// OutputFPS is the extraction frame rate. NewExtractor sets it to the
	// source rate.
	OutputFPS float64

	// RoundPosition snaps seek positions to the previous frame boundary
	// before seeking.
	RoundPosition bool

	// Overwrite allows ffmpeg to replace existing output files.
	Overwrite bool

	// Quality is the JPEG quality passed as -qscale:v, from 2 (best) to 31.
	Quality int
}

// WriteOptions controls a single WriteSequence call.
type WriteOptions struct {
	// Position is the start of the sequence in seconds.
	Position float64

	// Duration limits the sequence length in seconds; zero extracts to the
	// end of the video.
	Duration float64

	// Pattern overrides the frame filename pattern when writing into a
	// directory. Empty uses the video's FramePattern.
	Pattern string

	// Extension is the frame file extension for directory output. Empty
	// means ".jpg".
	Extension string
}

// NewExtractor returns an extractor with the source frame rate, near
// lossless JPEG quality, position rounding and overwriting enabled.
func NewExtractor(v *Video) *Extractor {
	return &Extractor{
		Video:         v,
		Binary:        DefaultBinary,
		OutputFPS:     v.FPS,
		RoundPosition: true,
		Overwrite:     true,
		Quality:       2,
	}
}

// seekArgs validates position against the video bounds and returns the input
// arguments. Seeking is placed before the input, which is faster.
func (e *Extractor) seekArgs(position float64) ([]string, error) {
	if e.RoundPosition {
		position = RoundTime(position, e.Video.FPS)
	}
	if position < 0 || position > e.Video.Duration {
		return nil, &PositionError{Position: position, Duration: e.Video.Duration}
	}
	return []string{"-ss", formatFloat(position), "-i", e.Video.Path}, nil
}

// fpsFilter builds the resampling filter. Rounding up with eof_action=pass
// keeps the emitted frame timestamps exact.
func (e *Extractor) fpsFilter() string {
	return fmt.Sprintf("fps=%s:round=up:eof_action=pass", formatFloat(e.OutputFPS))
}

// frameCount converts a duration in seconds to an output frame count.
func (e *Extractor) frameCount(duration float64) int {
	return int(math.Round(e.OutputFPS * duration))
}

func (e *Extractor) baseArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if e.Overwrite {
		args = append(args, "-y")
	}
	return args
}

// sequenceArgs builds the full ffmpeg invocation for WriteSequence.
func (e *Extractor) sequenceArgs(outputPath string, opts WriteOptions) ([]string, error) {
	seek, err := e.seekArgs(opts.Position)
	if err != nil {
		return nil, err
	}

	args := append(e.baseArgs(), seek...)
	args = append(args, "-vf", e.fpsFilter())
	if opts.Duration > 0 {
		args = append(args, "-frames:v", strconv.Itoa(e.frameCount(opts.Duration)))
	}

	out := outputPath
	if filepath.Ext(outputPath) == "" {
		pattern := opts.Pattern
		if pattern == "" {
			pattern = e.Video.FramePattern()
		}
		ext := opts.Extension
		if ext == "" {
			ext = ".jpg"
		}
		out = filepath.Join(outputPath, pattern+ext)
		args = append(args, "-qscale:v", strconv.Itoa(e.Quality), "-start_number", "0")
	}
	return append(args, out), nil
}

// pipeArgs builds the ffmpeg invocation decoding raw RGB frames to stdout.
func (e *Extractor) pipeArgs(position, duration float64) ([]string, error) {
	seek, err := e.seekArgs(position)
	if err != nil {
		return nil, err
	}

	args := append(e.baseArgs(), seek...)
	args = append(args, "-vf", e.fpsFilter())
	if duration > 0 {
		args = append(args, "-frames:v", strconv.Itoa(e.frameCount(duration)))
	}
	return append(args, "-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:1"), nil
}

// WriteSequence extracts frames to outputPath. A path without an extension
// is treated as a directory and receives numbered JPEG frames; a path with
// an extension receives a single re-encoded file.
func (e *Extractor) WriteSequence(ctx context.Context, outputPath string, opts WriteOptions) error {
	args, err := e.sequenceArgs(outputPath, opts)
	if err != nil {
		return err
	}
	if err := fsutil.EnsureDir(outputPath); err != nil {
		return errors.Wrapf(err, "preparing output %s", outputPath)
	}
	return runCommand(ctx, e.Binary, args)
}

// Frames decodes a sequence starting at position into memory through a raw
// RGB pipe. A zero duration decodes to the end of the video.
func (e *Extractor) Frames(ctx context.Context, position, duration float64) ([]*image.RGBA, error) {
	args, err := e.pipeArgs(position, duration)
	if err != nil {
		return nil, err
	}
	raw, err := outputCommand(ctx, e.Binary, args)
	if err != nil {
		return nil, err
	}
	return decodeRGB24(raw, e.Video.Width, e.Video.Height)
}

// decodeRGB24 slices a raw rgb24 byte stream into images.
func decodeRGB24(raw []byte, width, height int) ([]*image.RGBA, error) {
	frameSize := width * height * 3
	if frameSize == 0 {
		return nil, errors.New("video dimensions are unknown")
	}
	if len(raw)%frameSize != 0 {
		return nil, errors.Errorf("raw stream of %d bytes is not a whole number of %dx%d frames",
			len(raw), width, height)
	}

	frames := make([]*image.RGBA, 0, len(raw)/frameSize)
	for off := 0; off < len(raw); off += frameSize {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		src := raw[off : off+frameSize]
		for p := 0; p < width*height; p++ {
			img.Pix[4*p+0] = src[3*p+0]
			img.Pix[4*p+1] = src[3*p+1]
			img.Pix[4*p+2] = src[3*p+2]
			img.Pix[4*p+3] = 0xff
		}
		frames = append(frames, img)
	}
	return frames, nil
}

// MotionProfile samples one frame every step frames across the whole video
// and returns the mean squared pixel difference between consecutive
// samples. Large values mark motion; a run of near-zero values marks a
// still passage.
func (e *Extractor) MotionProfile(ctx context.Context, step int) ([]float64, error) {
	if step <= 0 {
		step = 10
	}
	period := 1 / e.Video.FPS

	previous, err := e.Frames(ctx, 0, period)
	if err != nil {
		return nil, err
	}
	if len(previous) == 0 {
		return nil, errors.New("could not decode the first frame")
	}

	var mses []float64
	for n := step; n < e.Video.NumFrames; n += step {
		current, err := e.Frames(ctx, FrameToTime(n, e.Video.FPS), period)
		if err != nil {
			return nil, err
		}
		if len(current) == 0 {
			break
		}
		mses = append(mses, meanSquaredError(previous[0], current[0]))
		previous = current
	}
	return mses, nil
}

// meanSquaredError averages the squared difference over the RGB channels of
// two equally sized frames.
func meanSquaredError(a, b *image.RGBA) float64 {
	diffs := make([]float64, 0, len(a.Pix)/4*3)
	for i := 0; i+3 < len(a.Pix) && i+3 < len(b.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			d := float64(a.Pix[i+c]) - float64(b.Pix[i+c])
			diffs = append(diffs, d*d)
		}
	}
	return stat.Mean(diffs, nil)
}
