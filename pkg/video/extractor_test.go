package video

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExtractorDefaults(t *testing.T) {
	e := NewExtractor(testVideo())

	assert.Equal(t, "ffmpeg", e.Binary)
	assert.Equal(t, 25.0, e.OutputFPS)
	assert.True(t, e.RoundPosition)
	assert.True(t, e.Overwrite)
	assert.Equal(t, 2, e.Quality)
}

func TestSequenceArgsDirectory(t *testing.T) {
	e := NewExtractor(testVideo())

	args, err := e.sequenceArgs("/out/frames", WriteOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", "0", "-i", "/data/exam.mp4",
		"-vf", "fps=25:round=up:eof_action=pass",
		"-qscale:v", "2", "-start_number", "0",
		"/out/frames/exam_%03d.jpg",
	}, args)
}

func TestSequenceArgsDuration(t *testing.T) {
	e := NewExtractor(testVideo())

	args, err := e.sequenceArgs("/out/frames", WriteOptions{Position: 1, Duration: 2})
	require.NoError(t, err)

	assert.Contains(t, args, "-frames:v")
	assert.Contains(t, args, "50")
	assert.Contains(t, args, "-ss")
	assert.Contains(t, args, "1")
}

func TestSequenceArgsCustomPattern(t *testing.T) {
	e := NewExtractor(testVideo())

	args, err := e.sequenceArgs("/out/frames", WriteOptions{Pattern: "still_%05d", Extension: ".png"})
	require.NoError(t, err)
	assert.Equal(t, "/out/frames/still_%05d.png", args[len(args)-1])
}

func TestSequenceArgsSingleFile(t *testing.T) {
	e := NewExtractor(testVideo())

	args, err := e.sequenceArgs("/out/clip.mp4", WriteOptions{})
	require.NoError(t, err)

	assert.Equal(t, "/out/clip.mp4", args[len(args)-1])
	assert.NotContains(t, args, "-qscale:v")
	assert.NotContains(t, args, "-start_number")
}

func TestSequenceArgsNoOverwrite(t *testing.T) {
	e := NewExtractor(testVideo())
	e.Overwrite = false

	args, err := e.sequenceArgs("/out/frames", WriteOptions{})
	require.NoError(t, err)
	assert.NotContains(t, args, "-y")
}

func TestSequenceArgsRejectsBadPosition(t *testing.T) {
	e := NewExtractor(testVideo())

	_, err := e.sequenceArgs("/out/frames", WriteOptions{Position: 99})
	assert.Error(t, err)
}

func TestPipeArgs(t *testing.T) {
	e := NewExtractor(testVideo())

	args, err := e.pipeArgs(0, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", "0", "-i", "/data/exam.mp4",
		"-vf", "fps=25:round=up:eof_action=pass",
		"-frames:v", "25",
		"-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:1",
	}, args)
}

func TestDecodeRGB24(t *testing.T) {
	// Two 2x1 frames: red then green pixels, then blue then white.
	raw := []byte{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 255, 255, 255,
	}

	frames, err := decodeRGB24(raw, 2, 1)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	first := frames[0]
	assert.Equal(t, image.Rect(0, 0, 2, 1), first.Bounds())
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 255, 0, 255}, first.Pix)
	assert.Equal(t, []byte{0, 0, 255, 255, 255, 255, 255, 255}, frames[1].Pix)
}

func TestDecodeRGB24BadLength(t *testing.T) {
	_, err := decodeRGB24(make([]byte, 7), 2, 1)
	assert.Error(t, err)

	_, err = decodeRGB24(nil, 0, 0)
	assert.Error(t, err)
}

func TestMeanSquaredError(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 2, 1))
	b := image.NewRGBA(image.Rect(0, 0, 2, 1))
	for i := 3; i < len(a.Pix); i += 4 {
		a.Pix[i] = 0xff
		b.Pix[i] = 0xff
	}

	assert.Equal(t, 0.0, meanSquaredError(a, b))

	// One channel differing by 3 over 6 samples gives 9/6.
	b.Pix[0] = 3
	assert.InDelta(t, 1.5, meanSquaredError(a, b), 1e-12)
}

func TestOverlayArgs(t *testing.T) {
	e := NewExtractor(testVideo())

	args := e.overlayArgs("/out/overlay.mp4", OverlayOptions{
		DrawFrameNumber: true,
		DrawTimestamp:   true,
		DownscaleFactor: 2,
		SubtitlesPath:   "/data/exam.srt",
	})

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", "/data/exam.mp4",
		"-vf", "scale=iw/2:ih/2," +
			"drawtext=text=%{n}:fontcolor=Yellow:x=0:y=0," +
			"drawtext=text=%{pts}:fontcolor=Yellow:x=0:y=h-text_h," +
			"subtitles=/data/exam.srt",
		"/out/overlay.mp4",
	}, args)
}

func TestOverlayArgsNoFilters(t *testing.T) {
	e := NewExtractor(testVideo())

	args := e.overlayArgs("/out/copy.mp4", OverlayOptions{})
	assert.NotContains(t, args, "-vf")
}

func TestFramesToVideoArgs(t *testing.T) {
	args := framesToVideoArgs("/out/frames", "/out/summary.mp4", 25, "")

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-framerate", "25",
		"-pattern_type", "glob",
		"-i", "/out/frames/*.jpg",
		"/out/summary.mp4",
	}, args)
}
