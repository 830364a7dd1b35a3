// Package ffprobe runs ffprobe against a media file and decodes the JSON it
// reports. Numeric fields arrive as strings on the wire and are kept that
// way; accessors do the parsing.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Stream describes a single stream of a probed file.
type Stream struct {
	Index        int    `json:"index"`
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

// Format describes the container of a probed file.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// Result is the decoded ffprobe output.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// VideoStream returns the first video stream, or nil when the file has none.
func (r *Result) VideoStream() *Stream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			return &r.Streams[i]
		}
	}
	return nil
}

// FrameRate parses the stream's r_frame_rate fraction into frames per
// second.
func (s *Stream) FrameRate() (float64, error) {
	return parseRational(s.RFrameRate)
}

// DurationSeconds parses the stream duration, falling back to the container
// duration when the stream does not carry one.
func (r *Result) DurationSeconds() (float64, error) {
	text := r.Format.Duration
	if s := r.VideoStream(); s != nil && s.Duration != "" {
		text = s.Duration
	}
	if text == "" {
		return 0, errors.New("no duration reported")
	}
	d, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parsing duration")
	}
	return d, nil
}

// parseRational parses ffprobe's "num/den" frame-rate notation. A bare
// number is accepted as well.
func parseRational(text string) (float64, error) {
	if text == "" {
		return 0, errors.New("empty frame rate")
	}
	parts := strings.SplitN(text, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing frame rate %q", text)
	}
	if len(parts) == 1 {
		return num, nil
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing frame rate %q", text)
	}
	if den == 0 {
		return 0, errors.Errorf("zero denominator in frame rate %q", text)
	}
	return num / den, nil
}

// Parse decodes raw ffprobe JSON output.
func Parse(data []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "decoding ffprobe output")
	}
	return &result, nil
}

// Run probes path with the given ffprobe binary and returns the decoded
// result. The context cancels the subprocess.
func Run(ctx context.Context, binary, path string) (*Result, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	log.WithFields(log.Fields{
		"binary": binary,
		"path":   path,
	}).Debug("Probing media file")

	cmd := exec.CommandContext(ctx, binary, args...)
	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "running %s: %s", binary, strings.TrimSpace(errb.String()))
	}
	return Parse(outb.Bytes())
}
