package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// Client defines the ffmpeg behaviour the pipeline depends on.
type Client interface {
	// MeasurePeak runs a volumedetect pass over one stream and returns the
	// maximum sample peak in dBFS.
	MeasurePeak(ctx context.Context, req PeakRequest) (float64, error)
	// Encode produces the normalized output file. On failure the raw stderr
	// is returned alongside the error for fallback classification.
	Encode(ctx context.Context, req EncodeRequest) (string, error)
}

// PeakRequest describes a volumedetect invocation.
type PeakRequest struct {
	Input string
	// StreamIndex is the absolute index of the audio stream to analyze.
	StreamIndex int
	Threads     int
}

// AudioEncoder describes how one audio stream (by audio order) is produced.
type AudioEncoder struct {
	// Encoder is an ffmpeg encoder name, or "copy" for passthrough.
	Encoder string
	// BitrateBPS is applied only for lossy encoders; 0 omits the flag.
	BitrateBPS int64
}

// EncodeRequest describes a full normalization transcode.
type EncodeRequest struct {
	Input  string
	Output string

	Threads int
	// GainDB is applied to the main audio stream via the volume filter.
	GainDB float64
	// MainAudioOrder is the main stream's position among audio streams.
	MainAudioOrder int
	// AudioEncoders holds one entry per audio stream, in audio order.
	AudioEncoders []AudioEncoder

	// DropSubtitles maps video and audio only, leaving subtitle and data
	// streams behind. Used by the fallback attempt.
	DropSubtitles bool
	// ForceMP4 selects the mp4 muxer explicitly (m4v output would otherwise
	// pick the ipod muxer and reject HEVC).
	ForceMP4  bool
	Faststart bool
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// MeasurePeak runs `-af volumedetect -f null -` over the selected stream and
// parses the max_volume figure from the tool's log output.
func (c *CLI) MeasurePeak(ctx context.Context, req PeakRequest) (float64, error) {
	if strings.TrimSpace(req.Input) == "" {
		return 0, errors.New("input path required")
	}

	args := buildPeakArgs(req)
	cmd := commandContext(ctx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffmpeg volumedetect: %w: %s", err, lastLines(stderr.String(), 3))
	}

	peak, ok := parseMaxVolume(stderr.String())
	if !ok {
		return 0, fmt.Errorf("ffmpeg volumedetect: %w", ErrNoMeasurablePeak)
	}
	return peak, nil
}

// Encode runs the transcode described by req. The returned string is the raw
// stderr of the invocation, populated on both success and failure so callers
// can classify fallback-worthy errors.
func (c *CLI) Encode(ctx context.Context, req EncodeRequest) (string, error) {
	if strings.TrimSpace(req.Input) == "" || strings.TrimSpace(req.Output) == "" {
		return "", errors.New("input and output paths required")
	}

	args := buildEncodeArgs(req)
	cmd := commandContext(ctx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stderr.String(), fmt.Errorf("ffmpeg encode: %w: %s", err, lastLines(stderr.String(), 5))
	}
	return stderr.String(), nil
}

func buildPeakArgs(req PeakRequest) []string {
	args := []string{"-hide_banner", "-nostats"}
	if req.Threads > 0 {
		args = append(args, "-threads", fmt.Sprint(req.Threads))
	}
	args = append(args,
		"-i", req.Input,
		"-map", fmt.Sprintf("0:%d", req.StreamIndex),
		"-af", "volumedetect",
		"-f", "null", "-",
	)
	return args
}

func buildEncodeArgs(req EncodeRequest) []string {
	args := []string{"-hide_banner", "-nostats", "-y"}
	if req.Threads > 0 {
		args = append(args, "-threads", fmt.Sprint(req.Threads))
	}
	args = append(args, "-i", req.Input)

	if req.DropSubtitles {
		args = append(args, "-map", "0:v?", "-map", "0:a")
	} else {
		args = append(args, "-map", "0")
	}

	args = append(args, fmt.Sprintf("-filter:a:%d", req.MainAudioOrder), volumeFilter(req.GainDB))

	args = append(args, "-c:v", "copy", "-c:d", "copy")
	if !req.DropSubtitles {
		args = append(args, "-c:s", "copy")
	}
	for order, enc := range req.AudioEncoders {
		args = append(args, fmt.Sprintf("-c:a:%d", order), enc.Encoder)
		if enc.Encoder != "copy" && enc.BitrateBPS > 0 {
			args = append(args, fmt.Sprintf("-b:a:%d", order), fmt.Sprintf("%dk", enc.BitrateBPS/1000))
		}
	}

	if req.ForceMP4 {
		args = append(args, "-f", "mp4")
	}
	if req.Faststart {
		args = append(args, "-movflags", "+faststart")
	}

	args = append(args, req.Output)
	return args
}

func volumeFilter(gainDB float64) string {
	return fmt.Sprintf("volume=%+.3fdB", gainDB)
}

func lastLines(text string, n int) string {
	lines := make([]string, 0, n)
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

var _ Client = (*CLI)(nil)
