package encode

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"evenkeel/internal/logging"
	"evenkeel/internal/media/ffprobe"
	"evenkeel/internal/plan"
	"evenkeel/internal/services"
	ffmpegsvc "evenkeel/internal/services/ffmpeg"
)

// tempMarker sits between the stem and extension of in-flight outputs, so
// orphans from interrupted runs are recognizable on the next startup.
const tempMarker = ".normalised.tmp"

// Request carries everything one encode needs.
type Request struct {
	Path string
	// Probe is the ffprobe result the plan was computed from.
	Probe ffprobe.Result
	// MainIndex is the absolute stream index of the main audio stream.
	MainIndex int
	Plan      plan.Plan
}

// Result reports a finished encode.
type Result struct {
	OutputPath string
	// DroppedSubtitles is true when the fallback attempt produced the output.
	DroppedSubtitles bool
	Attempts         int
}

// Encoder drives ffmpeg through the ordered attempt strategies: first with
// every stream mapped, then once more without subtitle/data streams when the
// failure matches a stream-compatibility signature.
type Encoder struct {
	client  ffmpegsvc.Client
	logger  *slog.Logger
	threads int
	timeout time.Duration
}

// New constructs an Encoder.
func New(client ffmpegsvc.Client, logger *slog.Logger, threads int, timeout time.Duration) *Encoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Encoder{client: client, logger: logger, threads: threads, timeout: timeout}
}

// TempPath returns the sibling temporary output path for a source file.
func TempPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + tempMarker + ext
}

// Encode writes the normalized output to a temporary path beside the
// original and returns it. The original is never written to. On permanent
// failure the temp file is removed and an encode-marked error returned; the
// path will be reattempted on a future cycle because no state is committed.
func (e *Encoder) Encode(ctx context.Context, req Request) (Result, error) {
	output := TempPath(req.Path)

	attempts := []bool{false, true} // dropSubtitles per attempt, in order
	var lastErr error
	for attemptNo, dropSubtitles := range attempts {
		ffmpegReq := e.buildRequest(req, output, dropSubtitles)

		attemptCtx := ctx
		var cancel context.CancelFunc
		if e.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.timeout)
		}
		stderr, err := e.client.Encode(attemptCtx, ffmpegReq)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return Result{OutputPath: output, DroppedSubtitles: dropSubtitles, Attempts: attemptNo + 1}, nil
		}
		lastErr = err
		_ = os.Remove(output)

		if dropSubtitles {
			break
		}
		if ffmpegsvc.ClassifyStderr(stderr) != ffmpegsvc.FailureStreamCompat {
			break
		}
		e.logger.Warn("stream compatibility issue, retrying without subtitles",
			logging.String("path", req.Path), logging.Error(err))
	}

	return Result{}, services.Wrap(services.ErrEncode, "encoder", "transcode", req.Path, lastErr)
}

func (e *Encoder) buildRequest(req Request, output string, dropSubtitles bool) ffmpegsvc.EncodeRequest {
	audio := req.Probe.AudioStreams()
	encoders := make([]ffmpegsvc.AudioEncoder, len(audio))
	for order, stream := range audio {
		if stream.Index == req.MainIndex {
			encoders[order] = ffmpegsvc.AudioEncoder{Encoder: req.Plan.Encoder, BitrateBPS: req.Plan.BitrateBPS}
			continue
		}
		encoders[order] = ffmpegsvc.AudioEncoder{Encoder: "copy"}
	}

	return ffmpegsvc.EncodeRequest{
		Input:          req.Path,
		Output:         output,
		Threads:        e.threads,
		GainDB:         req.Plan.GainDB,
		MainAudioOrder: req.Probe.AudioOrder(req.MainIndex),
		AudioEncoders:  encoders,
		DropSubtitles:  dropSubtitles,
		ForceMP4:       req.Plan.ForceMP4,
		Faststart:      req.Plan.Faststart,
	}
}

// SweepOrphans removes stale temporary outputs left by interrupted runs. It
// runs once at startup, before any job dispatch.
func SweepOrphans(roots []string, logger *slog.Logger) int {
	if logger == nil {
		logger = logging.NewNop()
	}
	removed := 0
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil || entry.IsDir() {
				return nil
			}
			if !strings.Contains(filepath.Base(path), tempMarker) {
				return nil
			}
			if err := os.Remove(path); err != nil {
				logger.Warn("could not clean orphan temp", logging.String("path", path), logging.Error(err))
				return nil
			}
			logger.Info("cleaned orphan temp", logging.String("path", path))
			removed++
			return nil
		})
	}
	return removed
}
