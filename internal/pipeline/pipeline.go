package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"evenkeel/internal/config"
	"evenkeel/internal/discovery"
	"evenkeel/internal/encode"
	"evenkeel/internal/fileutil"
	"evenkeel/internal/fingerprint"
	"evenkeel/internal/history"
	"evenkeel/internal/logging"
	"evenkeel/internal/media/ffprobe"
	"evenkeel/internal/plan"
	"evenkeel/internal/scheduler"
	"evenkeel/internal/services"
	ffmpegsvc "evenkeel/internal/services/ffmpeg"
	"evenkeel/internal/state"
)

// Outcome labels how a job finished.
type Outcome string

const (
	// OutcomeNormalized means the file was re-encoded and swapped in place.
	OutcomeNormalized Outcome = "normalized"
	// OutcomePassthrough means the file was already at target and only the
	// state record was written.
	OutcomePassthrough Outcome = "passthrough"
	// OutcomeSkipped means no work was needed (already processed, no audio,
	// or silent stream).
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means processing errored; no state is recorded so the
	// file is retried on a later cycle.
	OutcomeFailed Outcome = "failed"
)

// Result summarizes one processed job.
type Result struct {
	Outcome  Outcome
	PeakDBFS float64
	GainDB   float64
	Encoder  string
	Bitrate  int64
	Err      error
}

// Pipeline runs the full probe, measure, plan, encode, replace sequence for
// one file at a time. It is safe for concurrent use; per-path exclusivity is
// the scheduler's job.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	state   *state.Store
	history *history.Store
	client  ffmpegsvc.Client
	encoder *encode.Encoder

	// inspectFn is overridable in tests.
	inspectFn func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// New constructs a Pipeline. The history store may be nil, in which case no
// ledger entries are written.
func New(cfg *config.Config, logger *slog.Logger, st *state.Store, hist *history.Store, client ffmpegsvc.Client) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Scheduler.SubprocessTimeoutSeconds) * time.Second
	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		state:     st,
		history:   hist,
		client:    client,
		encoder:   encode.New(client, logger, cfg.Scheduler.FFmpegThreads, timeout),
		inspectFn: ffprobe.Inspect,
	}
}

// Evaluate decides whether a path needs processing. It performs the cheap
// signature check before the chunked fingerprint, and refreshes the stored
// signature when only timestamps moved.
func (p *Pipeline) Evaluate(path string) (scheduler.Job, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return scheduler.Job{}, false, services.Wrap(services.ErrIO, "pipeline", "evaluate", path, err)
	}
	if !discovery.Eligible(p.cfg, path, info.Size()) {
		return scheduler.Job{}, false, nil
	}

	sig := fingerprint.FromInfo(info)
	if p.state.MatchesSignature(path, sig) {
		return scheduler.Job{}, false, nil
	}

	fp, err := fingerprint.Compute(path)
	if err != nil {
		return scheduler.Job{}, false, services.Wrap(services.ErrIO, "pipeline", "fingerprint", path, err)
	}
	if rec, ok := p.state.Lookup(path); ok && rec.Fingerprint == fp {
		if err := p.state.RefreshSignature(path, sig); err != nil {
			return scheduler.Job{}, false, err
		}
		p.logger.Debug("metadata-only change, signature refreshed", logging.String("path", path))
		return scheduler.Job{}, false, nil
	}

	return scheduler.Job{Path: path, Signature: sig, Fingerprint: fp}, true, nil
}

// Handle adapts Process for the scheduler, writing the ledger entry and the
// outcome log line. The result is returned for callers that track totals.
func (p *Pipeline) Handle(ctx context.Context, job scheduler.Job) Result {
	start := time.Now()
	result := p.Process(ctx, job)
	elapsed := time.Since(start)

	if p.history != nil && result.Outcome != OutcomeSkipped {
		entry := history.Entry{
			JobID:      job.ID,
			Path:       job.Path,
			Source:     job.Source,
			Outcome:    string(result.Outcome),
			PeakDBFS:   result.PeakDBFS,
			GainDB:     result.GainDB,
			Encoder:    result.Encoder,
			BitrateBPS: int(result.Bitrate),
			DurationMS: elapsed.Milliseconds(),
		}
		if result.Err != nil {
			entry.Error = result.Err.Error()
		}
		if err := p.history.Record(ctx, entry); err != nil {
			p.logger.Warn("could not record history entry",
				logging.String("path", job.Path), logging.Error(err))
		}
	}

	attrs := []any{
		logging.String("path", job.Path),
		logging.String("outcome", string(result.Outcome)),
		logging.Duration("elapsed", elapsed),
	}
	if result.Outcome == OutcomeFailed {
		p.logger.Error("processing failed", append(attrs, logging.Error(result.Err))...)
		return result
	}
	if result.Outcome == OutcomeNormalized {
		attrs = append(attrs,
			logging.Float64("peak_dbfs", result.PeakDBFS),
			logging.Float64("gain_db", result.GainDB),
			logging.String("encoder", result.Encoder))
	}
	p.logger.Info("processing finished", attrs...)
	return result
}

// Process runs the job end to end. The original file is only ever replaced
// through an atomic rename of a fully written sibling; any failure leaves it
// untouched and uncommitted.
func (p *Pipeline) Process(ctx context.Context, job scheduler.Job) Result {
	path := job.Path

	info, err := os.Stat(path)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: services.Wrap(services.ErrIO, "pipeline", "stat", path, err)}
	}
	sig := fingerprint.FromInfo(info)
	if p.state.MatchesSignature(path, sig) {
		return Result{Outcome: OutcomeSkipped}
	}

	probe, err := p.inspect(ctx, path)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	main, ok := probe.MainAudio()
	if !ok {
		p.logger.Info("no audio streams, recording as done", logging.String("path", path))
		if err := p.commit(path); err != nil {
			return Result{Outcome: OutcomeFailed, Err: err}
		}
		return Result{Outcome: OutcomeSkipped}
	}

	peak, err := p.measure(ctx, path, main.Index)
	if err != nil {
		if errors.Is(err, ffmpegsvc.ErrNoMeasurablePeak) {
			p.logger.Info("silent audio stream, recording as done", logging.String("path", path))
			if commitErr := p.commit(path); commitErr != nil {
				return Result{Outcome: OutcomeFailed, Err: commitErr}
			}
			return Result{Outcome: OutcomeSkipped}
		}
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	computed := plan.Compute(plan.Input{
		PeakDBFS:         peak,
		TargetDBFS:       p.cfg.Normalize.TargetPeakDBFS,
		Codec:            main.CodecName,
		Channels:         main.Channels,
		SourceBitrateBPS: main.BitRateBPS(),
		Extension:        strings.ToLower(filepath.Ext(path)),
		MinBitrateBPS:    p.cfg.MinBitrateBPS(),
		Faststart:        p.cfg.Normalize.Faststart,
	})

	result := Result{
		PeakDBFS: peak,
		GainDB:   computed.GainDB,
		Encoder:  computed.Encoder,
		Bitrate:  computed.BitrateBPS,
	}

	if computed.Action == plan.ActionPassthrough {
		p.logger.Info("peak already at target",
			logging.String("path", path), logging.Float64("peak_dbfs", peak))
		if err := p.commit(path); err != nil {
			result.Outcome = OutcomeFailed
			result.Err = err
			return result
		}
		result.Outcome = OutcomePassthrough
		return result
	}

	p.logger.Info("normalizing",
		logging.String("path", path),
		logging.Float64("peak_dbfs", peak),
		logging.Float64("gain_db", computed.GainDB),
		logging.String("encoder", computed.Encoder),
		logging.Int64("bitrate_bps", computed.BitrateBPS))

	encoded, err := p.encoder.Encode(ctx, encode.Request{
		Path:      path,
		Probe:     probe,
		MainIndex: main.Index,
		Plan:      computed,
	})
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	if encoded.DroppedSubtitles {
		p.logger.Warn("output written without subtitle streams", logging.String("path", path))
	}

	if err := fileutil.CheckOutputSanity(encoded.OutputPath, info.Size()); err != nil {
		_ = os.Remove(encoded.OutputPath)
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	if err := fileutil.ReplaceFile(path, encoded.OutputPath); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	if err := p.commit(path); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	result.Outcome = OutcomeNormalized
	return result
}

// commit records the file's current signature and fingerprint. Called after
// the replacement rename, so the record describes the normalized output.
func (p *Pipeline) commit(path string) error {
	sig, err := fingerprint.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrIO, "pipeline", "commit", path, err)
	}
	fp, err := fingerprint.Compute(path)
	if err != nil {
		return services.Wrap(services.ErrIO, "pipeline", "commit", path, err)
	}
	return p.state.Commit(path, state.FileRecord{
		Signature:   sig,
		Fingerprint: fp,
		ProcessedAt: time.Now().UTC(),
	})
}

func (p *Pipeline) inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	ctx, cancel := p.subprocessContext(ctx)
	defer cancel()
	probe, err := p.inspectFn(ctx, p.cfg.FFprobeBinary(), path)
	if err != nil {
		return ffprobe.Result{}, services.Wrap(services.ErrProbe, "pipeline", "inspect", path, err)
	}
	return probe, nil
}

func (p *Pipeline) measure(ctx context.Context, path string, streamIndex int) (float64, error) {
	ctx, cancel := p.subprocessContext(ctx)
	defer cancel()
	peak, err := p.client.MeasurePeak(ctx, ffmpegsvc.PeakRequest{
		Input:       path,
		StreamIndex: streamIndex,
		Threads:     p.cfg.Scheduler.FFmpegThreads,
	})
	if err != nil {
		if errors.Is(err, ffmpegsvc.ErrNoMeasurablePeak) {
			return 0, fmt.Errorf("measure %s: %w", path, err)
		}
		return 0, services.Wrap(services.ErrProbe, "pipeline", "measure", path, err)
	}
	return peak, nil
}

func (p *Pipeline) subprocessContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(p.cfg.Scheduler.SubprocessTimeoutSeconds) * time.Second
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
