package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"evenkeel/internal/config"
	"evenkeel/internal/deps"
	"evenkeel/internal/discovery"
	"evenkeel/internal/encode"
	"evenkeel/internal/history"
	"evenkeel/internal/pipeline"
	"evenkeel/internal/progress"
	"evenkeel/internal/scheduler"
	ffmpegsvc "evenkeel/internal/services/ffmpeg"
	"evenkeel/internal/state"
)

type scanTotals struct {
	mu          sync.Mutex
	normalized  int
	passthrough int
	skipped     int
	failed      int
	bytes       int64
}

func (t *scanTotals) record(result pipeline.Result, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch result.Outcome {
	case pipeline.OutcomeNormalized:
		t.normalized++
		t.bytes += size
	case pipeline.OutcomePassthrough:
		t.passthrough++
	case pipeline.OutcomeSkipped:
		t.skipped++
	case pipeline.OutcomeFailed:
		t.failed++
	}
}

func newScanCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [root...]",
		Short: "Normalize the library once and exit",
		Long:  "Walks the configured roots (or the given directories), normalizes every eligible file that has not been processed, and exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				roots := make([]string, 0, len(args))
				for _, arg := range args {
					expanded, err := config.ExpandPath(arg)
					if err != nil {
						return err
					}
					roots = append(roots, expanded)
				}
				cfg.Paths.Roots = roots
			}
			if err := deps.Verify(cfg); err != nil {
				return err
			}

			logger, err := cmdCtx.consoleLogger()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runScan(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}
}

func runScan(ctx context.Context, cfg *config.Config, slogger *slog.Logger, out io.Writer) error {
	st := state.Open(cfg.Paths.StateFile, slogger)
	hist, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer hist.Close()

	encode.SweepOrphans(cfg.Paths.Roots, slogger)

	paths, err := discovery.Collect(cfg, slogger)
	if err != nil {
		return err
	}

	client := ffmpegsvc.NewCLI(ffmpegsvc.WithBinary(cfg.FFmpegBinary()))
	pipe := pipeline.New(cfg, slogger, st, hist, client)

	totals := &scanTotals{}
	sizes := make(map[string]int64, len(paths))
	var sizesMu sync.Mutex

	bar := progress.New(isatty.IsTerminal(os.Stderr.Fd()), int64(len(paths)))
	sched := scheduler.New(cfg.Scheduler.Workers, func(ctx context.Context, job scheduler.Job) {
		result := pipe.Handle(ctx, job)
		sizesMu.Lock()
		size := sizes[job.Path]
		sizesMu.Unlock()
		totals.record(result, size)
		bar.Add(1)
	}, slogger)
	sched.Start(ctx)
	defer sched.Stop()

	queued := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		job, needed, err := pipe.Evaluate(path)
		if err != nil {
			slogger.Warn("could not evaluate file", "path", path, "error", err)
			bar.Add(1)
			continue
		}
		if !needed {
			bar.Add(1)
			totals.record(pipeline.Result{Outcome: pipeline.OutcomeSkipped}, 0)
			continue
		}
		if info, statErr := os.Stat(path); statErr == nil {
			sizesMu.Lock()
			sizes[path] = info.Size()
			sizesMu.Unlock()
		}
		job.Source = "scan"
		if sched.EnqueueWait(ctx, job) {
			queued++
		} else {
			bar.Add(1)
		}
	}
	sched.Wait()
	bar.Finish(fmt.Sprintf("scan complete, %d files checked", len(paths)))

	totals.mu.Lock()
	defer totals.mu.Unlock()
	fmt.Fprintln(out, renderTable(
		[]string{"Discovered", "Queued", "Normalized", "Passthrough", "Skipped", "Failed", "Data Normalized"},
		[][]string{{
			fmt.Sprintf("%d", len(paths)),
			fmt.Sprintf("%d", queued),
			fmt.Sprintf("%d", totals.normalized),
			fmt.Sprintf("%d", totals.passthrough),
			fmt.Sprintf("%d", totals.skipped),
			fmt.Sprintf("%d", totals.failed),
			humanize.Bytes(uint64(totals.bytes)),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	if totals.failed > 0 {
		return fmt.Errorf("%d file(s) failed", totals.failed)
	}
	return ctx.Err()
}
