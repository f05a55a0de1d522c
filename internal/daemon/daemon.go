package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"evenkeel/internal/config"
	"evenkeel/internal/deps"
	"evenkeel/internal/discovery"
	"evenkeel/internal/encode"
	"evenkeel/internal/history"
	"evenkeel/internal/logging"
	"evenkeel/internal/pipeline"
	"evenkeel/internal/scheduler"
	ffmpegsvc "evenkeel/internal/services/ffmpeg"
	"evenkeel/internal/state"
	"evenkeel/internal/watcher"
)

// Daemon wires the state store, scheduler, pipeline, and watcher together
// and enforces single-instance execution via a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	stateStore *state.Store
	histStore  *history.Store
	sched      *scheduler.Scheduler
	watch      *watcher.Watcher

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Daemon. Directories are created eagerly so the lock file
// has somewhere to live.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "evenkeel.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// LockFilePath returns the path guarding single-instance execution.
func (d *Daemon) LockFilePath() string {
	return d.lockPath
}

// Start acquires the instance lock, sweeps orphan temp files, runs the
// initial library scan, and launches the watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another evenkeel instance is already running")
	}

	if err := deps.Verify(d.cfg); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.stateStore = state.Open(d.cfg.Paths.StateFile, d.logger)
	d.histStore, err = history.Open(d.cfg.Paths.HistoryDB)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("open history: %w", err)
	}

	client := ffmpegsvc.NewCLI(ffmpegsvc.WithBinary(d.cfg.FFmpegBinary()))
	pipe := pipeline.New(d.cfg, d.logger, d.stateStore, d.histStore, client)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.sched = scheduler.New(d.cfg.Scheduler.Workers, func(ctx context.Context, job scheduler.Job) {
		pipe.Handle(ctx, job)
	}, d.logger)
	d.sched.Start(runCtx)

	if removed := encode.SweepOrphans(d.cfg.Paths.Roots, d.logger); removed > 0 {
		d.logger.Info("orphan temp files cleaned", logging.Int("count", removed))
	}

	d.watch, err = watcher.New(d.cfg, d.logger, pipe, d.sched)
	if err != nil {
		d.sched.Stop()
		_ = d.histStore.Close()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start watcher: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.Int("workers", d.cfg.Scheduler.Workers),
		logging.String("lock", d.lockPath))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.enqueueExisting(runCtx, pipe)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.watch.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("watcher stopped", logging.Error(err))
		}
	}()

	return nil
}

// enqueueExisting walks the roots once at startup so files that arrived
// while the daemon was down are picked up.
func (d *Daemon) enqueueExisting(ctx context.Context, pipe *pipeline.Pipeline) {
	paths, err := discovery.Collect(d.cfg, d.logger)
	if err != nil {
		d.logger.Warn("initial scan incomplete", logging.Error(err))
	}
	queued := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		job, needed, err := pipe.Evaluate(path)
		if err != nil {
			d.logger.Warn("could not evaluate file",
				logging.String("path", path), logging.Error(err))
			continue
		}
		if !needed {
			continue
		}
		job.Source = "scan"
		if d.sched.EnqueueWait(ctx, job) {
			queued++
		}
	}
	d.logger.Info("initial scan complete",
		logging.Int("discovered", len(paths)), logging.Int("queued", queued))
}

// Stop shuts the watcher and workers down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.running.Store(false)

	if d.cancel != nil {
		d.cancel()
	}
	if d.watch != nil {
		_ = d.watch.Close()
	}
	d.wg.Wait()
	if d.sched != nil {
		d.sched.Stop()
	}
	if d.histStore != nil {
		_ = d.histStore.Close()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("could not release lock", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}
