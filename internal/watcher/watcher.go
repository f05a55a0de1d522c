package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"evenkeel/internal/config"
	"evenkeel/internal/discovery"
	"evenkeel/internal/logging"
	"evenkeel/internal/scheduler"
)

// Evaluator decides whether a settled path needs a job. Satisfied by
// pipeline.Pipeline.
type Evaluator interface {
	Evaluate(path string) (scheduler.Job, bool, error)
}

// pendingEntry tracks a newly seen file until its size stops changing.
type pendingEntry struct {
	added    time.Time
	lastSize int64
	stable   int
}

// Watcher monitors the library roots with fsnotify and hands files to the
// scheduler only once they pass the readiness gate: a settle delay after
// first sight, then a run of polls observing an unchanged size. Files still
// being copied or remuxed keep growing and never pass the gate.
type Watcher struct {
	cfg       *config.Config
	logger    *slog.Logger
	evaluator Evaluator
	sched     *scheduler.Scheduler
	fsw       *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingEntry
}

// New constructs a Watcher and registers every directory under the
// configured roots.
func New(cfg *config.Config, logger *slog.Logger, evaluator Evaluator, sched *scheduler.Scheduler) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:       cfg,
		logger:    logger,
		evaluator: evaluator,
		sched:     sched,
		fsw:       fsw,
		pending:   make(map[string]*pendingEntry),
	}
	for _, root := range cfg.Paths.Roots {
		if err := w.addRecursive(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes filesystem events and readiness polls until the context is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	interval := time.Duration(w.cfg.Watcher.PollSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("watcher started",
		logging.Int("roots", len(w.cfg.Paths.Roots)),
		logging.Duration("poll_interval", interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Error(err))
		case now := <-ticker.C:
			w.poll(now)
		}
	}
}

// PendingCount reports how many files are waiting in the readiness gate.
func (w *Watcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if watchErr := w.fsw.Add(path); watchErr != nil {
				w.logger.Warn("cannot watch directory",
					logging.String("path", path), logging.Error(watchErr))
			}
			return nil
		}
		// Files that landed before their directory watch was active.
		if discovery.HasVideoExtension(path) {
			w.note(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.mu.Lock()
		delete(w.pending, event.Name)
		w.mu.Unlock()
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !discovery.HasVideoExtension(event.Name) {
		return
	}
	w.note(event.Name)
}

// note starts (or restarts knowledge of) the readiness gate for a path.
func (w *Watcher) note(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.pending[path]; exists {
		return
	}
	w.pending[path] = &pendingEntry{added: time.Now(), lastSize: -1}
	w.logger.Debug("file noticed", logging.String("path", path))
}

// poll advances the readiness gate for every pending file. Exported logic is
// kept off the event loop so tests can drive it directly.
func (w *Watcher) poll(now time.Time) {
	settle := time.Duration(w.cfg.Watcher.SettleSeconds) * time.Second

	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.mu.Unlock()

	for _, path := range paths {
		w.pollOne(path, now, settle)
	}
}

func (w *Watcher) pollOne(path string, now time.Time, settle time.Duration) {
	w.mu.Lock()
	entry, ok := w.pending[path]
	w.mu.Unlock()
	if !ok {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}
	if now.Sub(entry.added) < settle {
		return
	}

	// stable counts consecutive polls observing the same non-zero size, the
	// first sighting of a size included. With stable_checks = 2 a file passes
	// after two polls reporting one unchanged size.
	size := info.Size()
	switch {
	case size > 0 && size == entry.lastSize:
		entry.stable++
	case size > 0:
		entry.stable = 1
	default:
		entry.stable = 0
	}
	entry.lastSize = size

	if entry.stable < w.cfg.Watcher.StableChecks {
		return
	}

	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	job, needed, err := w.evaluator.Evaluate(path)
	if err != nil {
		w.logger.Warn("could not evaluate settled file",
			logging.String("path", path), logging.Error(err))
		return
	}
	if !needed {
		return
	}
	job.Source = "watch"
	if w.sched.Enqueue(job) {
		w.logger.Info("file settled, queued", logging.String("path", path))
	}
}
