package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"evenkeel/internal/fingerprint"
	"evenkeel/internal/logging"
)

// Job is one unit of work: a single media file to normalize.
type Job struct {
	ID          string
	Path        string
	Signature   fingerprint.Signature
	Fingerprint string
	// Source records how the job was discovered: "scan" or "watch".
	Source string
}

// Handler processes one job. It must be safe for concurrent use.
type Handler func(ctx context.Context, job Job)

// Scheduler fans jobs out to a fixed pool of workers while guaranteeing that
// at most one job per path is queued or running at any time.
type Scheduler struct {
	logger  *slog.Logger
	handler Handler
	workers int

	jobs chan Job

	mu       sync.Mutex
	running  bool
	inFlight map[string]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New constructs a Scheduler with the given worker count.
func New(workers int, handler Handler, logger *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		logger:   logger,
		handler:  handler,
		workers:  workers,
		jobs:     make(chan Job, workers*4),
		inFlight: make(map[string]struct{}),
	}
}

// Start launches the worker pool. It is a no-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(runCtx)
	}
	s.logger.Info("scheduler started", logging.Int("workers", s.workers))
}

// Enqueue submits a job without blocking. It returns false when a job for the
// same path is already queued or running, or when the queue is full. Event
// sources use this form: a dropped path comes back on a later poll.
func (s *Scheduler) Enqueue(job Job) bool {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if !s.reserve(job.Path) {
		return false
	}

	select {
	case s.jobs <- job:
		return true
	default:
		s.release(job.Path)
		s.logger.Warn("job queue full, dropping",
			logging.String("path", job.Path), logging.String("source", job.Source))
		return false
	}
}

// EnqueueWait submits a job, blocking until the queue has room. Batch
// dispatch uses this form so that walking a large library never outruns the
// workers and loses candidates. It returns false when the path is already
// queued or running, the scheduler is not running, or the context is
// cancelled before the job is accepted.
func (s *Scheduler) EnqueueWait(ctx context.Context, job Job) bool {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if !s.reserve(job.Path) {
		return false
	}

	select {
	case s.jobs <- job:
		return true
	case <-ctx.Done():
		s.release(job.Path)
		return false
	}
}

func (s *Scheduler) reserve(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	if _, busy := s.inFlight[path]; busy {
		s.logger.Debug("path already in flight", logging.String("path", path))
		return false
	}
	s.inFlight[path] = struct{}{}
	return true
}

// InFlight reports how many paths are queued or running.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// Stop cancels the workers and waits for in-progress jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Wait blocks until every queued job has been handled. Intended for one-shot
// scan runs; callers must stop enqueueing first.
func (s *Scheduler) Wait() {
	for {
		s.mu.Lock()
		idle := len(s.inFlight) == 0
		s.mu.Unlock()
		if idle {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	defer s.release(job.Path)
	s.handler(ctx, job)
}

func (s *Scheduler) release(path string) {
	s.mu.Lock()
	delete(s.inFlight, path)
	s.mu.Unlock()
}
