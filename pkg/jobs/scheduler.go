// Package jobs runs periodic background work such as dropping idle learner sessions.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultJobTimeout = 5 * time.Minute

// ErrUnknownJob is returned by RunOnce for a name that was never added.
var ErrUnknownJob = errors.New("unknown job")

// Job represents a background job.
type Job interface {
	Name() string
	Execute(ctx context.Context) error
}

type entry struct {
	job     Job
	every   time.Duration
	running atomic.Bool
}

// Scheduler runs each added job on its own ticker. A tick that arrives while the
// previous run of the same job is still going is skipped.
type Scheduler struct {
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	started bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with no jobs.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		timeout: defaultJobTimeout,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
}

// AddJob registers job to run every interval once Start is called. Jobs with a
// non-positive interval are ignored.
func (s *Scheduler) AddJob(job Job, interval time.Duration) {
	if interval <= 0 {
		s.logger.Warn("job disabled, interval must be positive", "name", job.Name(), "interval", interval)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[job.Name()] = &entry{job: job, every: interval}
}

// Start launches every registered job. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(e)
	}
	s.logger.Info("job scheduler started", "jobs", len(s.entries))
}

// Stop halts the tickers and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("job scheduler stopped")
}

// RunOnce executes a job immediately, outside its schedule.
func (s *Scheduler) RunOnce(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return e.job.Execute(ctx)
}

func (s *Scheduler) loop(e *entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.every)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stop
		cancel()
	}()

	for {
		select {
		case <-ticker.C:
			if !e.running.CompareAndSwap(false, true) {
				s.logger.Debug("job still running, tick skipped", "name", e.job.Name())
				continue
			}
			s.execute(ctx, e.job)
			e.running.Store(false)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) execute(parent context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panic", "name", job.Name(), "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Execute(ctx); err != nil {
		s.logger.Error("job failed", "name", job.Name(), "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("job completed", "name", job.Name(), "duration", time.Since(start))
}
