// Package scheduler repeats full pipeline runs on a fixed interval.
//
// The scheduler owns only the cadence; what a run does is supplied as a
// Runner callback. One-shot executions bypass this package entirely.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Runner executes one pipeline run.
type Runner func(ctx context.Context) error

// Scheduler fires a Runner when started and then on every interval tick.
// Ticks never stack: a run that outlasts the interval delays the next one.
type Scheduler struct {
	interval time.Duration
	run      Runner
	logger   *slog.Logger
	inner    *gocron.Scheduler

	mu      sync.Mutex
	runs    int
	lastErr error
}

// New creates a scheduler that fires run every interval.
func New(interval time.Duration, run Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		run:      run,
		logger:   logger,
		inner:    gocron.NewScheduler(time.UTC),
	}
}

// Run blocks until ctx is cancelled, executing the runner on schedule.
// Runner errors are logged and recorded but do not stop the schedule; a
// daemon should survive one bad run date or a transient lake failure.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.run == nil {
		return fmt.Errorf("scheduler: no runner configured")
	}

	_, err := s.inner.Every(s.interval).SingletonMode().Do(func() {
		s.fire(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduler: failed to schedule pipeline job: %w", err)
	}

	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	s.inner.StartAsync()

	<-ctx.Done()
	s.inner.Stop()
	s.logger.Info("scheduler stopped", slog.Int("completed_runs", s.Runs()))
	return nil
}

func (s *Scheduler) fire(ctx context.Context) {
	start := time.Now()
	err := s.run(ctx)

	s.mu.Lock()
	s.runs++
	n := s.runs
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the tick; nothing left to report.
			return
		}
		s.logger.Error("scheduled pipeline run failed",
			slog.Int("run_number", n),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return
	}

	s.logger.Info("scheduled pipeline run finished",
		slog.Int("run_number", n),
		slog.Duration("duration", time.Since(start)))
}

// Runs reports how many runs have fired since start.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// LastError returns the error from the most recent run, if any.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
