package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ProgressSink receives run and stage lifecycle events. The pipeline emits
// into a sink instead of serving status itself; callers attach whatever
// surface they need (logs, a dashboard, a message bus).
type ProgressSink interface {
	RunStarted(ctx context.Context, runID string, stageIDs []string)
	RunCompleted(ctx context.Context, runID string, duration time.Duration)
	RunFailed(ctx context.Context, runID string, err error)
	StageStarted(ctx context.Context, runID, stageID string)
	StageProgress(ctx context.Context, runID, stageID string, progress float64, message string)
	StageCompleted(ctx context.Context, runID, stageID string, duration time.Duration)
	StageFailed(ctx context.Context, runID, stageID string, err error)
	StageSkipped(ctx context.Context, runID, stageID string, reason string)
}

// LogSink is a ProgressSink that writes structured log records
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink backed by the given logger
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) RunStarted(ctx context.Context, runID string, stageIDs []string) {
	s.logger.InfoContext(ctx, "run_started",
		slog.String("run_id", runID),
		slog.Int("stage_count", len(stageIDs)),
		slog.Any("stages", stageIDs))
}

func (s *LogSink) RunCompleted(ctx context.Context, runID string, duration time.Duration) {
	s.logger.InfoContext(ctx, "run_completed",
		slog.String("run_id", runID),
		slog.Duration("duration", duration))
}

func (s *LogSink) RunFailed(ctx context.Context, runID string, err error) {
	s.logger.ErrorContext(ctx, "run_failed",
		slog.String("run_id", runID),
		slog.String("error", errorText(err)))
}

func (s *LogSink) StageStarted(ctx context.Context, runID, stageID string) {
	s.logger.InfoContext(ctx, "stage_started",
		slog.String("run_id", runID),
		slog.String("stage", stageID))
}

func (s *LogSink) StageProgress(ctx context.Context, runID, stageID string, progress float64, message string) {
	s.logger.DebugContext(ctx, "stage_progress",
		slog.String("run_id", runID),
		slog.String("stage", stageID),
		slog.Float64("progress", progress),
		slog.String("message", message))
}

func (s *LogSink) StageCompleted(ctx context.Context, runID, stageID string, duration time.Duration) {
	s.logger.InfoContext(ctx, "stage_completed",
		slog.String("run_id", runID),
		slog.String("stage", stageID),
		slog.Duration("duration", duration))
}

func (s *LogSink) StageFailed(ctx context.Context, runID, stageID string, err error) {
	s.logger.ErrorContext(ctx, "stage_failed",
		slog.String("run_id", runID),
		slog.String("stage", stageID),
		slog.String("error", errorText(err)))
}

func (s *LogSink) StageSkipped(ctx context.Context, runID, stageID string, reason string) {
	s.logger.WarnContext(ctx, "stage_skipped",
		slog.String("run_id", runID),
		slog.String("stage", stageID),
		slog.String("reason", reason))
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// NopSink is a ProgressSink that discards every event
type NopSink struct{}

func (NopSink) RunStarted(context.Context, string, []string)                   {}
func (NopSink) RunCompleted(context.Context, string, time.Duration)            {}
func (NopSink) RunFailed(context.Context, string, error)                       {}
func (NopSink) StageStarted(context.Context, string, string)                   {}
func (NopSink) StageProgress(context.Context, string, string, float64, string) {}
func (NopSink) StageCompleted(context.Context, string, string, time.Duration)  {}
func (NopSink) StageFailed(context.Context, string, string, error)             {}
func (NopSink) StageSkipped(context.Context, string, string, string)           {}

// ProgressTracker tracks item-level progress inside a long-running stage
type ProgressTracker struct {
	Stage     string
	Total     int
	Current   int
	StartTime time.Time
	Message   string
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(stage string, total int) *ProgressTracker {
	return &ProgressTracker{
		Stage:     stage,
		Total:     total,
		Current:   0,
		StartTime: time.Now(),
	}
}

// Update updates the current progress
func (p *ProgressTracker) Update(current int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current = current
	p.Message = message
}

// Increment increments the current progress by 1
func (p *ProgressTracker) Increment(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current++
	p.Message = message
}

// GetProgress returns the current progress state
func (p *ProgressTracker) GetProgress() (current, total int, percentage float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	percentage = 0
	if p.Total > 0 {
		percentage = float64(p.Current) / float64(p.Total) * 100
	}

	return p.Current, p.Total, percentage, p.Message
}

// GetETA calculates the estimated time remaining
func (p *ProgressTracker) GetETA() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Current == 0 || p.Total == 0 {
		return "calculating..."
	}

	elapsed := time.Since(p.StartTime)
	rate := float64(p.Current) / elapsed.Seconds()

	if rate == 0 {
		return "calculating..."
	}

	remaining := float64(p.Total-p.Current) / rate

	if remaining < 60 {
		return fmt.Sprintf("%.0f seconds", remaining)
	} else if remaining < 3600 {
		return fmt.Sprintf("%.1f minutes", remaining/60)
	} else {
		return fmt.Sprintf("%.1f hours", remaining/3600)
	}
}

// IsComplete returns true if the tracked work is complete
func (p *ProgressTracker) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Current >= p.Total
}

// GetElapsedTime returns the elapsed time since start
func (p *ProgressTracker) GetElapsedTime() time.Duration {
	return time.Since(p.StartTime)
}

// GetElapsedTimeString returns a formatted elapsed time string
func (p *ProgressTracker) GetElapsedTimeString() string {
	elapsed := p.GetElapsedTime()

	if elapsed < time.Minute {
		return fmt.Sprintf("%.0f seconds", elapsed.Seconds())
	} else if elapsed < time.Hour {
		return fmt.Sprintf("%.1f minutes", elapsed.Minutes())
	} else {
		return fmt.Sprintf("%.1f hours", elapsed.Hours())
	}
}
