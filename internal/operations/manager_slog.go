package operations

import (
	"context"
	"log/slog"
	"time"
)

// logRunStart logs the start of a pipeline run
func (m *Manager) logRunStart(ctx context.Context, runID string, req RunRequest) {
	slog.InfoContext(ctx, "run_start",
		slog.String("run_id", runID),
		slog.String("run_date", req.RunDate),
		slog.String("stage", req.Stage),
		slog.Any("parameters", req.Parameters))
}

// logRunComplete logs the completion of a pipeline run
func (m *Manager) logRunComplete(ctx context.Context, runID string, duration time.Duration, status string) {
	slog.InfoContext(ctx, "run_complete",
		slog.String("run_id", runID),
		slog.String("status", status),
		slog.Duration("duration", duration))
}

// logRunError logs a run error
func (m *Manager) logRunError(ctx context.Context, runID string, err error) {
	slog.ErrorContext(ctx, "run_error",
		slog.String("run_id", runID),
		slog.String("error", errorText(err)))
}

// logStageStart logs the start of a stage execution
func (m *Manager) logStageStart(ctx context.Context, runID, stageID string) {
	slog.InfoContext(ctx, "stage_start",
		slog.String("run_id", runID),
		slog.String("stage", stageID))
}

// logStageComplete logs the completion of a stage execution
func (m *Manager) logStageComplete(ctx context.Context, runID, stageID string, duration time.Duration) {
	slog.InfoContext(ctx, "stage_complete",
		slog.String("run_id", runID),
		slog.String("stage", stageID),
		slog.Duration("duration", duration))
}

// logStageError logs a stage error
func (m *Manager) logStageError(ctx context.Context, runID, stageID string, err error) {
	slog.ErrorContext(ctx, "stage_error",
		slog.String("run_id", runID),
		slog.String("stage", stageID),
		slog.String("error", errorText(err)))
}
