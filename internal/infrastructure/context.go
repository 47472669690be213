package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// GenerateRunID creates a new unique run ID using UUID v4
func GenerateRunID() string {
	return uuid.New().String()
}

// GenerateTraceID creates a new unique trace ID using UUID v4
func GenerateTraceID() string {
	return uuid.New().String()
}

// ContextWithRunID creates a new context with a generated run ID
func ContextWithRunID(ctx context.Context) context.Context {
	return WithRunID(ctx, GenerateRunID())
}

// EnsureRunID ensures the context has a run ID, generating one if needed
func EnsureRunID(ctx context.Context) context.Context {
	if GetRunID(ctx) == "" {
		return ContextWithRunID(ctx)
	}
	return ctx
}

// EnsureTraceID ensures the context has a trace ID, generating one if needed
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return WithTraceID(ctx, GenerateTraceID())
	}
	return ctx
}

// LoggerWithContext creates a logger that includes the run and trace IDs from
// context. This is the preferred way to get a logger inside a pipeline stage.
func LoggerWithContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()

	if runID := GetRunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}

	return logger
}

// InfoContext logs an info message with context awareness
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerWithContext(ctx).InfoContext(ctx, msg, args...)
}

// ErrorContext logs an error message with context awareness
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerWithContext(ctx).ErrorContext(ctx, msg, args...)
}

// WarnContext logs a warning message with context awareness
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerWithContext(ctx).WarnContext(ctx, msg, args...)
}

// DebugContext logs a debug message with context awareness
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerWithContext(ctx).DebugContext(ctx, msg, args...)
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithError creates a logger with an error field
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}
