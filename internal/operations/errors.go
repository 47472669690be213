package operations

import (
	"errors"
	"fmt"

	apperrors "retailcli/internal/errors"
)

// ErrorType represents the type of run error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeDependency   ErrorType = "dependency"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeFatal        ErrorType = "fatal"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// RunError represents a pipeline run error tied to a stage
type RunError struct {
	Type      ErrorType              `json:"type"`
	Stage     string                 `json:"stage,omitempty"`
	Message   string                 `json:"message"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *RunError) Error() string {
	if e == nil {
		return "unknown run error"
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(stage, message string) *RunError {
	return &RunError{
		Type:      ErrorTypeValidation,
		Stage:     stage,
		Message:   message,
		Retryable: false,
	}
}

// NewDependencyError creates a new dependency error
func NewDependencyError(stage, dependsOn, message string) *RunError {
	return &RunError{
		Type:    ErrorTypeDependency,
		Stage:   stage,
		Message: message,
		Context: map[string]interface{}{
			"depends_on": dependsOn,
		},
		Retryable: false,
	}
}

// NewExecutionError creates a new execution error
func NewExecutionError(stage string, cause error, retryable bool) *RunError {
	return &RunError{
		Type:      ErrorTypeExecution,
		Stage:     stage,
		Message:   "stage execution failed",
		Cause:     cause,
		Retryable: retryable,
	}
}

// NewTimeoutError creates a new timeout error. Timeouts are terminal for the
// stage: only ingestion I/O failures qualify for retry.
func NewTimeoutError(stage string, timeout string) *RunError {
	return &RunError{
		Type:    ErrorTypeTimeout,
		Stage:   stage,
		Message: fmt.Sprintf("stage exceeded timeout of %s", timeout),
		Context: map[string]interface{}{
			"timeout": timeout,
		},
		Retryable: false,
	}
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(stage string) *RunError {
	return &RunError{
		Type:      ErrorTypeCancellation,
		Stage:     stage,
		Message:   "run was cancelled",
		Retryable: false,
	}
}

// NewFatalError creates a new fatal error
func NewFatalError(message string, cause error) *RunError {
	return &RunError{
		Type:      ErrorTypeFatal,
		Message:   message,
		Cause:     cause,
		Retryable: false,
	}
}

// IsRetryable reports whether an error should be retried. A RunError carries
// its own flag; anything else defers to the pipeline error taxonomy, where
// only ingestion I/O failures are transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rErr *RunError
	if errors.As(err, &rErr) {
		return rErr.Retryable
	}
	return apperrors.IsRetryable(err)
}

// GetErrorType returns the type of the error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var rErr *RunError
	if errors.As(err, &rErr) {
		return rErr.Type
	}
	return ErrorTypeExecution
}

// WrapError wraps an error with run context, preserving the retryability of
// the underlying cause
func WrapError(err error, stage string, message string) *RunError {
	if err == nil {
		return nil
	}

	// If it's already a RunError, enhance it
	var rErr *RunError
	if errors.As(err, &rErr) {
		if rErr.Stage == "" {
			rErr.Stage = stage
		}
		if message != "" {
			rErr.Message = fmt.Sprintf("%s: %s", message, rErr.Message)
		}
		return rErr
	}

	return &RunError{
		Type:      ErrorTypeExecution,
		Stage:     stage,
		Message:   message,
		Cause:     err,
		Retryable: apperrors.IsRetryable(err),
	}
}

// Common run errors
var (
	// ErrRunNotFound is returned when a run cannot be found
	ErrRunNotFound = &RunError{
		Type:    ErrorTypeNotFound,
		Message: "run not found",
	}

	// ErrRunCompleted is returned when trying to modify a completed run
	ErrRunCompleted = &RunError{
		Type:    ErrorTypeInvalidState,
		Message: "run has already completed",
	}

	// ErrRunNotRunning is returned when trying to stop a run that's not running
	ErrRunNotRunning = &RunError{
		Type:    ErrorTypeInvalidState,
		Message: "run is not running",
	}
)
