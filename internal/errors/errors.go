package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an error. Record-level violation types carry the exact
// reason strings used in quarantine lists and quality reports.
type ErrorType string

const (
	// Record-level violations, recovered by quarantining the offending record.
	ErrTypeSchema               ErrorType = "SchemaViolation"
	ErrTypeRange                ErrorType = "RangeViolation"
	ErrTypeFutureDate           ErrorType = "FutureDateViolation"
	ErrTypeReferentialIntegrity ErrorType = "ReferentialIntegrityViolation"

	// DuplicateRecord is informational: duplicates are counted, not errors.
	ErrTypeDuplicate ErrorType = "DuplicateRecord"

	// Transient I/O at the ingestion boundary; eligible for bounded retry.
	ErrTypeIngestionIO ErrorType = "IngestionIOError"

	// Fatal at startup: a malformed rule set must never reach a run.
	ErrTypeRuleConfiguration ErrorType = "RuleConfigurationError"

	// Ambient error types.
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper functions for common error types

// NewSchemaError creates a schema violation error
func NewSchemaError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSchema, message, cause)
}

// NewRangeError creates a range violation error
func NewRangeError(message string) *AppError {
	return NewAppError(ErrTypeRange, message, nil)
}

// NewFutureDateError creates a future-date violation error
func NewFutureDateError(message string) *AppError {
	return NewAppError(ErrTypeFutureDate, message, nil)
}

// NewReferentialIntegrityError creates a referential integrity violation error
func NewReferentialIntegrityError(message string) *AppError {
	return NewAppError(ErrTypeReferentialIntegrity, message, nil)
}

// NewIngestionIOError creates a transient ingestion I/O error
func NewIngestionIOError(message string, cause error) *AppError {
	return NewAppError(ErrTypeIngestionIO, message, cause)
}

// NewRuleConfigurationError creates a fatal rule configuration error
func NewRuleConfigurationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeRuleConfiguration, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// TypeOf returns the ErrorType of err if it is or wraps an AppError.
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsRetryable reports whether err is transient ingestion I/O worth retrying
// with backoff. Everything else fails fast or is quarantined.
func IsRetryable(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrTypeIngestionIO
}

// IsFatal reports whether err must abort the run before any output is written.
func IsFatal(err error) bool {
	t, ok := TypeOf(err)
	if !ok {
		return false
	}
	return t == ErrTypeRuleConfiguration || t == ErrTypeConfig
}

// IsNotFound reports whether err means a requested artifact does not exist
// yet, which on a first run is expected rather than a failure.
func IsNotFound(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrTypeNotFound
}
