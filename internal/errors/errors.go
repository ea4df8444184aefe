package errors

import (
	stderrors "errors"
	"fmt"
)

// CoreError is the structured error type for searchcore.
// It provides rich context for error handling, logging, and user presentation.
type CoreError struct {
	// Code is the unique error code (e.g., "ERR_401_INVALID_QUERY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Collaborator, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with CoreError.
func (e *CoreError) Is(target error) bool {
	if t, ok := target.(*CoreError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CoreError) WithDetail(key, value string) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new CoreError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *CoreError {
	return &CoreError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CoreError from an existing error.
// The error's message becomes the CoreError message.
func Wrap(code string, err error) *CoreError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error. Fatal at startup.
func ConfigError(message string, cause error) *CoreError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InvalidQueryError creates a query validation error.
func InvalidQueryError(message string) *CoreError {
	return New(ErrCodeInvalidQuery, message, nil)
}

// InvalidFilterError creates a filter validation error.
func InvalidFilterError(message string) *CoreError {
	return New(ErrCodeInvalidFilter, message, nil)
}

// NormalizationError creates a per-chunk normalization error.
func NormalizationError(chunkID string, cause error) *CoreError {
	e := New(ErrCodeNormalizationFailed, "text normalization failed", cause)
	return e.WithDetail("chunk_id", chunkID)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a CoreError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *CoreError
	if stderrors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort service initialization.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *CoreError
	if stderrors.As(err, &ce) {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a CoreError.
// Returns empty string if not a CoreError.
func GetCode(err error) string {
	var ce *CoreError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category from a CoreError.
// Returns empty string if not a CoreError.
func GetCategory(err error) Category {
	var ce *CoreError
	if stderrors.As(err, &ce) {
		return ce.Category
	}
	return ""
}
