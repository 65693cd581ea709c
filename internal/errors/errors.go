package errors

import (
	"fmt"
)

// TraceError is the structured error type for SteelTrace.
// It provides rich context for error handling, logging, and user presentation.
type TraceError struct {
	// Code is the unique error code (e.g., "ERR_201_INPUT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *TraceError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *TraceError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with TraceError.
func (e *TraceError) Is(target error) bool {
	if t, ok := target.(*TraceError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *TraceError) WithDetail(key, value string) *TraceError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *TraceError) WithSuggestion(suggestion string) *TraceError {
	e.Suggestion = suggestion
	return e
}

// New creates a new TraceError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *TraceError {
	return &TraceError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a TraceError from an existing error.
// The error's message becomes the TraceError message.
func Wrap(code string, err error) *TraceError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InputNotFound creates an error for a missing input file.
func InputNotFound(path string, cause error) *TraceError {
	return New(ErrCodeInputNotFound, fmt.Sprintf("input file not found: %s", path), cause).
		WithDetail("path", path)
}

// InvalidFormat creates an error for an unsupported document format.
func InvalidFormat(format string) *TraceError {
	return New(ErrCodeInvalidFormat, fmt.Sprintf("unsupported format: %s", format), nil).
		WithDetail("format", format)
}

// ProviderError creates a provider error, classifying it as transient or
// permanent. Authentication and 4xx failures are permanent and fail fast.
func ProviderError(message string, cause error, transient bool) *TraceError {
	code := ErrCodeProviderPermanent
	if transient {
		code = ErrCodeProviderTransient
	}
	return New(code, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *TraceError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *TraceError {
	return New(ErrCodeInternal, message, cause)
}

// Cancelled creates a cancellation error from a context error.
func Cancelled(cause error) *TraceError {
	return New(ErrCodeCancelled, "operation cancelled", cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a TraceError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := err.(*TraceError); ok {
		return te.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if te, ok := err.(*TraceError); ok {
		return te.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a TraceError.
// Returns empty string if not a TraceError.
func GetCode(err error) string {
	if te, ok := err.(*TraceError); ok {
		return te.Code
	}
	return ""
}

// GetCategory extracts the category from a TraceError.
// Returns empty string if not a TraceError.
func GetCategory(err error) Category {
	if te, ok := err.(*TraceError); ok {
		return te.Category
	}
	return ""
}
