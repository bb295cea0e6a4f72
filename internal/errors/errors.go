package errors

import (
	"errors"
	"fmt"
)

// PulseError is the structured error type for pulse.
// It carries a stable code, category, and identifier details so callers can
// report failures without exposing stack traces.
type PulseError struct {
	// Code is the unique error code (e.g., "ERR_202_UNSUPPORTED_TYPE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Ingest, Dependency, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	// User-visible failures always include the offending identifier here
	// (path, id, or name+version).
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *PulseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PulseError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with PulseError.
func (e *PulseError) Is(target error) bool {
	if t, ok := target.(*PulseError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *PulseError) WithDetail(key, value string) *PulseError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new PulseError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *PulseError {
	return &PulseError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a PulseError from an existing error.
// The error's message becomes the PulseError message.
func Wrap(code string, err error) *PulseError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Validation creates an input validation error.
func Validation(message string) *PulseError {
	return New(ErrCodeInvalidInput, message, nil)
}

// NotFound creates a lookup error for an unknown identifier.
func NotFound(kind, id string) *PulseError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", kind, id), nil).
		WithDetail("kind", kind).
		WithDetail("id", id)
}

// UnsupportedType creates an error for a file no extractor matches.
func UnsupportedType(path, ext string) *PulseError {
	return New(ErrCodeUnsupportedType, fmt.Sprintf("no extractor for %q", ext), nil).
		WithDetail("path", path).
		WithDetail("extension", ext)
}

// Extraction creates an error for malformed content encountered mid-file.
func Extraction(path string, cause error) *PulseError {
	return New(ErrCodeExtractionFailed, fmt.Sprintf("extraction failed for %s", path), cause).
		WithDetail("path", path)
}

// DuplicateVersion creates a registry uniqueness violation error.
func DuplicateVersion(name, version string) *PulseError {
	return New(ErrCodeDuplicateVersion,
		fmt.Sprintf("artifact already registered: %s v%s", name, version), nil).
		WithDetail("name", name).
		WithDetail("version", version)
}

// Transient creates a retryable error for an unavailable external backend.
func Transient(code, message string, cause error) *PulseError {
	return New(code, message, cause)
}

// StorageConsistency creates an error for a paired write that failed partway.
func StorageConsistency(message string, cause error) *PulseError {
	return New(ErrCodeStorageConsistency, message, cause)
}

// Internal creates an internal error.
func Internal(message string, cause error) *PulseError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a PulseError with the Retryable flag set.
func IsRetryable(err error) bool {
	var pe *PulseError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CodeOf returns the stable code of an error, or ERR_501_INTERNAL for
// errors that did not originate in this package.
func CodeOf(err error) string {
	var pe *PulseError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given stable code.
func HasCode(err error, code string) bool {
	var pe *PulseError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
