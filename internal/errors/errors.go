// Package errors provides structured error types for the query and
// alerting core. Collector and notification failures are recoverable
// per-item conditions; spec validation failures are not.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrCollectorUnavailable = errors.New("collector unavailable")
	ErrInvalidSpec          = errors.New("invalid query spec")
	ErrNotificationFailed   = errors.New("notification failed")
	ErrTimeout              = errors.New("timeout")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeCollector    ErrorType = "collector"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotification ErrorType = "notification"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeInternal     ErrorType = "internal"
)

// CoreError is a structured error for pipeline operations
type CoreError struct {
	Type      ErrorType
	Op        string // Operation that failed (e.g., "fetch_samples", "send_alert")
	Source    string // Collector filter or channel name where the error occurred
	Err       error  // Underlying error
	Timestamp time.Time
	Retryable bool
}

func (e *CoreError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Source, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *CoreError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrCollectorUnavailable:
		return e.Type == ErrorTypeCollector
	case ErrInvalidSpec:
		return e.Type == ErrorTypeValidation
	case ErrNotificationFailed:
		return e.Type == ErrorTypeNotification
	case ErrTimeout:
		return e.Type == ErrorTypeTimeout
	}

	return errors.Is(e.Err, target)
}

// New creates a CoreError of the given type.
func New(errorType ErrorType, op, source string, err error) *CoreError {
	return &CoreError{
		Type:      errorType,
		Op:        op,
		Source:    source,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: isRetryable(errorType),
	}
}

// isRetryable determines if an error category is worth retrying. Only
// collector and timeout failures are; notification failures are logged
// and dropped by the dispatcher, validation failures never change on
// retry.
func isRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeCollector, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// Helper functions

// WrapCollectorError wraps a transport or authorization failure reaching
// the data source. The query engine recovers these as an empty result.
func WrapCollectorError(op, filter string, err error) error {
	return New(ErrorTypeCollector, op, filter, err)
}

// WrapValidationError wraps a malformed query spec. Surfaced to the
// caller, never retried.
func WrapValidationError(op string, err error) error {
	return New(ErrorTypeValidation, op, "", err)
}

// WrapNotificationError wraps a delivery failure to one channel. Logged
// by the dispatcher; never aborts other channels.
func WrapNotificationError(op, channel string, err error) error {
	return New(ErrorTypeNotification, op, channel, err)
}

// WrapTimeoutError wraps an operation that exceeded its caller-supplied
// deadline.
func WrapTimeoutError(op, source string, err error) error {
	return New(ErrorTypeTimeout, op, source, err)
}

// IsRetryable checks if an error should be retried by the caller's loop
func IsRetryable(err error) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Retryable
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrCollectorUnavailable)
}

// IsValidation checks if an error is a spec validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidSpec)
}
