// internal/common/errors/errors.go

// Package errors provides the standardized error taxonomy shared by the hub
// service and the client runtime.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Transport is unavailable. Recovered locally via reconnect/backoff and
	// surfaced only as a persistent connection banner, never per event.
	ErrCodeConnection ErrorCode = "CONNECTION_ERROR"

	// Malformed event payload or missing required template variable. The
	// offending input is dropped and logged; it never crashes a handler.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// Mutation target no longer exists (e.g. marking a deleted notification
	// read). Treated as success.
	ErrCodeConflict ErrorCode = "CONFLICT_ERROR"

	// A network or server error on an explicit user action. Surfaced once
	// per action with a retry affordance; optimistic state is not reverted.
	ErrCodeRequestFailure ErrorCode = "REQUEST_FAILURE"

	ErrCodeTemplateNotFound         ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateValidationFailed ErrorCode = "TEMPLATE_VALIDATION_FAILED"

	ErrCodePreferenceLoadFailed ErrorCode = "PREFERENCE_LOAD_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewConnectionError creates a retryable transport error.
func NewConnectionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnection,
		Message:   "Real-time transport unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError creates an error for mutations whose target is gone.
// Callers treat it as a no-op success.
func NewConflictError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   "Mutation target no longer exists",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestFailure creates a retryable error for a failed user action.
func NewRequestFailure(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestFailure,
		Message:   "Request failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template lookup error.
func NewTemplateNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateValidationFailed creates a non-retryable template content error.
func NewTemplateValidationFailed(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateValidationFailed,
		Message:   "Template failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferenceLoadFailed creates a retryable preference lookup error.
func NewPreferenceLoadFailed(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePreferenceLoadFailed,
		Message:   "Preference load failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionError creates a retryable database query error.
func NewQueryExecutionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailed creates a retryable delivery error.
func NewNotificationSendFailed(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Normalize ensures any error is represented as a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// IsConflict reports whether err should be treated as a no-op success.
func IsConflict(err error) bool {
	return HasCode(err, ErrCodeConflict)
}

// GetRetryCount returns how many automatic retries a code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeConnection, ErrCodeNotificationSendFailed:
		return 3
	case ErrCodeRequestFailure:
		return 1
	default:
		return 0
	}
}

// GetErrorCategory buckets codes for logging and metrics.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeConnection:
		return "transport"
	case ErrCodeValidation, ErrCodeTemplateValidationFailed:
		return "validation"
	case ErrCodeConflict:
		return "conflict"
	case ErrCodeDatabaseConnectionFailed, ErrCodeQueryExecutionFailed:
		return "database"
	case ErrCodeNotificationSendFailed:
		return "delivery"
	default:
		return "internal"
	}
}
