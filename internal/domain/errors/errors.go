package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error types for the analysis pipeline
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeStage      ErrorType = "stage"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeCancelled  ErrorType = "cancelled"
	ErrorTypeIntegrity  ErrorType = "integrity"
)

// AppError represents a structured application error
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewValidationError reports a malformed input record. Never fatal to a run.
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// NewStageError reports a degraded stage result.
func NewStageError(stage, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeStage,
		Code:      "STAGE_DEGRADED",
		Message:   message,
		Retryable: false,
		Details:   map[string]interface{}{"stage": stage},
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:      ErrorTypeNotFound,
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: false,
	}
}

func NewCancelledError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeCancelled,
		Code:      "RUN_CANCELLED",
		Message:   message,
		Retryable: false,
	}
}

func NewIntegrityError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeIntegrity,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// Predefined common errors
var (
	ErrRunNotFound  = NewNotFoundError("analysis run")
	ErrHashMismatch = NewIntegrityError("HASH_MISMATCH", "report hash does not match content")
)

// RunError is returned when a run aborts. It names the stage that failed.
type RunError struct {
	RunID string
	Stage string
	Cause error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("analysis run %s failed in stage %s: %v", e.RunID, e.Stage, e.Cause)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable. Deadline overruns count as
// retryable, cancellation does not.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
