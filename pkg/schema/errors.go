package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeInvalidDecision   = "INVALID_DECISION"
	ErrCodeNoTransition      = "NO_TRANSITION"
	ErrCodeConditionsNotMet  = "CONDITIONS_NOT_MET"
	ErrCodeStateNotFound     = "STATE_NOT_FOUND"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeStore             = "STORE_ERROR"
)

// DrillError is the structured error type for all crisisdrill operations.
type DrillError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StateID string         `json:"state_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *DrillError) Error() string {
	if e.StateID != "" {
		return fmt.Sprintf("[%s] state %s: %s", e.Code, e.StateID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DrillError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DrillError.
func NewError(code, message string) *DrillError {
	return &DrillError{Code: code, Message: message}
}

// NewErrorf creates a new DrillError with a formatted message.
func NewErrorf(code, format string, args ...any) *DrillError {
	return &DrillError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithState attaches a scenario state ID to the error.
func (e *DrillError) WithState(stateID string) *DrillError {
	e.StateID = stateID
	return e
}

// WithCause attaches an underlying cause.
func (e *DrillError) WithCause(err error) *DrillError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *DrillError) WithDetails(details map[string]any) *DrillError {
	e.Details = details
	return e
}

// CodeOf returns the DrillError code carried by err, or "" for foreign errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var de *DrillError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
