// Package engine implements the data-flow core of ArrayForge: the data pool,
// versioned simulation state, hub-based interface sequencing and the
// merge/mask machinery that resolves variable values across a simulation.
package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a core error for handling at the caller boundary.
type ErrorClass string

const (
	// ErrorClassValidation indicates a catalog or contract violation.
	// Examples: unknown variable identifier, missing structure class.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassConsistency indicates an internal-consistency bug.
	// Examples: unlink of a zero-link pool entry, stale handle use.
	ErrorClassConsistency ErrorClass = "consistency"

	// ErrorClassUsage indicates a caller-usage error.
	// Examples: compacting masked unleveled states, sequencing an
	// unavailable interface.
	ErrorClassUsage ErrorClass = "usage"

	// ErrorClassNotFound indicates a missing entity.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassInternal indicates an unexpected internal failure.
	ErrorClassInternal ErrorClass = "internal"
)

// CoreError represents a classified error with context.
type CoreError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Variable is the variable identifier involved, if applicable.
	Variable string `json:"variable,omitempty"`

	// Interface is the interface name involved, if applicable.
	Interface string `json:"interface,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Variable != "" {
		msg = fmt.Sprintf("%s (variable=%s)", msg, e.Variable)
	}
	if e.Interface != "" {
		msg = fmt.Sprintf("%s (interface=%s)", msg, e.Interface)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *CoreError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *CoreError {
	return &CoreError{Class: ErrorClassValidation, Message: message, Err: err}
}

// NewConsistencyError creates a new consistency error.
func NewConsistencyError(message string, err error) *CoreError {
	return &CoreError{Class: ErrorClassConsistency, Message: message, Err: err}
}

// NewUsageError creates a new usage error.
func NewUsageError(message string, err error) *CoreError {
	return &CoreError{Class: ErrorClassUsage, Message: message, Err: err}
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *CoreError {
	return &CoreError{Class: ErrorClassNotFound, Message: message, Err: err}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *CoreError {
	return &CoreError{Class: ErrorClassInternal, Message: message, Err: err}
}

// WithCode adds an error code to an error.
func (e *CoreError) WithCode(code string) *CoreError {
	e.Code = code
	return e
}

// WithVariable adds variable context to an error.
func (e *CoreError) WithVariable(variable string) *CoreError {
	e.Variable = variable
	return e
}

// WithInterface adds interface context to an error.
func (e *CoreError) WithInterface(name string) *CoreError {
	e.Interface = name
	return e
}

// IsValidation returns true if the error is classified as validation.
func IsValidation(err error) bool {
	var e *CoreError
	if errors.As(err, &e) {
		return e.Class == ErrorClassValidation
	}
	return false
}

// IsConsistency returns true if the error is classified as consistency.
func IsConsistency(err error) bool {
	var e *CoreError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConsistency
	}
	return false
}

// IsUsage returns true if the error is classified as usage.
func IsUsage(err error) bool {
	var e *CoreError
	if errors.As(err, &e) {
		return e.Class == ErrorClassUsage
	}
	return false
}

// IsNotFound returns true if the error is classified as not-found.
func IsNotFound(err error) bool {
	var e *CoreError
	if errors.As(err, &e) {
		return e.Class == ErrorClassNotFound
	}
	return false
}

// Common error codes.
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeConsistency  = "CONSISTENCY_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUsage        = "USAGE_ERROR"
	ErrCodeWeightOrder  = "WEIGHT_ORDER"
	ErrCodeStaleHandle  = "STALE_HANDLE"
	ErrCodeUnmetInput   = "UNMET_INPUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeSerialFormat = "SERIAL_FORMAT"
)
