package model

import (
	"errors"
	"fmt"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation  ErrorCode = "VALIDATION_ERROR"
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrForbidden   ErrorCode = "FORBIDDEN"
	ErrUnavailable ErrorCode = "UNAVAILABLE"
	ErrInternal    ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the schedsim API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewForbiddenError creates a FORBIDDEN APIError.
func NewForbiddenError(msg string) *APIError {
	return &APIError{Code: ErrForbidden, Message: msg}
}

// NewUnavailableError creates an UNAVAILABLE APIError.
func NewUnavailableError(msg string) *APIError {
	return &APIError{Code: ErrUnavailable, Message: msg}
}

// NewInternalError creates an INTERNAL_ERROR APIError.
func NewInternalError(msg string) *APIError {
	return &APIError{Code: ErrInternal, Message: msg}
}

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}

// Sentinels for workload failures. Match with errors.Is.
var (
	ErrWorkloadOpen   = errors.New("workload cannot be opened")
	ErrInvalidQuantum = errors.New("invalid quantum")
	ErrInvalidArrival = errors.New("invalid arrival time")
	ErrInvalidBurst   = errors.New("invalid burst time")
	ErrMalformedLine  = errors.New("malformed line")
)

// WorkloadErrorKind classifies a workload that could not be run at all.
type WorkloadErrorKind string

const (
	WorkloadOpen   WorkloadErrorKind = "WorkloadOpenError"
	InvalidQuantum WorkloadErrorKind = "InvalidQuantumError"
)

// WorkloadError aborts a single run. The dispatcher cycle carries on.
type WorkloadError struct {
	Kind     WorkloadErrorKind
	Workload string
	Err      error
}

func (e *WorkloadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Workload, e.Err)
}

func (e *WorkloadError) Unwrap() []error {
	switch e.Kind {
	case WorkloadOpen:
		return []error{ErrWorkloadOpen, e.Err}
	case InvalidQuantum:
		return []error{ErrInvalidQuantum, e.Err}
	}
	return []error{e.Err}
}

// InvalidLineError describes one dropped workload line. Parsing continues past it.
type InvalidLineError struct {
	Line int
	Text string
	Err  error
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *InvalidLineError) Unwrap() error {
	return e.Err
}
