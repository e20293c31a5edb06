package model

import (
	"errors"
	"os"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "Cycle 'cyc_123' not found"}
	want := "NOT_FOUND: Cycle 'cyc_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("Cycle", "cyc_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "Cycle 'cyc_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "Cycle 'cyc_abc' not found")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "workload", Message: "required"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 1 {
		t.Errorf("Details length = %d, want 1", len(err.Details))
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{
		Entity: "Dispatcher",
		ID:     "pool",
		From:   "SHUTDOWN",
		To:     "PUBLISH",
	}
	want := "invalid Dispatcher state transition: SHUTDOWN → PUBLISH (entity pool)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWorkloadError_Is(t *testing.T) {
	openErr := &WorkloadError{Kind: WorkloadOpen, Workload: "missing.txt", Err: os.ErrNotExist}
	if !errors.Is(openErr, ErrWorkloadOpen) {
		t.Error("open error should match ErrWorkloadOpen")
	}
	if !errors.Is(openErr, os.ErrNotExist) {
		t.Error("open error should keep its cause")
	}
	if errors.Is(openErr, ErrInvalidQuantum) {
		t.Error("open error should not match ErrInvalidQuantum")
	}

	qErr := &WorkloadError{Kind: InvalidQuantum, Workload: "w.txt", Err: errors.New("quantum 0 < 1")}
	if !errors.Is(qErr, ErrInvalidQuantum) {
		t.Error("quantum error should match ErrInvalidQuantum")
	}

	var we *WorkloadError
	if !errors.As(error(qErr), &we) || we.Kind != InvalidQuantum {
		t.Errorf("errors.As failed, got %v", we)
	}
}

func TestInvalidLineError(t *testing.T) {
	err := &InvalidLineError{Line: 3, Text: "-1 4", Err: ErrInvalidArrival}
	if !errors.Is(err, ErrInvalidArrival) {
		t.Error("line error should unwrap to ErrInvalidArrival")
	}
	want := `line 3 "-1 4": invalid arrival time`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
