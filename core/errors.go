package core

import (
	"errors"
	"fmt"
)

// FailureKind is the closed enumeration of task failures the dispatcher knows
// how to react to.
type FailureKind int

const (
	// FailureUnknown is any failure the dispatcher has no remediation for.
	FailureUnknown FailureKind = iota
	// FailureNameResolution means a referenced name (function, agent,
	// symbol) could not be resolved.
	FailureNameResolution
	// FailureImport means a required component or module could not be loaded.
	FailureImport
	// FailureExternal means an external collaborator (model API, linter,
	// network service) failed.
	FailureExternal
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNameResolution:
		return "name_resolution"
	case FailureImport:
		return "import"
	case FailureExternal:
		return "external"
	default:
		return "unknown"
	}
}

// TaskError represents a failure reported by a task function.
type TaskError struct {
	Kind    FailureKind `json:"kind"`              // Failure category
	Op      string      `json:"op"`                // Operation or task function that failed
	Message string      `json:"message"`           // Human readable message
	Err     error       `json:"-"`                 // Underlying cause
	Details any         `json:"details,omitempty"` // Additional error details
}

func (e *TaskError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Op != "" {
		return fmt.Sprintf("task error [%s] in %s: %s", e.Kind, e.Op, msg)
	}

	return fmt.Sprintf("task error [%s]: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *TaskError) Unwrap() error { return e.Err }

// NewTaskError creates a TaskError without an underlying cause.
func NewTaskError(kind FailureKind, op, message string) *TaskError {
	return &TaskError{Kind: kind, Op: op, Message: message}
}

// WrapTaskError wraps err as a TaskError of the given kind.
func WrapTaskError(kind FailureKind, op string, err error) *TaskError {
	return &TaskError{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

// KindOf extracts the FailureKind carried by err. Errors that are not
// TaskErrors are FailureUnknown.
func KindOf(err error) FailureKind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}

	return FailureUnknown
}
