// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// ErrStateNotFound indicates no workflow state exists for the given thread.
var ErrStateNotFound = errors.New("workflow state not found")

// StateError wraps state storage errors with additional context.
type StateError struct {
	Op       string // Operation being performed (e.g., "SaveState", "StateByThread")
	ThreadID string // Thread ID if applicable
	Err      error  // Underlying error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s failed for thread %s: %v", e.Op, e.ThreadID, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for state errors.
func (e *StateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStateError creates a new state error with context.
func NewStateError(op, threadID string, err error) *StateError {
	return &StateError{
		Op:       op,
		ThreadID: threadID,
		Err:      err,
	}
}
