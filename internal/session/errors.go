package session

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrExerciseLogNotFound = errors.New("exercise log not found")
	ErrSnapshotNotFound    = errors.New("session snapshot not found")

	// ErrInvalidTransition is matched by all InvalidTransitionError
	// values via errors.Is.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrValidation marks bad input from the client, mapped to a 400.
	ErrValidation = errors.New("validation failed")
)

// InvalidTransitionError is returned when a command is issued in a
// state that does not permit it. The UI has to re-issue a valid
// command; such errors are never retried automatically.
type InvalidTransitionError struct {
	State  State
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s while session is %s", e.Action, e.State)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func newInvalidTransition(state State, action string) error {
	return &InvalidTransitionError{State: state, Action: action}
}
