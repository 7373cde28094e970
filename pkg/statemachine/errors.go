package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("statemachine: transition needs from, to and event")
	ErrInvalidState      = errors.New("statemachine: nil state")
	ErrInvalidEvent      = errors.New("statemachine: nil event")
	ErrActionFailed      = errors.New("statemachine: action failed")

	// ErrNoTransition means the event is not defined for the state.
	ErrNoTransition = errors.New("statemachine: no transition")
	// ErrRejected means transitions exist but guards refused all of them.
	ErrRejected = errors.New("statemachine: rejected by guards")
)

// TransitionError names the state and event a lookup failed for.
// It unwraps to ErrNoTransition or ErrRejected.
type TransitionError struct {
	State string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %q in state %q", e.Err, e.Event, e.State)
}

func (e *TransitionError) Unwrap() error { return e.Err }
