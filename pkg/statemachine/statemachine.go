package statemachine

import "context"

// State is a named node of the machine.
type State interface {
	Name() string
}

// Event is a named trigger.
type Event interface {
	Name() string
}

// Guard vetoes a transition by returning false.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Action runs once a transition is selected. An error aborts Fire.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Transition moves From to To on Event when every guard passes.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard
	Actions []Action
}

// Machine resolves transitions for entities whose state is kept by the caller.
type Machine interface {
	Fire(ctx context.Context, from State, event Event, data any) (State, error)
	CanFire(ctx context.Context, from State, event Event, data any) bool
	Events(from State) []Event
}

// StringState is a State named by its value.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent is an Event named by its value.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }
