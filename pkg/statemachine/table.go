package statemachine

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

type key struct {
	state string
	event string
}

// Table is a Machine built once by New. It is read-only afterwards and
// safe for concurrent use.
type Table struct {
	rules  map[key][]Transition
	events map[string][]Event // per state, in registration order
}

var _ Machine = (*Table)(nil)

// Option adds transitions to a Table under construction.
type Option func(*Table) error

// WithTransitions registers ts in order. Transitions sharing a state and
// event are tried in that order; the first whose guards pass is taken.
func WithTransitions(ts ...Transition) Option {
	return func(t *Table) error {
		for i, tr := range ts {
			if err := t.add(tr); err != nil {
				return fmt.Errorf("transition %d: %w", i, err)
			}
		}
		return nil
	}
}

// WithTransition registers a single transition.
func WithTransition(from, to State, event Event, guards ...Guard) Option {
	return WithTransitions(Transition{From: from, To: to, Event: event, Guards: guards})
}

func New(opts ...Option) (*Table, error) {
	t := &Table{
		rules:  make(map[key][]Transition),
		events: make(map[string][]Event),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew panics when New fails. Meant for package level tables.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) add(tr Transition) error {
	if tr.From == nil || tr.To == nil || tr.Event == nil {
		return ErrInvalidTransition
	}
	k := key{tr.From.Name(), tr.Event.Name()}
	if _, seen := t.rules[k]; !seen {
		t.events[k.state] = append(t.events[k.state], tr.Event)
	}
	t.rules[k] = append(t.rules[k], tr)
	return nil
}

// Fire picks the transition for event out of from, runs its actions and
// returns the target. On error the returned state is from.
func (t *Table) Fire(ctx context.Context, from State, event Event, data any) (State, error) {
	switch {
	case from == nil:
		return nil, ErrInvalidState
	case event == nil:
		return from, ErrInvalidEvent
	}

	tr, err := t.lookup(ctx, from, event, data)
	if err != nil {
		return from, err
	}
	for _, act := range tr.Actions {
		if act == nil {
			continue
		}
		if err := act(ctx, from, tr.To, event, data); err != nil {
			return from, errors.Join(ErrActionFailed, err)
		}
	}
	return tr.To, nil
}

// CanFire evaluates guards without running actions.
func (t *Table) CanFire(ctx context.Context, from State, event Event, data any) bool {
	if from == nil || event == nil {
		return false
	}
	_, err := t.lookup(ctx, from, event, data)
	return err == nil
}

// Events lists the events defined out of from.
func (t *Table) Events(from State) []Event {
	if from == nil {
		return nil
	}
	return slices.Clone(t.events[from.Name()])
}

func (t *Table) lookup(ctx context.Context, from State, event Event, data any) (*Transition, error) {
	k := key{from.Name(), event.Name()}
	candidates := t.rules[k]
	if len(candidates) == 0 {
		return nil, &TransitionError{State: k.state, Event: k.event, Err: ErrNoTransition}
	}

next:
	for i := range candidates {
		for _, g := range candidates[i].Guards {
			if g != nil && !g(ctx, from, event, data) {
				continue next
			}
		}
		return &candidates[i], nil
	}
	return nil, &TransitionError{State: k.state, Event: k.event, Err: ErrRejected}
}
