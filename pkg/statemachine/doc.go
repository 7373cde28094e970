// Package statemachine is a transition table for state machines whose
// current state is stored by the caller.
//
// The enrollment engine loads a record, derives its state, fires an event
// and persists the result. The table itself keeps nothing per entity, so a
// single Table serves all of them:
//
//	table := statemachine.MustNew(statemachine.WithTransitions(
//		statemachine.Transition{
//			From: Pending, To: Enabled, Event: Confirm,
//			Guards:  []statemachine.Guard{codeMatches},
//			Actions: []statemachine.Action{markEnabled},
//		},
//	))
//	next, err := table.Fire(ctx, Pending, Confirm, attempt)
//
// Fire failures unwrap to ErrNoTransition when the event is not defined for
// the state, ErrRejected when guards refused it, and ErrActionFailed when
// an action returned an error.
package statemachine
