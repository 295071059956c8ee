// Package statemachine provides a small finite state machine keyed by
// comparable state and event types.
//
// Transitions are declared up front as (from, event) -> to entries. Fire
// looks up the transition for the current state, runs the registered actions
// and moves to the target state. Any action error aborts the transition and
// leaves the machine where it was. States marked terminal accept no events.
//
// Basic usage:
//
//	type state string
//	type event string
//
//	m, err := statemachine.New[state, event]("received",
//		statemachine.WithTransition[state, event]("received", "decoded", "processing"),
//		statemachine.WithTransition[state, event]("processing", "delivered", "sent"),
//		statemachine.WithTerminal[state, event]("sent"),
//	)
//	if err != nil {
//		return err
//	}
//	if err := m.Fire(ctx, "decoded"); err != nil {
//		return err
//	}
//
// A Machine is safe for concurrent use, although the usual pattern is one
// machine per unit of work owned by a single goroutine.
package statemachine
