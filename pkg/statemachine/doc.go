// Package statemachine provides a small finite-state-machine used to drive
// single-pass lifecycles such as a toast going from entering to removed.
//
// States and events are plain interfaces; StringState and StringEvent cover
// most uses. Transitions may carry guards (veto) and actions (side effects
// that run before the state changes). Observers run after the state has
// changed, outside the machine lock.
//
// Final states close the machine: any event fired at a final state fails with
// ErrFinalState, which makes "each transition happens exactly once" a property
// the machine enforces rather than one callers must remember.
//
// # Usage
//
//	const (
//	    Entering = statemachine.StringState("entering")
//	    Visible  = statemachine.StringState("visible")
//	    Show     = statemachine.StringEvent("show")
//	)
//
//	sm := statemachine.MustNew(Entering,
//	    statemachine.WithTransition(Entering, Visible, Show),
//	    statemachine.WithFinal(Visible),
//	)
//	_ = sm.Fire(ctx, Show, nil)
//
// # Errors
//
//	statemachine.IsNoTransitionAvailableError(err)
//	statemachine.IsTransitionRejectedError(err)
//	statemachine.IsFinalStateError(err)
package statemachine
