package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// SimpleStateMachine is a thread-safe in-memory state machine.
// Transitions are indexed as [fromState][event][]Transition.
type SimpleStateMachine struct {
	currentState State
	transitions  map[string]map[string][]Transition
	final        map[string]struct{}
	observers    []Observer
	mu           sync.RWMutex
}

func newSimpleStateMachine(initialState State) *SimpleStateMachine {
	return &SimpleStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string][]Transition),
		final:        make(map[string]struct{}),
	}
}

func (sm *SimpleStateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

func (sm *SimpleStateMachine) Done() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.final[sm.currentState.Name()]
	return ok
}

func (sm *SimpleStateMachine) AddTransition(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.final[from.Name()]; ok {
		return NewErrFinalState(from.Name(), event.Name())
	}

	byEvent, ok := sm.transitions[from.Name()]
	if !ok {
		byEvent = make(map[string][]Transition)
		sm.transitions[from.Name()] = byEvent
	}

	// Several transitions may share from/event; guards pick the first match.
	byEvent[event.Name()] = append(byEvent[event.Name()], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

func (sm *SimpleStateMachine) Fire(ctx context.Context, event Event, data any) error {
	if event == nil {
		return ErrInvalidEvent
	}

	sm.mu.Lock()

	from := sm.currentState
	if _, ok := sm.final[from.Name()]; ok {
		sm.mu.Unlock()
		return NewErrFinalState(from.Name(), event.Name())
	}

	candidates := sm.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		sm.mu.Unlock()
		return NewErrNoTransitionAvailable(from.Name(), event.Name())
	}

	t := sm.match(ctx, candidates, event, data)
	if t == nil {
		sm.mu.Unlock()
		return NewErrTransitionRejected(from.Name(), event.Name())
	}

	for _, action := range t.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, from, t.To, event, data); err != nil {
			sm.mu.Unlock()
			return fmt.Errorf("action failed: %w", err)
		}
	}

	sm.currentState = t.To
	observers := sm.observers
	sm.mu.Unlock()

	for _, o := range observers {
		o(ctx, from, t.To, event)
	}
	return nil
}

func (sm *SimpleStateMachine) CanFire(ctx context.Context, event Event, data any) bool {
	if event == nil {
		return false
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if _, ok := sm.final[sm.currentState.Name()]; ok {
		return false
	}
	candidates := sm.transitions[sm.currentState.Name()][event.Name()]
	return sm.match(ctx, candidates, event, data) != nil
}

// match returns the first transition whose guards all pass. Must be called with lock held.
func (sm *SimpleStateMachine) match(ctx context.Context, candidates []Transition, event Event, data any) *Transition {
	for i, t := range candidates {
		passed := true
		for _, guard := range t.Guards {
			if guard != nil && !guard(ctx, sm.currentState, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return &candidates[i]
		}
	}
	return nil
}
