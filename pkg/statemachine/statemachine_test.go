package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CallMeMhz/feature-gating/pkg/statemachine"
)

const (
	Pending  = statemachine.StringState("pending")
	Active   = statemachine.StringState("active")
	Closing  = statemachine.StringState("closing")
	Closed   = statemachine.StringState("closed")
	Activate = statemachine.StringEvent("activate")
	Close    = statemachine.StringEvent("close")
	Finish   = statemachine.StringEvent("finish")
	Abort    = statemachine.StringEvent("abort")
)

func newLifecycle(t *testing.T, opts ...statemachine.Option) statemachine.StateMachine {
	t.Helper()
	base := []statemachine.Option{
		statemachine.WithTransition(Pending, Active, Activate),
		statemachine.WithTransition(Active, Closing, Close),
		statemachine.WithTransition(Closing, Closed, Finish),
		statemachine.WithTransition(Pending, Closed, Abort),
		statemachine.WithTransition(Active, Closed, Abort),
		statemachine.WithTransition(Closing, Closed, Abort),
		statemachine.WithFinal(Closed),
	}
	sm, err := statemachine.New(Pending, append(base, opts...)...)
	require.NoError(t, err)
	return sm
}

func TestStateMachine_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := newLifecycle(t)

	assert.Equal(t, Pending, sm.Current())
	assert.False(t, sm.Done())

	require.NoError(t, sm.Fire(ctx, Activate, nil))
	require.NoError(t, sm.Fire(ctx, Close, nil))
	require.NoError(t, sm.Fire(ctx, Finish, nil))

	assert.Equal(t, Closed, sm.Current())
	assert.True(t, sm.Done())
}

func TestStateMachine_FinalStateRejectsEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := newLifecycle(t)

	require.NoError(t, sm.Fire(ctx, Abort, nil))

	for _, ev := range []statemachine.Event{Activate, Close, Finish, Abort} {
		err := sm.Fire(ctx, ev, nil)
		require.Error(t, err)
		assert.True(t, statemachine.IsFinalStateError(err), "event %s", ev.Name())
		assert.False(t, sm.CanFire(ctx, ev, nil))
	}
}

func TestStateMachine_NoRepeatedTransition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := newLifecycle(t)

	require.NoError(t, sm.Fire(ctx, Activate, nil))
	err := sm.Fire(ctx, Activate, nil)
	assert.True(t, statemachine.IsNoTransitionAvailableError(err))
	assert.Equal(t, Active, sm.Current())
}

func TestStateMachine_Guards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	allow := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		ok, _ := data.(bool)
		return ok
	}
	sm := statemachine.MustNew(Pending,
		statemachine.WithTransition(Pending, Active, Activate, statemachine.WithGuard(allow)),
	)

	assert.False(t, sm.CanFire(ctx, Activate, false))
	err := sm.Fire(ctx, Activate, false)
	assert.True(t, statemachine.IsTransitionRejectedError(err))
	assert.Equal(t, Pending, sm.Current())

	assert.True(t, sm.CanFire(ctx, Activate, true))
	require.NoError(t, sm.Fire(ctx, Activate, true))
	assert.Equal(t, Active, sm.Current())
}

func TestStateMachine_GuardBranching(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	isUrgent := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		return data == "urgent"
	}
	sm := statemachine.MustNew(Active,
		statemachine.WithTransition(Active, Closed, Close, statemachine.WithGuard(isUrgent)),
		statemachine.WithTransition(Active, Closing, Close),
	)

	require.NoError(t, sm.Fire(ctx, Close, "normal"))
	assert.Equal(t, Closing, sm.Current())
}

func TestStateMachine_ActionsAbortTransition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("boom")

	var calls []string
	record := func(name string, err error) statemachine.Action {
		return func(_ context.Context, from, to statemachine.State, _ statemachine.Event, _ any) error {
			calls = append(calls, name+":"+from.Name()+"->"+to.Name())
			return err
		}
	}

	sm := statemachine.MustNew(Pending,
		statemachine.WithTransition(Pending, Active, Activate,
			statemachine.WithActions(record("first", nil), record("second", boom), record("third", nil)),
		),
	)

	err := sm.Fire(ctx, Activate, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Pending, sm.Current())
	assert.Equal(t, []string{"first:pending->active", "second:pending->active"}, calls)
}

func TestStateMachine_Observers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var seen []string
	var sm statemachine.StateMachine
	sm = newLifecycle(t, statemachine.WithObserver(func(_ context.Context, from, to statemachine.State, ev statemachine.Event) {
		// Observers run unlocked, so reading Current must not deadlock.
		assert.Equal(t, to, sm.Current())
		seen = append(seen, from.Name()+"->"+to.Name()+"@"+ev.Name())
	}))

	require.NoError(t, sm.Fire(ctx, Activate, nil))
	require.NoError(t, sm.Fire(ctx, Close, nil))
	require.NoError(t, sm.Fire(ctx, Finish, nil))
	_ = sm.Fire(ctx, Abort, nil)

	assert.Equal(t, []string{
		"pending->active@activate",
		"active->closing@close",
		"closing->closed@finish",
	}, seen)
}

func TestStateMachine_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(nil)
	assert.Error(t, err)

	_, err = statemachine.New(Pending, statemachine.WithTransition(nil, Active, Activate))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	_, err = statemachine.New(Pending, statemachine.WithTransitions([]statemachine.TransitionDef{
		{From: Pending, To: Active, Event: Activate},
		{From: Active, To: nil, Event: Close},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transition[1] active-><nil> on close")

	_, err = statemachine.New(Pending,
		statemachine.WithFinal(Closed),
		statemachine.WithTransition(Closed, Pending, Activate),
	)
	assert.True(t, statemachine.IsFinalStateError(err))

	assert.Panics(t, func() { statemachine.MustNew(nil) })
	assert.ErrorIs(t, statemachine.MustNew(Pending).Fire(context.Background(), nil, nil), statemachine.ErrInvalidEvent)
}

func TestStateMachine_ConcurrentFireIsExactlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var (
		mu    sync.Mutex
		count int
	)
	sm := newLifecycle(t, statemachine.WithObserver(func(context.Context, statemachine.State, statemachine.State, statemachine.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sm.Fire(ctx, Activate, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, Active, sm.Current())
	assert.Equal(t, 1, count)
}
