package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind/twofactor/pkg/statemachine"
)

const (
	Idle    = statemachine.StringState("idle")
	Pending = statemachine.StringState("pending")
	Enabled = statemachine.StringState("enabled")

	Begin   = statemachine.StringEvent("begin")
	Confirm = statemachine.StringEvent("confirm")
	Reset   = statemachine.StringEvent("reset")
)

func boolGuard(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	ok, _ := data.(bool)
	return ok
}

func TestTable_Fire(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(
		statemachine.WithTransition(Idle, Pending, Begin),
		statemachine.WithTransition(Pending, Enabled, Confirm),
	)
	ctx := context.Background()

	next, err := table.Fire(ctx, Idle, Begin, nil)
	require.NoError(t, err)
	assert.Equal(t, Pending, next)

	// no state is kept between calls
	next, err = table.Fire(ctx, Idle, Begin, nil)
	require.NoError(t, err)
	assert.Equal(t, Pending, next)

	next, err = table.Fire(ctx, Idle, Confirm, nil)
	assert.ErrorIs(t, err, statemachine.ErrNoTransition)
	assert.Equal(t, Idle, next)

	var terr *statemachine.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "idle", terr.State)
	assert.Equal(t, "confirm", terr.Event)
}

func TestTable_Guards(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(statemachine.WithTransition(Pending, Enabled, Confirm, boolGuard))
	ctx := context.Background()

	_, err := table.Fire(ctx, Pending, Confirm, false)
	assert.ErrorIs(t, err, statemachine.ErrRejected)
	assert.False(t, table.CanFire(ctx, Pending, Confirm, false))
	assert.True(t, table.CanFire(ctx, Pending, Confirm, true))

	next, err := table.Fire(ctx, Pending, Confirm, true)
	require.NoError(t, err)
	assert.Equal(t, Enabled, next)
}

func TestTable_FirstPassingTransitionWins(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(statemachine.WithTransitions(
		statemachine.Transition{From: Enabled, To: Idle, Event: Reset, Guards: []statemachine.Guard{boolGuard}},
		statemachine.Transition{From: Enabled, To: Pending, Event: Reset},
	))
	ctx := context.Background()

	next, err := table.Fire(ctx, Enabled, Reset, true)
	require.NoError(t, err)
	assert.Equal(t, Idle, next)

	next, err = table.Fire(ctx, Enabled, Reset, false)
	require.NoError(t, err)
	assert.Equal(t, Pending, next)
}

func TestTable_Actions(t *testing.T) {
	t.Parallel()

	t.Run("run in order", func(t *testing.T) {
		t.Parallel()
		var calls []string
		record := func(name string) statemachine.Action {
			return func(_ context.Context, from, to statemachine.State, _ statemachine.Event, _ any) error {
				calls = append(calls, name+":"+from.Name()+"->"+to.Name())
				return nil
			}
		}

		table := statemachine.MustNew(statemachine.WithTransitions(statemachine.Transition{
			From: Idle, To: Pending, Event: Begin,
			Actions: []statemachine.Action{record("a"), nil, record("b")},
		}))
		_, err := table.Fire(context.Background(), Idle, Begin, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a:idle->pending", "b:idle->pending"}, calls)
	})

	t.Run("failure aborts", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		table := statemachine.MustNew(statemachine.WithTransitions(statemachine.Transition{
			From: Idle, To: Pending, Event: Begin,
			Actions: []statemachine.Action{
				func(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
					return boom
				},
			},
		}))

		next, err := table.Fire(context.Background(), Idle, Begin, nil)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, statemachine.ErrActionFailed)
		assert.Equal(t, Idle, next)
	})

	t.Run("not run by CanFire", func(t *testing.T) {
		t.Parallel()
		ran := false
		table := statemachine.MustNew(statemachine.WithTransitions(statemachine.Transition{
			From: Idle, To: Pending, Event: Begin,
			Actions: []statemachine.Action{
				func(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
					ran = true
					return nil
				},
			},
		}))
		assert.True(t, table.CanFire(context.Background(), Idle, Begin, nil))
		assert.False(t, ran)
	})
}

func TestTable_Events(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(statemachine.WithTransitions(
		statemachine.Transition{From: Idle, To: Pending, Event: Begin},
		statemachine.Transition{From: Idle, To: Enabled, Event: Confirm},
		statemachine.Transition{From: Idle, To: Idle, Event: Begin},
	))

	assert.Equal(t, []statemachine.Event{Begin, Confirm}, table.Events(Idle))
	assert.Empty(t, table.Events(Enabled))
	assert.Nil(t, table.Events(nil))

	// callers cannot mutate the table through the result
	events := table.Events(Idle)
	events[0] = Reset
	assert.Equal(t, statemachine.Event(Begin), table.Events(Idle)[0])
}

func TestNew_InvalidDefinitions(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(statemachine.WithTransition(nil, Idle, Begin))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	_, err = statemachine.New(statemachine.WithTransitions(statemachine.Transition{From: Idle, To: Pending}))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(statemachine.WithTransition(Idle, nil, Begin))
	})
}

func TestTable_NilInputs(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(statemachine.WithTransition(Idle, Pending, Begin))
	ctx := context.Background()

	_, err := table.Fire(ctx, nil, Begin, nil)
	assert.ErrorIs(t, err, statemachine.ErrInvalidState)
	_, err = table.Fire(ctx, Idle, nil, nil)
	assert.ErrorIs(t, err, statemachine.ErrInvalidEvent)
	assert.False(t, table.CanFire(ctx, Idle, nil, nil))
}

func TestTable_ConcurrentFire(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(
		statemachine.WithTransition(Idle, Pending, Begin),
		statemachine.WithTransition(Pending, Enabled, Confirm),
	)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			from, event := statemachine.State(Idle), statemachine.Event(Begin)
			if i%2 == 1 {
				from, event = Pending, Confirm
			}
			if _, err := table.Fire(ctx, from, event, nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}
