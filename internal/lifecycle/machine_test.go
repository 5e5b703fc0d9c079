package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/plugind/internal/plugin"
	"github.com/fyrsmithlabs/plugind/internal/schedule"
)

func newMachine(t *testing.T, desc *plugin.Descriptor) *Machine {
	t.Helper()
	hooks := make(map[plugin.Event][]plugin.Hook)
	for _, h := range desc.Hooks {
		hooks[h.Event] = append(hooks[h.Event], h)
	}
	return NewMachine(desc, hooks, schedule.New(nil, nil), nil)
}

func descWith(hooks ...plugin.Hook) *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:         "demo",
		Version:      "1.0.0",
		Category:     plugin.CategoryAPI,
		Capabilities: map[string]bool{"rest": true},
		Hooks:        hooks,
		Exec: func(ctx context.Context, pctx plugin.Context) (any, error) {
			return "done", nil
		},
	}
}

func TestExecute_FullPhaseOrder(t *testing.T) {
	var order []string
	record := func(name string) plugin.HookFunc {
		return func(ctx context.Context, pctx plugin.Context) error {
			order = append(order, name)
			return nil
		}
	}

	desc := descWith(
		plugin.Hook{Event: plugin.EventPreInit, Handler: record("pre-init")},
		plugin.Hook{Event: plugin.EventPostInit, Handler: record("post-init")},
		plugin.Hook{Event: plugin.EventPreExecute, Handler: record("pre-execute")},
		plugin.Hook{Event: plugin.EventPostExecute, Handler: record("post-execute")},
	)
	desc.Init = func(ctx context.Context, pctx plugin.Context) error {
		order = append(order, "init")
		return nil
	}
	desc.Exec = func(ctx context.Context, pctx plugin.Context) (any, error) {
		order = append(order, "body")
		return 42, nil
	}

	m := newMachine(t, desc)
	require.Equal(t, StateRegistered, m.State())

	result, err := m.Execute(context.Background(), plugin.Context{})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, []string{"pre-init", "init", "post-init", "pre-execute", "body", "post-execute"}, order)
	assert.Equal(t, StateInitialized, m.State())

	metrics := m.Metrics()
	assert.Equal(t, 1, metrics.Executions)
	assert.Equal(t, 1, metrics.Successes)
	assert.Equal(t, 0, metrics.Failures)
	assert.False(t, metrics.LastExecution.IsZero())
}

func TestExecute_InitializeRunsOnce(t *testing.T) {
	inits := 0
	desc := descWith()
	desc.Init = func(ctx context.Context, pctx plugin.Context) error {
		inits++
		return nil
	}

	m := newMachine(t, desc)
	_, err := m.Execute(context.Background(), plugin.Context{})
	require.NoError(t, err)
	_, err = m.Execute(context.Background(), plugin.Context{})
	require.NoError(t, err)

	assert.Equal(t, 1, inits)
	assert.Equal(t, 2, m.Metrics().Executions)
}

func TestExecute_BodyFailureDispatchesErrorEvent(t *testing.T) {
	errorFired := 0
	desc := descWith(
		plugin.Hook{Event: plugin.EventError, Handler: func(ctx context.Context, pctx plugin.Context) error {
			errorFired++
			return nil
		}},
	)
	desc.Exec = func(ctx context.Context, pctx plugin.Context) (any, error) {
		return nil, errors.New("kaput")
	}

	m := newMachine(t, desc)
	_, err := m.Execute(context.Background(), plugin.Context{})
	require.Error(t, err)
	assert.Equal(t, StateError, m.State())
	assert.Equal(t, 1, errorFired)

	metrics := m.Metrics()
	assert.Equal(t, 1, metrics.Executions)
	assert.Equal(t, 1, metrics.Failures)
	assert.Equal(t, 0, metrics.Successes)
}

func TestExecute_ErrorHookFailureDoesNotRecurse(t *testing.T) {
	errorFired := 0
	desc := descWith(
		plugin.Hook{
			Event:    plugin.EventError,
			Critical: true,
			Handler: func(ctx context.Context, pctx plugin.Context) error {
				errorFired++
				return errors.New("error hook itself fails")
			},
		},
	)
	desc.Exec = func(ctx context.Context, pctx plugin.Context) (any, error) {
		return nil, errors.New("kaput")
	}

	m := newMachine(t, desc)
	_, err := m.Execute(context.Background(), plugin.Context{})
	require.Error(t, err)
	// Exactly one dispatch: the failing error hook must not re-trigger
	// the error event.
	assert.Equal(t, 1, errorFired)
}

func TestExecute_CriticalPreExecuteHookAborts(t *testing.T) {
	bodyRan := false
	desc := descWith(
		plugin.Hook{
			Event:    plugin.EventPreExecute,
			Critical: true,
			Handler: func(ctx context.Context, pctx plugin.Context) error {
				return errors.New("gate closed")
			},
		},
	)
	desc.Exec = func(ctx context.Context, pctx plugin.Context) (any, error) {
		bodyRan = true
		return nil, nil
	}

	m := newMachine(t, desc)
	_, err := m.Execute(context.Background(), plugin.Context{})
	require.Error(t, err)
	assert.False(t, bodyRan)
	assert.Equal(t, StateError, m.State())
}

func TestExecute_RecoversAfterError(t *testing.T) {
	attempts := 0
	desc := descWith()
	desc.Exec = func(ctx context.Context, pctx plugin.Context) (any, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}

	m := newMachine(t, desc)
	_, err := m.Execute(context.Background(), plugin.Context{})
	require.Error(t, err)

	result, err := m.Execute(context.Background(), plugin.Context{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateInitialized, m.State())
}

func TestStore_PersistsBetweenPhases(t *testing.T) {
	desc := descWith(
		plugin.Hook{Event: plugin.EventPreExecute, Handler: func(ctx context.Context, pctx plugin.Context) error {
			pctx.Store()["token"] = "abc"
			return nil
		}},
	)
	desc.Exec = func(ctx context.Context, pctx plugin.Context) (any, error) {
		return pctx.Store()["token"], nil
	}

	m := newMachine(t, desc)
	result, err := m.Execute(context.Background(), plugin.Context{})
	require.NoError(t, err)
	assert.Equal(t, "abc", result)

	v, ok := m.StoreValue("token")
	require.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestCleanup_AlwaysLandsCleanedUp(t *testing.T) {
	cleaned := false
	desc := descWith(
		plugin.Hook{Event: plugin.EventCleanup, Handler: func(ctx context.Context, pctx plugin.Context) error {
			cleaned = true
			return nil
		}},
	)
	desc.Teardown = func(ctx context.Context, pctx plugin.Context) error {
		return errors.New("teardown failed")
	}

	m := newMachine(t, desc)
	_, err := m.Execute(context.Background(), plugin.Context{})
	require.NoError(t, err)

	err = m.Cleanup(context.Background(), plugin.Context{})
	require.Error(t, err, "teardown errors propagate")
	assert.True(t, cleaned)
	assert.Equal(t, StateCleanedUp, m.State())

	// Idempotent from terminal state.
	require.NoError(t, m.Cleanup(context.Background(), plugin.Context{}))
}

func TestCleanup_FromRegisteredState(t *testing.T) {
	m := newMachine(t, descWith())
	require.NoError(t, m.Cleanup(context.Background(), plugin.Context{}))
	assert.Equal(t, StateCleanedUp, m.State())
}

func TestExecute_AfterCleanupRejected(t *testing.T) {
	m := newMachine(t, descWith())
	require.NoError(t, m.Cleanup(context.Background(), plugin.Context{}))
	_, err := m.Execute(context.Background(), plugin.Context{})
	assert.ErrorIs(t, err, plugin.ErrExecution)
}

func TestExecute_BodyPanicIsIsolated(t *testing.T) {
	desc := descWith()
	desc.Exec = func(ctx context.Context, pctx plugin.Context) (any, error) {
		panic("boom")
	}

	m := newMachine(t, desc)
	_, err := m.Execute(context.Background(), plugin.Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, plugin.ErrExecution)
	assert.Equal(t, StateError, m.State())
}
