// Package lifecycle drives one plugin through its phases. Each Machine
// exclusively owns its plugin's runtime state: the current lifecycle state,
// accumulated metrics, and the small key-value store plugins may use to
// pass data between phases. Nothing here persists past the process.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/plugind/internal/logging"
	"github.com/fyrsmithlabs/plugind/internal/plugin"
	"github.com/fyrsmithlabs/plugind/internal/schedule"
)

// State of a plugin within its lifecycle.
type State string

const (
	StateUnregistered State = "unregistered"
	StateRegistered   State = "registered"
	StateInitialized  State = "initialized"
	StateExecuting    State = "executing"
	StateError        State = "error"
	StateCleanedUp    State = "cleaned-up"
)

// Metrics accumulates across runs. Counters update on every attempted
// phase, before any error propagates, so introspection never lags the
// machine's view of reality.
type Metrics struct {
	Executions    int       `json:"executions"`
	Successes     int       `json:"successes"`
	Failures      int       `json:"failures"`
	LastExecution time.Time `json:"last_execution"`
}

// Machine owns one plugin's lifecycle.
type Machine struct {
	desc   *plugin.Descriptor
	hooks  map[plugin.Event][]plugin.Hook
	sched  *schedule.Scheduler
	logger *logging.Logger

	state       State
	initialized bool
	metrics     Metrics
	store       map[string]any

	// dispatchingError refuses re-entrant error-event dispatch by
	// construction: a failing error hook must not fire the error event
	// again.
	dispatchingError bool
}

// NewMachine creates a machine in the Registered state. hooks must be the
// resolver-ordered table per event; it is treated as immutable and is only
// replaced by explicit re-registration through the registry.
func NewMachine(desc *plugin.Descriptor, hooks map[plugin.Event][]plugin.Hook, sched *schedule.Scheduler, logger *logging.Logger) *Machine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Machine{
		desc:   desc,
		hooks:  hooks,
		sched:  sched,
		logger: logger.Named("lifecycle").With(zap.String("plugin", desc.Name)),
		state:  StateRegistered,
		store:  make(map[string]any),
	}
}

// Descriptor returns the descriptor this machine drives.
func (m *Machine) Descriptor() *plugin.Descriptor { return m.desc }

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.state }

// Metrics returns a copy of the accumulated metrics.
func (m *Machine) Metrics() Metrics { return m.metrics }

// ReplaceHooks swaps the resolved hook table. Called by the registry on
// explicit re-registration only, never mid-run.
func (m *Machine) ReplaceHooks(hooks map[plugin.Event][]plugin.Hook) {
	m.hooks = hooks
}

// Initialize runs pre-init hooks, the plugin's own init logic, then
// post-init hooks. A failure at any point transitions to Error, dispatches
// the error event, and returns the failure. Initializing an already
// initialized machine is a no-op.
func (m *Machine) Initialize(ctx context.Context, pctx plugin.Context) error {
	if m.state == StateCleanedUp {
		return fmt.Errorf("%w: plugin %q already cleaned up", plugin.ErrExecution, m.desc.Name)
	}
	if m.initialized {
		return nil
	}

	m.touch()
	m.injectStore(pctx)

	if _, err := m.runHooks(ctx, plugin.EventPreInit, pctx); err != nil {
		return m.fail(ctx, pctx, fmt.Errorf("pre-init: %w", err))
	}
	if m.desc.Init != nil {
		if err := m.desc.Init(ctx, pctx); err != nil {
			return m.fail(ctx, pctx, fmt.Errorf("init: %w", err))
		}
	}
	if _, err := m.runHooks(ctx, plugin.EventPostInit, pctx); err != nil {
		return m.fail(ctx, pctx, fmt.Errorf("post-init: %w", err))
	}

	m.initialized = true
	m.state = StateInitialized
	m.logger.Debug(ctx, "plugin initialized")
	return nil
}

// Execute drives one full execution: implicit Initialize when needed,
// pre-execute hooks, the plugin body, post-execute hooks. On success the
// machine returns to Initialized, ready for another run.
func (m *Machine) Execute(ctx context.Context, pctx plugin.Context) (any, error) {
	if m.state == StateCleanedUp {
		return nil, fmt.Errorf("%w: plugin %q already cleaned up", plugin.ErrExecution, m.desc.Name)
	}

	if err := m.Initialize(ctx, pctx); err != nil {
		return nil, err
	}

	m.state = StateExecuting
	m.metrics.Executions++
	m.touch()
	m.injectStore(pctx)

	if _, err := m.runHooks(ctx, plugin.EventPreExecute, pctx); err != nil {
		return nil, m.fail(ctx, pctx, fmt.Errorf("pre-execute: %w", err))
	}

	result, err := m.execBody(ctx, pctx)
	if err != nil {
		return nil, m.fail(ctx, pctx, fmt.Errorf("execute: %w", err))
	}

	if _, err := m.runHooks(ctx, plugin.EventPostExecute, pctx); err != nil {
		return nil, m.fail(ctx, pctx, fmt.Errorf("post-execute: %w", err))
	}

	m.metrics.Successes++
	m.state = StateInitialized
	m.logger.Debug(ctx, "plugin executed")
	return result, nil
}

// Cleanup runs cleanup hooks then plugin teardown. It may run from any
// non-terminal state and always lands in CleanedUp; errors are joined and
// returned, never swallowed.
func (m *Machine) Cleanup(ctx context.Context, pctx plugin.Context) error {
	if m.state == StateCleanedUp {
		return nil
	}

	m.touch()
	m.injectStore(pctx)

	var errs []error
	if _, err := m.runHooks(ctx, plugin.EventCleanup, pctx); err != nil {
		errs = append(errs, fmt.Errorf("cleanup hooks: %w", err))
	}
	if m.desc.Teardown != nil {
		if err := m.desc.Teardown(ctx, pctx); err != nil {
			errs = append(errs, fmt.Errorf("teardown: %w", err))
		}
	}

	m.state = StateCleanedUp
	m.initialized = false
	if len(errs) > 0 {
		m.metrics.Failures++
		return errors.Join(errs...)
	}
	m.logger.Debug(ctx, "plugin cleaned up")
	return nil
}

// StoreValue reads from the plugin's key-value store.
func (m *Machine) StoreValue(key string) (any, bool) {
	v, ok := m.store[key]
	return v, ok
}

// fail records the failure, transitions to Error, and dispatches the error
// event unless one is already in flight.
func (m *Machine) fail(ctx context.Context, pctx plugin.Context, err error) error {
	m.metrics.Failures++
	m.state = StateError

	if !m.dispatchingError {
		m.dispatchingError = true
		if _, herr := m.runHooks(ctx, plugin.EventError, pctx); herr != nil {
			m.logger.Warn(ctx, "error hook chain failed", zap.Error(herr))
		}
		m.dispatchingError = false
	}

	m.logger.Warn(ctx, "plugin phase failed", zap.Error(err))
	return err
}

// execBody runs the plugin body, converting a panic into an execution
// error so one plugin cannot take down its category.
func (m *Machine) execBody(ctx context.Context, pctx plugin.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: body panic: %v", plugin.ErrExecution, r)
		}
	}()
	return m.desc.Exec(ctx, pctx)
}

func (m *Machine) runHooks(ctx context.Context, event plugin.Event, pctx plugin.Context) ([]schedule.Outcome, error) {
	hooks := m.hooks[event]
	if len(hooks) == 0 {
		return nil, nil
	}
	return m.sched.Run(ctx, event, hooks, pctx)
}

func (m *Machine) injectStore(pctx plugin.Context) {
	if pctx != nil {
		pctx[plugin.KeyStore] = m.store
	}
}

func (m *Machine) touch() {
	m.metrics.LastExecution = time.Now().UTC()
}
