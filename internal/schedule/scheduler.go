// Package schedule executes an ordered list of hooks for one lifecycle
// event, honoring per-hook conditions, timeouts, and the critical
// escalation flag. Ordering is the resolver's job; this package never
// reorders and never retries.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/plugind/internal/logging"
	"github.com/fyrsmithlabs/plugind/internal/metrics"
	"github.com/fyrsmithlabs/plugind/internal/plugin"
)

// Status classifies one hook outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome records what happened to one hook in one run.
type Outcome struct {
	Hook     string        `json:"hook"`
	Event    plugin.Event  `json:"event"`
	Status   Status        `json:"status"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Limits bounds hook budgets engine-wide.
type Limits struct {
	// DefaultTimeout applies to hooks that declare no budget. Zero leaves
	// such hooks unbounded.
	DefaultTimeout time.Duration

	// MaxTimeout caps declared budgets. Zero means no cap.
	MaxTimeout time.Duration
}

// Scheduler runs hook chains. Safe for use by multiple lifecycle machines;
// it holds no per-run state.
type Scheduler struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
	limits  Limits
}

// New creates a scheduler. logger and m may be nil.
func New(logger *logging.Logger, m *metrics.Metrics) *Scheduler {
	return NewWithLimits(logger, m, Limits{})
}

// NewWithLimits creates a scheduler with engine-wide timeout bounds.
func NewWithLimits(logger *logging.Logger, m *metrics.Metrics, limits Limits) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{logger: logger.Named("schedule"), metrics: m, limits: limits}
}

// Run executes hooks in the order given. Behavior per hook:
//
//   - condition present and false: recorded as skipped, chain continues
//   - handler error or timeout: recorded as failed; if the hook is
//     critical the remaining hooks are abandoned and the failure is
//     returned, otherwise the chain continues
//
// The returned outcomes always cover every hook that was considered before
// the chain stopped. The error is non-nil only for a critical failure.
func (s *Scheduler) Run(ctx context.Context, event plugin.Event, hooks []plugin.Hook, pctx plugin.Context) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(hooks))

	for i, h := range hooks {
		label := hookLabel(h, event, i)

		if h.Condition != nil && !h.Condition(pctx) {
			s.logger.Trace(ctx, "hook skipped by condition",
				zap.String("hook", label), zap.String("event", string(event)))
			s.metrics.ObserveHook(string(event), metrics.OutcomeSkipped)
			outcomes = append(outcomes, Outcome{Hook: label, Event: event, Status: StatusSkipped})
			continue
		}

		start := time.Now()
		err := s.invoke(ctx, h, pctx)
		elapsed := time.Since(start)

		if err == nil {
			s.metrics.ObserveHook(string(event), metrics.OutcomeSuccess)
			outcomes = append(outcomes, Outcome{
				Hook: label, Event: event, Status: StatusSuccess, Duration: elapsed,
			})
			continue
		}

		outcome := metrics.OutcomeFailure
		if errors.Is(err, plugin.ErrHookTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		s.metrics.ObserveHook(string(event), outcome)
		outcomes = append(outcomes, Outcome{
			Hook: label, Event: event, Status: StatusFailed,
			Err: err, Error: err.Error(), Duration: elapsed,
		})

		if h.Critical {
			s.logger.Warn(ctx, "critical hook failed, abandoning event chain",
				zap.String("hook", label),
				zap.String("event", string(event)),
				zap.Error(err))
			return outcomes, fmt.Errorf("critical hook %q on %s: %w", label, event, err)
		}

		s.logger.Debug(ctx, "hook failed, continuing",
			zap.String("hook", label),
			zap.String("event", string(event)),
			zap.Error(err))
	}

	return outcomes, nil
}

// invoke runs one handler, racing it against its timeout when declared.
//
// On timeout the handler goroutine is abandoned: its context is cancelled
// and its eventual result is dropped into a buffered channel. There is no
// engine-wide cancellation, so a handler that ignores its context keeps
// its goroutine until it returns on its own.
func (s *Scheduler) invoke(ctx context.Context, h plugin.Hook, pctx plugin.Context) error {
	timeout := s.budget(h)
	if timeout <= 0 {
		return safeHandle(ctx, h.Handler, pctx)
	}

	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeHandle(hctx, h.Handler, pctx)
	}()

	select {
	case err := <-done:
		return err
	case <-hctx.Done():
		return fmt.Errorf("%w: after %s", plugin.ErrHookTimeout, timeout)
	}
}

// budget resolves the effective timeout for a hook under the engine limits.
func (s *Scheduler) budget(h plugin.Hook) time.Duration {
	timeout := h.Timeout
	if timeout == 0 {
		timeout = s.limits.DefaultTimeout
	}
	if s.limits.MaxTimeout > 0 && (timeout == 0 || timeout > s.limits.MaxTimeout) {
		timeout = s.limits.MaxTimeout
	}
	return timeout
}

// safeHandle converts a handler panic into an execution error so one
// misbehaving hook cannot take down the run.
func safeHandle(ctx context.Context, handler plugin.HookFunc, pctx plugin.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", plugin.ErrExecution, r)
		}
	}()
	return handler(ctx, pctx)
}

// hookLabel names a hook for outcomes and logs. Unnamed hooks get a
// positional label scoped to their event.
func hookLabel(h plugin.Hook, event plugin.Event, i int) string {
	if h.Name != "" {
		return h.Name
	}
	return fmt.Sprintf("%s[%d]", event, i)
}
