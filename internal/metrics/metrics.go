// Package metrics provides Prometheus instrumentation for the orchestration
// engine: plugin execution outcomes, hook outcomes, and phase durations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeTimeout = "timeout"
)

// Metrics holds the engine's Prometheus collectors. Construct one per
// registry; nothing here is global, so independent engines (and tests) can
// coexist.
type Metrics struct {
	PluginExecutions *prometheus.CounterVec
	PluginDuration   *prometheus.HistogramVec
	HookOutcomes     *prometheus.CounterVec
	RunsTotal        *prometheus.CounterVec
}

// New registers the engine collectors against reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PluginExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plugind",
				Subsystem: "engine",
				Name:      "plugin_executions_total",
				Help:      "Plugin lifecycle executions by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		PluginDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "plugind",
				Subsystem: "engine",
				Name:      "plugin_duration_seconds",
				Help:      "Duration of full plugin lifecycle runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"category"},
		),
		HookOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plugind",
				Subsystem: "engine",
				Name:      "hook_outcomes_total",
				Help:      "Hook handler outcomes by lifecycle event",
			},
			[]string{"event", "outcome"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plugind",
				Subsystem: "engine",
				Name:      "runs_total",
				Help:      "Orchestration runs by category",
			},
			[]string{"category"},
		),
	}
}

// NewNop returns collectors bound to a throwaway registry. Used where the
// caller does not care about metrics (most tests).
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObservePlugin records one plugin lifecycle outcome.
func (m *Metrics) ObservePlugin(category, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PluginExecutions.WithLabelValues(category, outcome).Inc()
	m.PluginDuration.WithLabelValues(category).Observe(d.Seconds())
}

// ObserveHook records one hook outcome.
func (m *Metrics) ObserveHook(event, outcome string) {
	if m == nil {
		return
	}
	m.HookOutcomes.WithLabelValues(event, outcome).Inc()
}

// ObserveRun records the start of an orchestration run.
func (m *Metrics) ObserveRun(category string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(category).Inc()
}
