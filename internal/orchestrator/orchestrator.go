// Package orchestrator runs every plugin of a category in dependency order.
//
// A run works on a snapshot of the registry: plugins registered after the
// snapshot is taken do not participate. Plugin order is resolved per run
// from declared dependencies, then priority, then registration order.
// Plugins whose dependencies are missing, too old, or themselves excluded
// receive a failed result without executing; everything else runs even when
// a sibling fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/plugind/internal/graph"
	"github.com/fyrsmithlabs/plugind/internal/logging"
	"github.com/fyrsmithlabs/plugind/internal/metrics"
	"github.com/fyrsmithlabs/plugind/internal/plugin"
	"github.com/fyrsmithlabs/plugind/internal/registry"
)

// Result is the per-plugin outcome of one run. Apply returns one Result per
// snapshotted plugin, whether or not it executed.
type Result struct {
	Plugin   string        `json:"plugin"`
	Version  string        `json:"version"`
	Success  bool          `json:"success"`
	Output   any           `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Orchestrator drives category runs against one registry. Construct it
// explicitly; there is no package-level instance.
type Orchestrator struct {
	reg     *registry.Registry
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// New creates an orchestrator over reg. logger and m may be nil.
func New(reg *registry.Registry, logger *logging.Logger, m *metrics.Metrics) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		reg:     reg,
		logger:  logger.Named("orchestrator"),
		metrics: m,
	}
}

// Registry returns the registry this orchestrator runs against.
func (o *Orchestrator) Registry() *registry.Registry { return o.reg }

// Apply executes every plugin in the category against pctx and returns one
// result per plugin. The only errors are an unknown category and a
// dependency cycle in the snapshot; individual plugin failures are reported
// in their results, never as an Apply error.
func (o *Orchestrator) Apply(ctx context.Context, category plugin.Category, pctx plugin.Context) ([]Result, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", plugin.ErrUnknownCategory, category)
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithCategory(ctx, string(category))

	o.metrics.ObserveRun(string(category))

	entries := o.reg.Snapshot(category)
	o.logger.Info(ctx, "applying category", zap.Int("plugins", len(entries)))
	if len(entries) == 0 {
		return []Result{}, nil
	}

	excluded := excludeUnmet(entries)

	runnable := make([]*registry.Entry, 0, len(entries))
	for _, e := range entries {
		if _, skip := excluded[e.Descriptor.Name]; !skip {
			runnable = append(runnable, e)
		}
	}

	ordered, err := graph.Sort(runnable, graph.Options[*registry.Entry]{
		ID: func(e *registry.Entry) string { return e.Descriptor.Name },
		DependsOn: func(e *registry.Entry) []string {
			deps := make([]string, len(e.Descriptor.Dependencies))
			for i, d := range e.Descriptor.Dependencies {
				deps[i] = d.Name
			}
			return deps
		},
		Priority: func(e *registry.Entry) int { return e.Descriptor.EffectivePriority() },
	})
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", category, err)
	}

	results := make([]Result, 0, len(entries))
	failed := make(map[string]bool, len(excluded))
	for _, e := range ordered {
		desc := e.Descriptor

		if dep, bad := failedDependency(desc, failed); bad {
			failed[desc.Name] = true
			results = append(results, Result{
				Plugin:  desc.Name,
				Version: desc.Version,
				Error:   fmt.Sprintf("dependency %q failed", dep),
			})
			continue
		}

		pluginCtx := logging.WithPlugin(ctx, desc.Name)
		start := time.Now()
		output, execErr := e.Machine.Execute(pluginCtx, pctx.Clone())
		elapsed := time.Since(start)

		r := Result{
			Plugin:   desc.Name,
			Version:  desc.Version,
			Duration: elapsed,
		}
		if execErr != nil {
			failed[desc.Name] = true
			r.Error = execErr.Error()
			o.metrics.ObservePlugin(string(category), metrics.OutcomeFailure, elapsed)
			o.logger.Warn(pluginCtx, "plugin failed", zap.Error(execErr))
		} else {
			r.Success = true
			r.Output = output
			o.metrics.ObservePlugin(string(category), metrics.OutcomeSuccess, elapsed)
		}
		results = append(results, r)
	}

	// Excluded plugins report last, in registration order.
	for _, e := range entries {
		if reason, skip := excluded[e.Descriptor.Name]; skip {
			o.metrics.ObservePlugin(string(category), metrics.OutcomeSkipped, 0)
			results = append(results, Result{
				Plugin:  e.Descriptor.Name,
				Version: e.Descriptor.Version,
				Error:   reason,
			})
		}
	}

	return results, nil
}

// Analyze applies every category concurrently against the same input
// context and returns results keyed by category. Each category still gets
// its own run ID and its own clone chain.
func (o *Orchestrator) Analyze(ctx context.Context, pctx plugin.Context) (map[plugin.Category][]Result, error) {
	categories := plugin.Categories()
	perCategory := make([][]Result, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		i, category := i, category
		g.Go(func() error {
			results, err := o.Apply(gctx, category, pctx)
			if err != nil {
				return err
			}
			perCategory[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[plugin.Category][]Result, len(categories))
	for i, category := range categories {
		out[category] = perCategory[i]
	}
	return out, nil
}

// Shutdown cleans up every registered plugin across all categories. Cleanup
// failures are collected and joined; every machine still reaches its
// terminal state.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var errs []error
	for _, category := range plugin.Categories() {
		cctx := logging.WithCategory(ctx, string(category))
		for _, e := range o.reg.Snapshot(category) {
			pctx := plugin.Context{}
			if err := e.Machine.Cleanup(logging.WithPlugin(cctx, e.Descriptor.Name), pctx); err != nil {
				errs = append(errs, fmt.Errorf("cleanup %s/%s: %w", category, e.Descriptor.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// excludeUnmet returns the plugins that cannot run, mapped to the reason:
// a dependency that is absent from the snapshot, registered at an
// insufficient version, or itself excluded. Exclusion propagates through
// the dependency chain.
func excludeUnmet(entries []*registry.Entry) map[string]string {
	byName := make(map[string]*registry.Entry, len(entries))
	for _, e := range entries {
		byName[e.Descriptor.Name] = e
	}

	excluded := make(map[string]string)
	for _, e := range entries {
		for _, dep := range e.Descriptor.Dependencies {
			target, ok := byName[dep.Name]
			if !ok {
				excluded[e.Descriptor.Name] = fmt.Sprintf("dependency %q is not registered", dep.Name)
				break
			}
			satisfied, err := plugin.Satisfies(target.Descriptor.Version, dep.Requirement)
			if err != nil {
				excluded[e.Descriptor.Name] = fmt.Sprintf("dependency %q: %v", dep.Name, err)
				break
			}
			if !satisfied {
				excluded[e.Descriptor.Name] = fmt.Sprintf("dependency %q at %s does not satisfy >=%s",
					dep.Name, target.Descriptor.Version, dep.Requirement)
				break
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, e := range entries {
			if _, skip := excluded[e.Descriptor.Name]; skip {
				continue
			}
			for _, dep := range e.Descriptor.Dependencies {
				if _, skip := excluded[dep.Name]; skip {
					excluded[e.Descriptor.Name] = fmt.Sprintf("dependency %q was excluded", dep.Name)
					changed = true
					break
				}
			}
		}
	}

	return excluded
}

// failedDependency reports the first dependency of desc that failed at
// runtime during this run.
func failedDependency(desc *plugin.Descriptor, failed map[string]bool) (string, bool) {
	for _, dep := range desc.Dependencies {
		if failed[dep.Name] {
			return dep.Name, true
		}
	}
	return "", false
}
