// Package registry manages plugin admission into the category-partitioned
// registry.
//
// The registry provides:
//   - structural validation at the door (rejected descriptors never enter)
//   - per-event hook order resolution, fixed at registration time
//   - duplicate and category checks with sentinel errors
//
// The registry is guarded by a RWMutex for snapshot consistency, but it
// does not serialize registration against in-flight orchestration runs;
// callers that mutate while a run is active must serialize themselves.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/plugind/internal/graph"
	"github.com/fyrsmithlabs/plugind/internal/lifecycle"
	"github.com/fyrsmithlabs/plugind/internal/logging"
	"github.com/fyrsmithlabs/plugind/internal/plugin"
	"github.com/fyrsmithlabs/plugind/internal/schedule"
)

// Entry pairs an admitted descriptor with the machine that owns its
// runtime state.
type Entry struct {
	Descriptor *plugin.Descriptor
	Machine    *lifecycle.Machine
	seq        int
}

// Registry is the category -> name -> plugin map.
type Registry struct {
	mu      sync.RWMutex
	sched   *schedule.Scheduler
	logger  *logging.Logger
	plugins map[plugin.Category]map[string]*Entry
	nextSeq int
}

// New creates an empty registry. Multiple independent registries can
// coexist; there is no package-level instance.
func New(sched *schedule.Scheduler, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		sched:   sched,
		logger:  logger.Named("registry"),
		plugins: make(map[plugin.Category]map[string]*Entry),
	}
}

// Register validates and admits a descriptor into a category.
//
// Fails with plugin.ErrValidation for a malformed descriptor,
// plugin.ErrUnknownCategory for a category outside the fixed set,
// plugin.ErrDuplicatePlugin when the name is taken within the category,
// and plugin.ErrCycle when the descriptor's hook dependencies loop.
func (r *Registry) Register(category plugin.Category, desc *plugin.Descriptor) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", plugin.ErrUnknownCategory, category)
	}
	if err := plugin.Validate(desc); err != nil {
		return err
	}
	if desc.Category != category {
		return fmt.Errorf("%w: descriptor declares category %q, registered under %q",
			plugin.ErrValidation, desc.Category, category)
	}

	hooks, err := resolveHooks(desc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.plugins[category][desc.Name]; dup {
		return fmt.Errorf("%w: %q in category %q", plugin.ErrDuplicatePlugin, desc.Name, category)
	}

	if r.plugins[category] == nil {
		r.plugins[category] = make(map[string]*Entry)
	}
	r.plugins[category][desc.Name] = &Entry{
		Descriptor: desc,
		Machine:    lifecycle.NewMachine(desc, hooks, r.sched, r.logger),
		seq:        r.nextSeq,
	}
	r.nextSeq++

	r.logger.Underlying().Info("plugin registered",
		zap.String("plugin", desc.Name),
		zap.String("category", string(category)),
		zap.String("version", desc.Version),
	)
	return nil
}

// Lookup returns the admitted descriptor for a name within a category.
func (r *Registry) Lookup(category plugin.Category, name string) (*plugin.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.plugins[category][name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in category %q", plugin.ErrDependency, name, category)
	}
	return entry.Descriptor, nil
}

// RemoveHook removes a named hook from a plugin's event and re-resolves
// the event's order. This is the only way hook order changes after
// admission; it never happens implicitly mid-run.
func (r *Registry) RemoveHook(category plugin.Category, name string, event plugin.Event, hookName string) error {
	if !event.Valid() {
		return fmt.Errorf("%w: unknown lifecycle event %q", plugin.ErrValidation, event)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.plugins[category][name]
	if !ok {
		return fmt.Errorf("%w: %q in category %q", plugin.ErrDependency, name, category)
	}

	desc := entry.Descriptor
	kept := desc.Hooks[:0:0]
	removed := false
	for _, h := range desc.Hooks {
		if h.Event == event && h.Name == hookName {
			removed = true
			continue
		}
		kept = append(kept, h)
	}
	if !removed {
		return fmt.Errorf("%w: hook %q on event %s of plugin %q", plugin.ErrValidation, hookName, event, name)
	}

	trimmed := *desc
	trimmed.Hooks = kept
	if err := plugin.Validate(&trimmed); err != nil {
		// Another hook still depends on the removed one.
		return err
	}

	hooks, err := resolveHooks(&trimmed)
	if err != nil {
		return err
	}

	entry.Descriptor = &trimmed
	entry.Machine.ReplaceHooks(hooks)
	return nil
}

// Snapshot returns the category's entries in registration order. The
// returned slice is the caller's; registry mutations after the call do
// not affect it.
func (r *Registry) Snapshot(category plugin.Category) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.plugins[category]))
	for _, e := range r.plugins[category] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

// List returns the plugin names admitted to a category, in registration
// order.
func (r *Registry) List(category plugin.Category) []string {
	entries := r.Snapshot(category)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Descriptor.Name
	}
	return names
}

// Count returns the total number of admitted plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, byName := range r.plugins {
		n += len(byName)
	}
	return n
}

// resolveHooks computes the fixed per-event execution order for a
// descriptor's hooks: dependency edges first, then ascending priority,
// then declaration order.
func resolveHooks(desc *plugin.Descriptor) (map[plugin.Event][]plugin.Hook, error) {
	out := make(map[plugin.Event][]plugin.Hook)

	for _, event := range plugin.Events() {
		hooks := desc.HooksFor(event)
		if len(hooks) == 0 {
			continue
		}

		type indexed struct {
			hook plugin.Hook
			idx  int
		}
		nodes := make([]indexed, len(hooks))
		for i, h := range hooks {
			nodes[i] = indexed{hook: h, idx: i}
		}

		ordered, err := graph.Sort(nodes, graph.Options[indexed]{
			ID: func(n indexed) string {
				if n.hook.Name != "" {
					return n.hook.Name
				}
				// Unnamed hooks cannot be depended on; give them a
				// positional identity for the resolver.
				return fmt.Sprintf("%s[%d]", event, n.idx)
			},
			DependsOn: func(n indexed) []string { return n.hook.DependsOn },
			Priority:  func(n indexed) int { return n.hook.EffectivePriority() },
		})
		if err != nil {
			return nil, fmt.Errorf("plugin %q, event %s: %w", desc.Name, event, err)
		}
		resolved := make([]plugin.Hook, len(ordered))
		for i, n := range ordered {
			resolved[i] = n.hook
		}
		out[event] = resolved
	}

	return out, nil
}
