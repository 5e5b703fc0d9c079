package plugin

import (
	"context"
	"time"
)

// DefaultPriority is the hook priority used when a descriptor declares none.
// Lower priorities run earlier.
const DefaultPriority = 50

// Context is the free-form payload external collaborators populate for an
// orchestration run. The engine treats values as opaque; only the two
// well-known keys below are read by built-in handlers.
type Context map[string]any

// Well-known context keys.
const (
	KeyProjectPath = "project_path"
	KeyAction      = "action"

	// KeyStore carries the plugin's private key-value store. The lifecycle
	// machine injects it before running any phase; values persist between
	// phases within one process lifetime only.
	KeyStore = "store"
)

// ProjectPath returns the project path the run targets, if set.
func (c Context) ProjectPath() string {
	s, _ := c[KeyProjectPath].(string)
	return s
}

// Action returns the operation discriminator for the run, if set.
func (c Context) Action() string {
	s, _ := c[KeyAction].(string)
	return s
}

// Store returns the plugin's private key-value store, if the lifecycle
// machine has injected one.
func (c Context) Store() map[string]any {
	m, _ := c[KeyStore].(map[string]any)
	return m
}

// Clone returns a shallow copy. Each plugin in a run receives its own copy
// so one plugin's writes never leak into a sibling's view.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ExecFunc is a plugin's opaque executable body.
type ExecFunc func(ctx context.Context, pctx Context) (any, error)

// PhaseFunc runs a plugin's own init or teardown logic.
type PhaseFunc func(ctx context.Context, pctx Context) error

// HookFunc handles one lifecycle event occurrence.
type HookFunc func(ctx context.Context, pctx Context) error

// ConditionFunc gates a hook against the run context before it executes.
type ConditionFunc func(pctx Context) bool

// Dependency declares that another plugin of at least the given version must
// be admitted and execute first.
type Dependency struct {
	Name        string `json:"name"`
	Requirement string `json:"requirement"`
}

// Hook binds a handler to one lifecycle event.
type Hook struct {
	// Name identifies the hook for dependency edges. Required only when
	// another hook on the same event depends on it.
	Name string `json:"name,omitempty"`

	Event   Event    `json:"event"`
	Handler HookFunc `json:"-"`

	// Priority orders hooks with no dependency constraint; lower runs
	// earlier. Zero means DefaultPriority.
	Priority int `json:"priority,omitempty"`

	// DependsOn names hooks on the same event that must run first.
	DependsOn []string `json:"depends_on,omitempty"`

	// Critical escalates a failure: remaining hooks for the event are
	// abandoned and the failure propagates to the lifecycle machine.
	Critical bool `json:"critical,omitempty"`

	// Condition, when set, is evaluated against the run context; false
	// records a skipped outcome without invoking the handler.
	Condition ConditionFunc `json:"-"`

	// Timeout bounds the handler. Zero means no per-hook budget.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// EffectivePriority resolves the zero value to DefaultPriority.
func (h Hook) EffectivePriority() int {
	if h.Priority == 0 {
		return DefaultPriority
	}
	return h.Priority
}

// Descriptor declares a plugin to the registry.
type Descriptor struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Category     Category        `json:"category"`
	Capabilities map[string]bool `json:"capabilities"`
	Dependencies []Dependency    `json:"dependencies,omitempty"`
	Hooks        []Hook          `json:"hooks,omitempty"`

	// Init runs between the pre-init and post-init hooks. Optional.
	Init PhaseFunc `json:"-"`

	// Exec is the plugin body. Required.
	Exec ExecFunc `json:"-"`

	// Teardown runs after the cleanup hooks. Optional.
	Teardown PhaseFunc `json:"-"`

	// Priority breaks ties between plugins with no relative dependency
	// constraint. Zero means DefaultPriority.
	Priority int `json:"priority,omitempty"`
}

// EffectivePriority resolves the zero value to DefaultPriority.
func (d *Descriptor) EffectivePriority() int {
	if d.Priority == 0 {
		return DefaultPriority
	}
	return d.Priority
}

// HooksFor returns the hooks bound to one event, in declaration order.
func (d *Descriptor) HooksFor(event Event) []Hook {
	var out []Hook
	for _, h := range d.Hooks {
		if h.Event == event {
			out = append(out, h)
		}
	}
	return out
}
