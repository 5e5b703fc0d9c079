package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/plugind/internal/plugin"
	"github.com/fyrsmithlabs/plugind/internal/schedule"
)

func newRegistry() *Registry {
	return New(schedule.New(nil, nil), nil)
}

func descriptor(name string, category plugin.Category, capability string) *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:         name,
		Version:      "1.0.0",
		Category:     category,
		Capabilities: map[string]bool{capability: true},
		Exec: func(ctx context.Context, pctx plugin.Context) (any, error) {
			return nil, nil
		},
	}
}

func TestRegister_RoundTrip(t *testing.T) {
	r := newRegistry()
	d := descriptor("rest-scaffold", plugin.CategoryAPI, "rest")

	if err := r.Register(plugin.CategoryAPI, d); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := r.Lookup(plugin.CategoryAPI, "rest-scaffold")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != d {
		t.Errorf("Lookup returned %+v, want the registered descriptor", got)
	}
}

func TestRegister_DuplicateRejected(t *testing.T) {
	r := newRegistry()
	if err := r.Register(plugin.CategoryAPI, descriptor("rest-scaffold", plugin.CategoryAPI, "rest")); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	err := r.Register(plugin.CategoryAPI, descriptor("rest-scaffold", plugin.CategoryAPI, "graphql"))
	if !errors.Is(err, plugin.ErrDuplicatePlugin) {
		t.Errorf("error = %v, want ErrDuplicatePlugin", err)
	}
}

func TestRegister_SameNameDifferentCategories(t *testing.T) {
	r := newRegistry()
	if err := r.Register(plugin.CategoryAPI, descriptor("scanner", plugin.CategoryAPI, "rest")); err != nil {
		t.Fatalf("Register api failed: %v", err)
	}
	// Name uniqueness is scoped per category.
	if err := r.Register(plugin.CategorySecurity, descriptor("scanner", plugin.CategorySecurity, "scanning")); err != nil {
		t.Errorf("Register security failed: %v", err)
	}
}

func TestRegister_UnknownCategory(t *testing.T) {
	r := newRegistry()
	err := r.Register("desktop", descriptor("x", plugin.CategoryAPI, "rest"))
	if !errors.Is(err, plugin.ErrUnknownCategory) {
		t.Errorf("error = %v, want ErrUnknownCategory", err)
	}
}

func TestRegister_CategoryMismatch(t *testing.T) {
	r := newRegistry()
	err := r.Register(plugin.CategoryDatabase, descriptor("x", plugin.CategoryAPI, "rest"))
	if !errors.Is(err, plugin.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestRegister_InvalidDescriptorNeverAdmitted(t *testing.T) {
	r := newRegistry()
	bad := descriptor("bad-plugin", plugin.CategoryAPI, "rest")
	bad.Exec = nil

	if err := r.Register(plugin.CategoryAPI, bad); !errors.Is(err, plugin.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if _, err := r.Lookup(plugin.CategoryAPI, "bad-plugin"); err == nil {
		t.Error("rejected descriptor is present in the registry")
	}
	if r.Count() != 0 {
		t.Errorf("Count = %d, want 0", r.Count())
	}
}

func TestRegister_HookCycleRejected(t *testing.T) {
	noop := func(ctx context.Context, pctx plugin.Context) error { return nil }
	d := descriptor("cyclic", plugin.CategoryAPI, "rest")
	d.Hooks = []plugin.Hook{
		{Name: "a", Event: plugin.EventPreInit, Handler: noop, DependsOn: []string{"b"}},
		{Name: "b", Event: plugin.EventPreInit, Handler: noop, DependsOn: []string{"a"}},
	}

	r := newRegistry()
	err := r.Register(plugin.CategoryAPI, d)
	if !errors.Is(err, plugin.ErrCycle) {
		t.Errorf("error = %v, want ErrCycle", err)
	}
}

func TestSnapshot_RegistrationOrder(t *testing.T) {
	r := newRegistry()
	for _, name := range []string{"one", "two", "three"} {
		if err := r.Register(plugin.CategoryDatabase, descriptor(name, plugin.CategoryDatabase, "migrations")); err != nil {
			t.Fatalf("Register %s failed: %v", name, err)
		}
	}

	got := r.List(plugin.CategoryDatabase)
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRemoveHook(t *testing.T) {
	noop := func(ctx context.Context, pctx plugin.Context) error { return nil }
	d := descriptor("hooked", plugin.CategoryAPI, "rest")
	d.Hooks = []plugin.Hook{
		{Name: "keep", Event: plugin.EventPreInit, Handler: noop},
		{Name: "drop", Event: plugin.EventPreInit, Handler: noop},
	}

	r := newRegistry()
	if err := r.Register(plugin.CategoryAPI, d); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := r.RemoveHook(plugin.CategoryAPI, "hooked", plugin.EventPreInit, "drop"); err != nil {
		t.Fatalf("RemoveHook failed: %v", err)
	}

	got, err := r.Lookup(plugin.CategoryAPI, "hooked")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(got.Hooks) != 1 || got.Hooks[0].Name != "keep" {
		t.Errorf("hooks after removal = %+v, want only %q", got.Hooks, "keep")
	}

	// Removing a hook something depends on is rejected.
	err = r.RemoveHook(plugin.CategoryAPI, "hooked", plugin.EventPreInit, "missing")
	if !errors.Is(err, plugin.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestRemoveHook_DependedOnRejected(t *testing.T) {
	noop := func(ctx context.Context, pctx plugin.Context) error { return nil }
	d := descriptor("hooked", plugin.CategoryAPI, "rest")
	d.Hooks = []plugin.Hook{
		{Name: "base", Event: plugin.EventPreInit, Handler: noop},
		{Name: "top", Event: plugin.EventPreInit, Handler: noop, DependsOn: []string{"base"}},
	}

	r := newRegistry()
	if err := r.Register(plugin.CategoryAPI, d); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := r.RemoveHook(plugin.CategoryAPI, "hooked", plugin.EventPreInit, "base")
	if !errors.Is(err, plugin.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation (dangling dependency)", err)
	}
}
