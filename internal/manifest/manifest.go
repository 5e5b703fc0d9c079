// Package manifest loads declarative plugin manifests from YAML. A manifest
// names its executable parts symbolically; a Binder maps those symbols to
// Go callables registered by the host, so manifests stay pure data.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/plugind/internal/plugin"
)

// maxManifestSize bounds a single manifest file.
const maxManifestSize = 1024 * 1024

// File is the top-level manifest document.
type File struct {
	Plugins []Plugin `koanf:"plugins"`
}

// Plugin is one declarative plugin entry. Exec, Init, Teardown, and hook
// Handler/Condition fields name symbols resolved through the Binder.
type Plugin struct {
	Name         string       `koanf:"name"`
	Version      string       `koanf:"version"`
	Category     string       `koanf:"category"`
	Priority     int          `koanf:"priority"`
	Capabilities []string     `koanf:"capabilities"`
	Dependencies []Dependency `koanf:"dependencies"`
	Hooks        []Hook       `koanf:"hooks"`
	Exec         string       `koanf:"exec"`
	Init         string       `koanf:"init"`
	Teardown     string       `koanf:"teardown"`
}

// Dependency mirrors plugin.Dependency in manifest form.
type Dependency struct {
	Name        string `koanf:"name"`
	Requirement string `koanf:"requirement"`
}

// Hook is one declarative hook entry.
type Hook struct {
	Name      string        `koanf:"name"`
	Event     string        `koanf:"event"`
	Handler   string        `koanf:"handler"`
	Priority  int           `koanf:"priority"`
	DependsOn []string      `koanf:"depends_on"`
	Critical  bool          `koanf:"critical"`
	Condition string        `koanf:"condition"`
	Timeout   time.Duration `koanf:"timeout"`
}

// Binder resolves manifest symbols to callables. Hosts register their
// callables before loading manifests; loading fails on any unresolved
// symbol.
type Binder struct {
	execs      map[string]plugin.ExecFunc
	phases     map[string]plugin.PhaseFunc
	handlers   map[string]plugin.HookFunc
	conditions map[string]plugin.ConditionFunc
}

// NewBinder returns an empty binder.
func NewBinder() *Binder {
	return &Binder{
		execs:      make(map[string]plugin.ExecFunc),
		phases:     make(map[string]plugin.PhaseFunc),
		handlers:   make(map[string]plugin.HookFunc),
		conditions: make(map[string]plugin.ConditionFunc),
	}
}

// BindExec registers an executable body under a symbol name.
func (b *Binder) BindExec(name string, fn plugin.ExecFunc) { b.execs[name] = fn }

// BindPhase registers an init or teardown phase under a symbol name.
func (b *Binder) BindPhase(name string, fn plugin.PhaseFunc) { b.phases[name] = fn }

// BindHandler registers a hook handler under a symbol name.
func (b *Binder) BindHandler(name string, fn plugin.HookFunc) { b.handlers[name] = fn }

// BindCondition registers a hook condition under a symbol name.
func (b *Binder) BindCondition(name string, fn plugin.ConditionFunc) { b.conditions[name] = fn }

// Parse converts raw manifest YAML into descriptors, resolving every symbol
// through the binder. The returned descriptors are not yet validated; the
// registry validates at admission.
func Parse(content []byte, binder *Binder) ([]*plugin.Descriptor, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: manifest parse: %v", plugin.ErrValidation, err)
	}

	var file File
	if err := k.Unmarshal("", &file); err != nil {
		return nil, fmt.Errorf("%w: manifest decode: %v", plugin.ErrValidation, err)
	}

	descriptors := make([]*plugin.Descriptor, 0, len(file.Plugins))
	for _, p := range file.Plugins {
		desc, err := p.descriptor(binder)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors, nil
}

// LoadFile parses one manifest file.
func LoadFile(path string, binder *Binder) ([]*plugin.Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	if info.Size() > maxManifestSize {
		return nil, fmt.Errorf("%w: manifest %s too large: %d bytes", plugin.ErrValidation, path, info.Size())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	descriptors, err := Parse(content, binder)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return descriptors, nil
}

// LoadDir parses every *.yaml manifest in a directory, in lexical order so
// registration order is stable across runs.
func LoadDir(dir string, binder *Binder) ([]*plugin.Descriptor, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("manifest dir %s: %w", dir, err)
	}
	sort.Strings(matches)

	var descriptors []*plugin.Descriptor
	for _, path := range matches {
		batch, err := LoadFile(path, binder)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, batch...)
	}
	return descriptors, nil
}

func (p Plugin) descriptor(binder *Binder) (*plugin.Descriptor, error) {
	exec, ok := binder.execs[p.Exec]
	if !ok {
		return nil, fmt.Errorf("%w: plugin %q: unresolved exec symbol %q", plugin.ErrValidation, p.Name, p.Exec)
	}

	desc := &plugin.Descriptor{
		Name:     p.Name,
		Version:  p.Version,
		Category: plugin.Category(p.Category),
		Priority: p.Priority,
		Exec:     exec,
	}

	if len(p.Capabilities) > 0 {
		desc.Capabilities = make(map[string]bool, len(p.Capabilities))
		for _, c := range p.Capabilities {
			desc.Capabilities[c] = true
		}
	}
	for _, d := range p.Dependencies {
		desc.Dependencies = append(desc.Dependencies, plugin.Dependency{
			Name:        d.Name,
			Requirement: d.Requirement,
		})
	}

	if p.Init != "" {
		fn, ok := binder.phases[p.Init]
		if !ok {
			return nil, fmt.Errorf("%w: plugin %q: unresolved init symbol %q", plugin.ErrValidation, p.Name, p.Init)
		}
		desc.Init = fn
	}
	if p.Teardown != "" {
		fn, ok := binder.phases[p.Teardown]
		if !ok {
			return nil, fmt.Errorf("%w: plugin %q: unresolved teardown symbol %q", plugin.ErrValidation, p.Name, p.Teardown)
		}
		desc.Teardown = fn
	}

	for _, h := range p.Hooks {
		hook, err := h.hook(p.Name, binder)
		if err != nil {
			return nil, err
		}
		desc.Hooks = append(desc.Hooks, hook)
	}

	return desc, nil
}

func (h Hook) hook(pluginName string, binder *Binder) (plugin.Hook, error) {
	handler, ok := binder.handlers[h.Handler]
	if !ok {
		return plugin.Hook{}, fmt.Errorf("%w: plugin %q: unresolved handler symbol %q",
			plugin.ErrValidation, pluginName, h.Handler)
	}

	hook := plugin.Hook{
		Name:      h.Name,
		Event:     plugin.Event(h.Event),
		Handler:   handler,
		Priority:  h.Priority,
		DependsOn: h.DependsOn,
		Critical:  h.Critical,
		Timeout:   h.Timeout,
	}
	if h.Condition != "" {
		cond, ok := binder.conditions[h.Condition]
		if !ok {
			return plugin.Hook{}, fmt.Errorf("%w: plugin %q: unresolved condition symbol %q",
				plugin.ErrValidation, pluginName, h.Condition)
		}
		hook.Condition = cond
	}
	return hook, nil
}
