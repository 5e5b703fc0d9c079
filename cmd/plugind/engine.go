package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fyrsmithlabs/plugind/internal/builtin"
	"github.com/fyrsmithlabs/plugind/internal/config"
	"github.com/fyrsmithlabs/plugind/internal/logging"
	"github.com/fyrsmithlabs/plugind/internal/manifest"
	"github.com/fyrsmithlabs/plugind/internal/metrics"
	"github.com/fyrsmithlabs/plugind/internal/orchestrator"
	"github.com/fyrsmithlabs/plugind/internal/plugin"
	"github.com/fyrsmithlabs/plugind/internal/registry"
	"github.com/fyrsmithlabs/plugind/internal/schedule"
)

// engine bundles the wired collaborators a command needs.
type engine struct {
	cfg    *config.Config
	logger *logging.Logger
	orch   *orchestrator.Orchestrator
}

// newBinder returns the binder with every stock symbol registered.
func newBinder() *manifest.Binder {
	b := manifest.NewBinder()
	builtin.Bind(b)
	return b
}

// buildEngine loads config, wires logging and metrics, and registers every
// manifest plugin from the configured directory.
func buildEngine(promReg prometheus.Registerer) (*engine, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	m := metrics.New(promReg)
	sched := schedule.NewWithLimits(logger, m, schedule.Limits{
		DefaultTimeout: cfg.Engine.DefaultHookTimeout,
		MaxTimeout:     cfg.Engine.MaxHookTimeout,
	})
	reg := registry.New(sched, logger)
	orch := orchestrator.New(reg, logger, m)

	if cfg.Manifests.Dir != "" {
		descriptors, err := manifest.LoadDir(cfg.Manifests.Dir, newBinder())
		if err != nil {
			return nil, fmt.Errorf("load manifests: %w", err)
		}
		for _, desc := range descriptors {
			if err := reg.Register(desc.Category, desc); err != nil {
				return nil, fmt.Errorf("register %q: %w", desc.Name, err)
			}
		}
	}

	return &engine{cfg: cfg, logger: logger, orch: orch}, nil
}

// runContext builds the run context commands seed from flags.
func runContext(projectPath, action string) plugin.Context {
	pctx := plugin.Context{}
	if projectPath != "" {
		pctx[plugin.KeyProjectPath] = projectPath
	}
	if action != "" {
		pctx[plugin.KeyAction] = action
	}
	return pctx
}
