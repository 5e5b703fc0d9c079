package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/plugind/internal/logging"
)

// Config is the root configuration for plugind.
type Config struct {
	Server    ServerConfig   `koanf:"server"`
	Engine    EngineConfig   `koanf:"engine"`
	Logging   logging.Config `koanf:"logging"`
	Manifests ManifestConfig `koanf:"manifests"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// EngineConfig configures the orchestration engine.
type EngineConfig struct {
	// DefaultHookTimeout applies to hooks that declare no budget of their
	// own. Zero disables the default.
	DefaultHookTimeout time.Duration `koanf:"default_hook_timeout"`

	// MaxHookTimeout caps per-hook budgets. Zero disables the cap.
	MaxHookTimeout time.Duration `koanf:"max_hook_timeout"`
}

// ManifestConfig configures declarative plugin manifests.
type ManifestConfig struct {
	// Dir is scanned for *.yaml plugin manifests at startup. Empty disables
	// manifest loading.
	Dir string `koanf:"dir"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown_timeout must be > 0, got %s", c.Server.ShutdownTimeout)
	}
	if c.Engine.DefaultHookTimeout < 0 {
		return fmt.Errorf("engine default_hook_timeout must be >= 0, got %s", c.Engine.DefaultHookTimeout)
	}
	if c.Engine.MaxHookTimeout < 0 {
		return fmt.Errorf("engine max_hook_timeout must be >= 0, got %s", c.Engine.MaxHookTimeout)
	}
	if c.Engine.MaxHookTimeout > 0 && c.Engine.DefaultHookTimeout > c.Engine.MaxHookTimeout {
		return fmt.Errorf("engine default_hook_timeout %s exceeds max_hook_timeout %s",
			c.Engine.DefaultHookTimeout, c.Engine.MaxHookTimeout)
	}
	return c.Logging.Validate()
}
