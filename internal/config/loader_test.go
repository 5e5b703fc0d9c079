package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig places a config file under the fake home's allowed directory
// with the permissions the loader demands.
func writeConfig(t *testing.T, home, content string) string {
	t.Helper()
	dir := filepath.Join(home, ".config", "plugind")
	require.NoError(t, os.MkdirAll(dir, 0700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.Engine.DefaultHookTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Engine.MaxHookTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadWithFile_YAMLOverridesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, home, `
server:
  port: 8123
engine:
  default_hook_timeout: 5s
manifests:
  dir: /srv/plugind/manifests
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Engine.DefaultHookTimeout)
	assert.Equal(t, "/srv/plugind/manifests", cfg.Manifests.Dir)
	// Untouched fields keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadWithFile_EnvOverridesYAML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, home, "server:\n  port: 8123\n")
	t.Setenv("SERVER_PORT", "9999")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadWithFile_RejectsWorldReadableFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "plugind")
	require.NoError(t, os.MkdirAll(dir, 0700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8123\n"), 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("server:\n  port: 8123\n"), 0600))

	_, err := LoadWithFile(outside)
	require.Error(t, err)
}

func TestLoadWithFile_RejectsInvalidValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"default exceeds max", "engine:\n  default_hook_timeout: 10m\n  max_hook_timeout: 1m\n"},
		{"bad logging format", "logging:\n  format: xml\n  level: info\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, home, tt.yaml)
			_, err := LoadWithFile(path)
			assert.Error(t, err)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	require.NoError(t, cfg.Validate())

	cfg.Engine.DefaultHookTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}
