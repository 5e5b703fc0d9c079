// Package main implements the plugind CLI: a daemon exposing the plugin
// engine over HTTP, plus offline manifest validation and analysis.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides the default config file location.
	configPath string

	// Version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "plugind",
	Short: "Plugin orchestration engine",
	Long: `plugind hosts category-scoped plugins, resolves their dependency
order, and drives them through their lifecycle. Plugins are declared in
YAML manifests that bind to built-in callables.`,
	Version: fmt.Sprintf("%s (%s)", version, gitCommit),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/plugind/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(analyzeCmd)
}
