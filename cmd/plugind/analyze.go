package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	analyzeProject string
	analyzeAction  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run every category locally and print the results",
	Long: `Build the engine from the configured manifests, apply every
category against the given project, and print results as JSON.

Examples:
  # Analyze the current directory
  plugind analyze --project .

  # Analyze with an action discriminator
  plugind analyze --project ./svc --action apply`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProject, "project", "", "project path to analyze")
	analyzeCmd.Flags().StringVar(&analyzeAction, "action", "analyze", "action discriminator for hook conditions")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer func() {
		_ = eng.logger.Sync()
	}()

	results, err := eng.orch.Analyze(ctx, runContext(analyzeProject, analyzeAction))
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	return eng.orch.Shutdown(ctx)
}
