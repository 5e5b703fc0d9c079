package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/plugind/internal/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the plugind HTTP server",
	Long: `Start the plugind daemon: load manifests, build the registry, and
serve health, metrics, and run endpoints until interrupted.

Examples:
  # Start with the default config
  plugind serve

  # Start with an explicit config file
  plugind serve --config /etc/plugind/config.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	eng, err := buildEngine(promReg)
	if err != nil {
		return err
	}
	defer func() {
		_ = eng.logger.Sync()
	}()

	server, err := httpserver.NewServer(eng.orch, eng.logger.Underlying(), &httpserver.Config{
		Host:     eng.cfg.Server.Host,
		Port:     eng.cfg.Server.Port,
		Gatherer: promReg,
	})
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	eng.logger.Info(ctx, "plugind started",
		zap.String("host", eng.cfg.Server.Host),
		zap.Int("port", eng.cfg.Server.Port),
		zap.Int("plugins", eng.orch.Registry().Count()),
	)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), eng.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := eng.orch.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("plugin cleanup: %w", err))
	}

	eng.logger.Info(shutdownCtx, "plugind stopped")
	return errors.Join(errs...)
}
