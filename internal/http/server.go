// Package http provides the ops HTTP API for plugind: health, metrics,
// registry introspection, and category runs.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/plugind/internal/lifecycle"
	"github.com/fyrsmithlabs/plugind/internal/orchestrator"
	"github.com/fyrsmithlabs/plugind/internal/plugin"
)

// Server exposes the engine over HTTP.
type Server struct {
	echo   *echo.Echo
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// Gatherer backs GET /metrics. Defaults to the process-wide gatherer.
	Gatherer prometheus.Gatherer
}

// NewServer creates the ops server over an orchestrator.
func NewServer(orch *orchestrator.Orchestrator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		orch:   orch,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/plugins", s.handleListPlugins)
	v1.POST("/apply/:category", s.handleApply)
	v1.POST("/analyze", s.handleAnalyze)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Plugins int    `json:"plugins"`
}

// PluginInfo is one registry entry in GET /api/v1/plugins.
type PluginInfo struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Category string            `json:"category"`
	State    lifecycle.State   `json:"state"`
	Metrics  lifecycle.Metrics `json:"metrics"`
}

// ApplyRequest is the request body for POST /api/v1/apply/:category and
// POST /api/v1/analyze. Context seeds the run; the reserved store key is
// stripped before the run starts.
type ApplyRequest struct {
	Context map[string]any `json:"context"`
}

// ApplyResponse is the response body for POST /api/v1/apply/:category.
type ApplyResponse struct {
	Category string                `json:"category"`
	Results  []orchestrator.Result `json:"results"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Plugins: s.orch.Registry().Count(),
	})
}

func (s *Server) handleListPlugins(c echo.Context) error {
	var infos []PluginInfo
	for _, category := range plugin.Categories() {
		for _, entry := range s.orch.Registry().Snapshot(category) {
			infos = append(infos, PluginInfo{
				Name:     entry.Descriptor.Name,
				Version:  entry.Descriptor.Version,
				Category: string(category),
				State:    entry.Machine.State(),
				Metrics:  entry.Machine.Metrics(),
			})
		}
	}
	if infos == nil {
		infos = []PluginInfo{}
	}
	return c.JSON(http.StatusOK, infos)
}

func (s *Server) handleApply(c echo.Context) error {
	category, err := plugin.ParseCategory(c.Param("category"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown category %q", c.Param("category")))
	}

	pctx, err := bindRunContext(c)
	if err != nil {
		return err
	}

	results, applyErr := s.orch.Apply(c.Request().Context(), category, pctx)
	if applyErr != nil {
		s.logger.Warn("apply failed", zap.String("category", string(category)), zap.Error(applyErr))
		return echo.NewHTTPError(http.StatusConflict, applyErr.Error())
	}

	return c.JSON(http.StatusOK, ApplyResponse{
		Category: string(category),
		Results:  results,
	})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	pctx, err := bindRunContext(c)
	if err != nil {
		return err
	}

	all, analyzeErr := s.orch.Analyze(c.Request().Context(), pctx)
	if analyzeErr != nil {
		s.logger.Warn("analyze failed", zap.Error(analyzeErr))
		return echo.NewHTTPError(http.StatusConflict, analyzeErr.Error())
	}

	return c.JSON(http.StatusOK, all)
}

// bindRunContext decodes the request body into a run context. An empty body
// yields an empty context.
func bindRunContext(c echo.Context) (plugin.Context, error) {
	var req ApplyRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pctx := plugin.Context{}
	for k, v := range req.Context {
		if k == plugin.KeyStore {
			continue
		}
		pctx[k] = v
	}
	return pctx, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
