// Package http serves the worker's health, metrics and job intake endpoints.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/natsjob"
)

// Enqueuer publishes jobs. *natsjob.Producer satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) (*natsjob.Envelope, error)
}

// HealthFunc reports per-component status. Any value other than "ok"
// degrades the overall status.
type HealthFunc func(ctx context.Context) map[string]string

// Server provides HTTP endpoints for a bullmq-otel worker.
type Server struct {
	echo     *echo.Echo
	logger   *logging.Logger
	config   *Config
	enqueuer Enqueuer
	health   HealthFunc
}

// Config holds HTTP server configuration.
type Config struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Deps are the collaborators a Server needs. Only Logger is required.
type Deps struct {
	Logger   *logging.Logger
	Meter    jobtel.Meter
	Metrics  http.Handler
	Enqueuer Enqueuer
	Health   HealthFunc
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, cfg *Config) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger := deps.Logger
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	metrics, err := NewHTTPMetrics(deps.Meter)
	if err != nil {
		return nil, err
	}
	e.Use(metrics.MetricsMiddleware())

	s := &Server{
		echo:     e,
		logger:   logger,
		config:   cfg,
		enqueuer: deps.Enqueuer,
		health:   deps.Health,
	}

	s.registerRoutes(deps.Metrics)

	return s, nil
}

// Echo exposes the router for additional routes.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes(metrics http.Handler) {
	s.echo.GET("/health", s.handleHealth)
	if metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/jobs", s.handleEnqueue)
}

// handleHealth aggregates component status.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.health != nil {
		resp.Services = s.health(c.Request().Context())
		for _, st := range resp.Services {
			if st != "ok" {
				resp.Status = "degraded"
			}
		}
	}
	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// handleEnqueue publishes the posted job.
func (s *Server) handleEnqueue(c echo.Context) error {
	if s.enqueuer == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "job intake is not configured")
	}

	var req EnqueueRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid enqueue request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name field is required")
	}

	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	env, err := s.enqueuer.Enqueue(c.Request().Context(), req.Name, payload)
	if err != nil {
		s.logger.Error(c.Request().Context(), "enqueue failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to enqueue job")
	}

	return c.JSON(http.StatusAccepted, EnqueueResponse{ID: env.ID, Queue: env.Queue})
}

// Start starts the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(ctx, "starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() { errCh <- s.echo.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// EnqueueRequest is the request body for POST /api/v1/jobs.
type EnqueueRequest struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EnqueueResponse is the response body for POST /api/v1/jobs.
type EnqueueResponse struct {
	ID    string `json:"id"`
	Queue string `json:"queue"`
}
