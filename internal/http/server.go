package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/engine"
)

// Service is the read-only engine surface the HTTP API exposes.
// *engine.Engine satisfies this.
type Service interface {
	ListCollections(ctx context.Context) ([]engine.CollectionSummary, error)
	CollectionInfo(ctx context.Context, collection string) (*engine.CollectionDetail, error)
	ModelMappings(ctx context.Context) engine.MappingsReport
}

// HealthChecker reports backend liveness for the readiness probe.
// qdrant.Backend satisfies this.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server provides HTTP endpoints for vectord: health and readiness probes,
// Prometheus metrics, the streamable MCP endpoint, and read-only collection
// introspection.
type Server struct {
	echo    *echo.Echo
	service Service
	health  HealthChecker
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server. mcpHandler is mounted at /mcp when
// non-nil.
func NewServer(service Service, health HealthChecker, mcpHandler http.Handler, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("engine service is required")
	}
	if health == nil {
		return nil, fmt.Errorf("health checker is required")
	}
	if logger == nil {
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

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
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
		echo:    e,
		service: service,
		health:  health,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes(mcpHandler)

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes(mcpHandler http.Handler) {
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/readyz", s.handleReadyz)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if mcpHandler != nil {
		s.echo.Any("/mcp", echo.WrapHandler(mcpHandler))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/collections", s.handleListCollections)
	v1.GET("/collections/:name", s.handleCollectionInfo)
	v1.GET("/models", s.handleModels)
}

// handleHealthz reports process liveness.
func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReadyz reports readiness: the backend must answer its health check.
func (s *Server) handleReadyz(c echo.Context) error {
	if err := s.health.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Error:  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}

func (s *Server) handleListCollections(c echo.Context) error {
	summaries, err := s.service.ListCollections(c.Request().Context())
	if err != nil {
		return s.engineError(c, err)
	}
	return c.JSON(http.StatusOK, CollectionsResponse{
		Collections: summaries,
		Count:       len(summaries),
	})
}

func (s *Server) handleCollectionInfo(c echo.Context) error {
	detail, err := s.service.CollectionInfo(c.Request().Context(), c.Param("name"))
	if err != nil {
		return s.engineError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) handleModels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.ModelMappings(c.Request().Context()))
}

// engineError translates engine taxonomy errors into HTTP status codes.
func (s *Server) engineError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNoSuchCollection), errors.Is(err, engine.ErrPointNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrModelMismatch):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrReadOnly):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrBackendUnavailable), errors.Is(err, engine.ErrEmbedderUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{
		Code:    engine.Code(err),
		Message: err.Error(),
	})
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
