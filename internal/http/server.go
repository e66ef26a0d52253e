// Package http provides the HTTP API for gatherd.
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

	"github.com/fyrsmithlabs/gatherd/internal/cache"
	"github.com/fyrsmithlabs/gatherd/internal/config"
	"github.com/fyrsmithlabs/gatherd/internal/finalize"
	"github.com/fyrsmithlabs/gatherd/internal/orchestrator"
	"github.com/fyrsmithlabs/gatherd/internal/query"
)

// Gatherer runs the context pipeline. Satisfied by *orchestrator.Orchestrator.
type Gatherer interface {
	Run(ctx context.Context, q query.Query, enabled map[string]bool) (*orchestrator.Output, error)
	Stats() orchestrator.Stats
}

// Store exposes the cache operations the API needs. Satisfied by
// *cache.Cache.
type Store interface {
	Stats() cache.Stats
	Len() int
	PurgeAll()
}

// Server provides HTTP endpoints for gatherd.
type Server struct {
	echo     *echo.Echo
	gatherer Gatherer
	store    Store
	enabled  map[string]bool
	logger   *zap.Logger
	cfg      config.ServerConfig
}

// NewServer creates the HTTP server. enabled gates collectors for every
// request served.
func NewServer(g Gatherer, store Store, enabled map[string]bool, cfg config.ServerConfig, logger *zap.Logger) (*Server, error) {
	if g == nil {
		return nil, fmt.Errorf("gatherer cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("cache store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
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
	e.Use(NewHTTPMetrics(logger).Middleware())

	s := &Server{
		echo:     e,
		gatherer: g,
		store:    store,
		enabled:  enabled,
		logger:   logger,
		cfg:      cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/gather", s.handleGather)
	v1.GET("/stats", s.handleStats)
	v1.DELETE("/cache", s.handlePurgeCache)
}

// GatherRequest is the request body for POST /api/v1/gather.
type GatherRequest struct {
	Query      string `json:"query"`
	WorkingDir string `json:"working_dir"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Collector string `json:"collector,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	Gather orchestrator.Stats `json:"gather"`
	Cache  cache.Stats        `json:"cache"`
}

// PurgeResponse is the response body for DELETE /api/v1/cache.
type PurgeResponse struct {
	Purged int `json:"purged"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleGather runs the pipeline for one query. Fatal pipeline failures map
// onto distinct status codes so callers can tell a timeout from a required
// collector failure without parsing reason strings.
func (s *Server) handleGather(c echo.Context) error {
	var req GatherRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid gather request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	q := query.New(req.Query, req.WorkingDir)
	out, err := s.gatherer.Run(c.Request().Context(), q, s.enabled)
	if err != nil {
		return s.gatherError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) gatherError(c echo.Context, err error) error {
	var reqErr *orchestrator.RequiredError
	var finErr *finalize.Error

	switch {
	case errors.Is(err, orchestrator.ErrEmptyQuery):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query text is required"})
	case errors.Is(err, orchestrator.ErrNoCollectors):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no collectors enabled"})
	case errors.Is(err, orchestrator.ErrGlobalTimeout):
		return c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: err.Error()})
	case errors.As(err, &reqErr):
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:     reqErr.Error(),
			Collector: reqErr.CollectorID,
		})
	case errors.As(err, &finErr):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: finErr.Error()})
	default:
		s.logger.Error("gather failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, StatsResponse{
		Gather: s.gatherer.Stats(),
		Cache:  s.store.Stats(),
	})
}

func (s *Server) handlePurgeCache(c echo.Context) error {
	purged := s.store.Len()
	s.store.PurgeAll()
	s.logger.Info("cache purged via api", zap.Int("purged", purged))
	return c.JSON(http.StatusOK, PurgeResponse{Purged: purged})
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := s.cfg.Addr()
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully drains and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
