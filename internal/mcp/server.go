// Package mcp exposes the gathering pipeline over the Model Context
// Protocol so coding assistants can pull context without going through
// the HTTP API. The server speaks stdio transport only.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatherd/internal/cache"
	"github.com/fyrsmithlabs/gatherd/internal/collector"
	"github.com/fyrsmithlabs/gatherd/internal/orchestrator"
	"github.com/fyrsmithlabs/gatherd/internal/query"
)

// Gatherer runs the gathering pipeline for one query.
// *orchestrator.Orchestrator satisfies it.
type Gatherer interface {
	Run(ctx context.Context, q query.Query, enabled map[string]bool) (*orchestrator.Output, error)
	Stats() orchestrator.Stats
}

// Store exposes the aggregate cache counters. *cache.Cache satisfies it.
type Store interface {
	Stats() cache.Stats
	Len() int
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "gatherd").
	Name string

	// Version is the server version.
	Version string

	// Logger for structured logging.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "gatherd",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// Server bridges MCP tool calls to the orchestrator and cache.
type Server struct {
	mcp      *mcp.Server
	gatherer Gatherer
	store    Store
	registry *collector.Registry
	enabled  map[string]bool
	metrics  *Metrics
	logger   *zap.Logger
}

// NewServer creates an MCP server wired to the given pipeline. The enabled
// map gates which collectors each gather_context call may run.
func NewServer(cfg *Config, g Gatherer, store Store, registry *collector.Registry, enabled map[string]bool) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if g == nil {
		return nil, fmt.Errorf("gatherer is required")
	}
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("collector registry is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		gatherer: g,
		store:    store,
		registry: registry,
		enabled:  enabled,
		metrics:  NewMetrics(cfg.Logger),
		logger:   cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport and blocks until the
// context is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
