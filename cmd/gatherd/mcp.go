package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatherd/internal/config"
	"github.com/fyrsmithlabs/gatherd/internal/logging"
	"github.com/fyrsmithlabs/gatherd/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline to an MCP client over stdio",
	Long: `Run gatherd as a Model Context Protocol server on stdin/stdout.

Stdout carries the protocol stream, so all logging goes to stderr. Intended
to be launched by an MCP client, not interactively.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

func runMCP(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Stdout belongs to the protocol.
	logger, err := logging.NewWithSink(cfg.Logging, nil, os.Stderr)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer deps.Close()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "gatherd",
		Version: version,
		Logger:  logger,
	}, deps.orch, deps.cache, deps.registry, cfg.EnabledCollectors())
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	return srv.Run(ctx)
}
