package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatherd/internal/config"
	api "github.com/fyrsmithlabs/gatherd/internal/http"
	"github.com/fyrsmithlabs/gatherd/internal/logging"
	"github.com/fyrsmithlabs/gatherd/internal/orchestrator"
	"github.com/fyrsmithlabs/gatherd/internal/query"
	"github.com/fyrsmithlabs/gatherd/internal/telemetry"
	"github.com/fyrsmithlabs/gatherd/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gatherd HTTP daemon",
	Long: `Start the HTTP daemon serving the gathering API.

The daemon exposes POST /api/v1/gather plus stats, cache management, health,
and Prometheus metrics endpoints. It shuts down gracefully on SIGINT or
SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging, nil)
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

	logger.Info("starting gatherd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("global_timeout", cfg.Gather.GlobalTimeout.Duration()))

	tel, err := telemetry.New(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer deps.Close()

	var watcher *watch.Watcher
	if cfg.Watch.Enabled {
		watcher, err = watch.New(watch.Config{
			Debounce: cfg.Watch.Debounce.Duration(),
		}, deps.cache.PurgeWorkspace, logger)
		if err != nil {
			return fmt.Errorf("creating cache watcher: %w", err)
		}
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	g := &watchingGatherer{orch: deps.orch, watcher: watcher, logger: logger}
	srv, err := api.NewServer(g, deps.cache, cfg.EnabledCollectors(), cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// watchingGatherer registers each request's workspace with the cache watcher
// before delegating. Satisfies api.Gatherer.
type watchingGatherer struct {
	orch    *orchestrator.Orchestrator
	watcher *watch.Watcher
	logger  *zap.Logger
}

func (w *watchingGatherer) Run(ctx context.Context, q query.Query, enabled map[string]bool) (*orchestrator.Output, error) {
	if w.watcher != nil && q.WorkingDir != "" {
		if err := w.watcher.Add(q.WorkingDir); err != nil {
			// Non-git workspaces are expected here; their cache entries
			// age out by TTL alone.
			w.logger.Debug("workspace not watched",
				zap.String("dir", q.WorkingDir),
				zap.Error(err))
		}
	}
	return w.orch.Run(ctx, q, enabled)
}

func (w *watchingGatherer) Stats() orchestrator.Stats {
	return w.orch.Stats()
}
