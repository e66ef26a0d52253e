package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatherd/internal/cache"
	"github.com/fyrsmithlabs/gatherd/internal/coalesce"
	"github.com/fyrsmithlabs/gatherd/internal/collector"
	"github.com/fyrsmithlabs/gatherd/internal/config"
	"github.com/fyrsmithlabs/gatherd/internal/finalize"
	"github.com/fyrsmithlabs/gatherd/internal/history"
	"github.com/fyrsmithlabs/gatherd/internal/orchestrator"
	"github.com/fyrsmithlabs/gatherd/internal/redact"
	"github.com/fyrsmithlabs/gatherd/internal/repostate"
)

// Assembly priorities. Collector output is concatenated in this order
// regardless of completion order.
const (
	priorityDiagnostics = 10
	priorityGit         = 20
	priorityIssues      = 30
	priorityHistory     = 40
	priorityToolRec     = 50
	priorityWeb         = 60
)

// dependencies holds everything the subcommands wire together: the result
// cache, the collector registry, and the orchestrator running on top of them.
type dependencies struct {
	cache    *cache.Cache
	registry *collector.Registry
	repo     *repostate.Service
	history  *history.Store
	natsConn *nats.Conn
	orch     *orchestrator.Orchestrator
}

// Close releases infrastructure connections. Safe on a partially
// constructed value.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
}

// newDependencies builds the gathering pipeline from configuration.
//
// Collectors needing external credentials or endpoints are only constructed
// when enabled; git and toolrec have no external requirements and are always
// registered. The enablement map still gates which registered collectors run.
func newDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	store := cache.New(cfg.Cache.TTL.Duration(), cfg.Cache.MaxEntries)
	store.SetMetrics(cache.NewMetrics())

	repo := repostate.NewService(logger, cfg.Collectors.Git.MaxCommits)
	registry := collector.NewRegistry()

	deps := &dependencies{
		cache:    store,
		registry: registry,
		repo:     repo,
	}

	if cfg.Collectors.Diagnostics.Enabled {
		nc, err := nats.Connect(cfg.Collectors.Diagnostics.URL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(1*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.Collectors.Diagnostics.URL, err)
		}
		deps.natsConn = nc
		logger.Info("connected to NATS", zap.String("url", cfg.Collectors.Diagnostics.URL))

		diag, err := collector.NewDiagnosticsCollector(nc, collector.DiagnosticsConfig{
			Subject:    cfg.Collectors.Diagnostics.Subject,
			MaxEntries: cfg.Collectors.Diagnostics.MaxEntries,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("diagnostics collector: %w", err)
		}
		registry.MustRegister(collector.Registration{
			Collector: diag,
			Priority:  priorityDiagnostics,
			Required:  cfg.Collectors.Diagnostics.Required,
		})
	}

	registry.MustRegister(collector.Registration{
		Collector: collector.NewGitCollector(repo),
		Priority:  priorityGit,
		Required:  cfg.Collectors.Git.Required,
	})

	if cfg.Collectors.GitHub.Enabled {
		issues, err := collector.NewIssuesCollector(ctx, collector.IssuesConfig{
			Token:     cfg.Collectors.GitHub.Token.Value(),
			BaseURL:   cfg.Collectors.GitHub.BaseURL,
			MaxIssues: cfg.Collectors.GitHub.MaxIssues,
		}, repo)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("github issues collector: %w", err)
		}
		registry.MustRegister(collector.Registration{
			Collector: issues,
			Priority:  priorityIssues,
			Required:  cfg.Collectors.GitHub.Required,
		})
	}

	// The history store serves both searching and write-back recording.
	// Recording needs an embedding endpoint, so without one the store is
	// skipped even when record is on.
	hc := cfg.Collectors.History
	if hc.Enabled || (hc.Record && hc.EmbeddingBaseURL != "") {
		hstore, err := history.New(history.Config{
			Path:       hc.Path,
			Collection: hc.Collection,
			Compress:   hc.Compress,
			Embedding: history.EmbeddingConfig{
				BaseURL: hc.EmbeddingBaseURL,
				APIKey:  hc.EmbeddingAPIKey.Value(),
				Model:   hc.EmbeddingModel,
			},
		}, nil, logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("history store: %w", err)
		}
		deps.history = hstore

		if hc.Enabled {
			registry.MustRegister(collector.Registration{
				Collector: collector.NewHistoryCollector(hstore, hc.TopK),
				Priority:  priorityHistory,
				Required:  hc.Required,
			})
		}
	}

	registry.MustRegister(collector.Registration{
		Collector: collector.NewToolRecommender(),
		Priority:  priorityToolRec,
		Required:  cfg.Collectors.ToolRec.Required,
	})

	if cfg.Collectors.Web.Enabled {
		web, err := collector.NewWebCollector(collector.WebConfig{
			Endpoint:      cfg.Collectors.Web.Endpoint,
			APIKey:        cfg.Collectors.Web.APIKey.Value(),
			MaxResults:    cfg.Collectors.Web.MaxResults,
			Timeout:       cfg.Collectors.Web.Timeout.Duration(),
			RatePerSecond: cfg.Collectors.Web.RatePerSecond,
			Burst:         cfg.Collectors.Web.Burst,
		}, &coalesce.Group{})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("web collector: %w", err)
		}
		registry.MustRegister(collector.Registration{
			Collector: web,
			Priority:  priorityWeb,
			Required:  cfg.Collectors.Web.Required,
		})
	}

	// One redactor instance scrubs failure reasons, outbound summarizer
	// prompts, and log fields alike.
	redactor := redact.Default()

	var finalizer *finalize.Service
	if cfg.Finalizer.Enabled {
		summarizer, err := finalize.NewAnthropicSummarizer(finalize.AnthropicConfig{
			APIKey:    cfg.Finalizer.APIKey.Value(),
			BaseURL:   cfg.Finalizer.BaseURL,
			Model:     cfg.Finalizer.Model,
			MaxTokens: cfg.Finalizer.MaxTokens,
			Timeout:   cfg.Finalizer.Timeout.Duration(),
		}, redactor)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("anthropic summarizer: %w", err)
		}
		finalizer, err = finalize.NewService(summarizer, redactor, logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("finalize service: %w", err)
		}
	}

	var scanner *redact.DeepScanner
	if cfg.Redact.DeepScan {
		allow, err := redact.LoadAllowlists("", cfg.Redact.AllowlistPath)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("loading redaction allowlists: %w", err)
		}
		scanner, err = redact.NewDeepScanner(allow)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("deep scanner: %w", err)
		}
	}

	var recorder orchestrator.Recorder
	if hc.Record && deps.history != nil {
		recorder = deps.history
	}

	orch, err := orchestrator.New(orchestrator.Config{
		GlobalTimeout: cfg.Gather.GlobalTimeout.Duration(),
		MaxConcurrent: cfg.Gather.MaxConcurrent,
		BudgetUnits:   cfg.Gather.BudgetUnits,
	}, orchestrator.Deps{
		Registry:    registry,
		Cache:       store,
		Repo:        repo,
		Finalizer:   finalizer,
		History:     recorder,
		DeepScanner: scanner,
		Redactor:    redactor,
		Logger:      logger,
	})
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	deps.orch = orch

	logger.Info("pipeline initialized",
		zap.Strings("collectors", registry.IDs()),
		zap.Bool("finalizer", finalizer != nil),
		zap.Bool("deep_scan", scanner != nil),
		zap.Bool("history_recording", recorder != nil),
	)

	return deps, nil
}
