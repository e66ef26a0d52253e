// Package orchestrator fans a query out to every enabled collector, gathers
// their fragments under one global deadline, and pushes the survivors
// through budgeting, finalization, and the cache.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatherd/internal/budget"
	"github.com/fyrsmithlabs/gatherd/internal/cache"
	"github.com/fyrsmithlabs/gatherd/internal/collector"
	"github.com/fyrsmithlabs/gatherd/internal/finalize"
	"github.com/fyrsmithlabs/gatherd/internal/query"
	"github.com/fyrsmithlabs/gatherd/internal/redact"
	"github.com/fyrsmithlabs/gatherd/internal/repostate"
)

const (
	tracerName = "github.com/fyrsmithlabs/gatherd/internal/orchestrator"
	meterName  = "orchestrator"

	defaultGlobalTimeout = 30 * time.Second
	defaultMaxConcurrent = 8
	defaultBudgetUnits   = 2000
)

// Config bounds a run.
type Config struct {
	// GlobalTimeout caps the whole fan-out. Defaults to 30s.
	GlobalTimeout time.Duration

	// MaxConcurrent bounds simultaneously executing collectors.
	// Defaults to 8.
	MaxConcurrent int

	// BudgetUnits caps the aggregate size, one unit per four characters.
	// Defaults to 2000.
	BudgetUnits int
}

func (c *Config) applyDefaults() {
	if c.GlobalTimeout <= 0 {
		c.GlobalTimeout = defaultGlobalTimeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.BudgetUnits <= 0 {
		c.BudgetUnits = defaultBudgetUnits
	}
}

// Recorder persists finished aggregates for later similarity search.
type Recorder interface {
	Record(ctx context.Context, id, content string, metadata map[string]string) error
}

// Deps are the orchestrator's collaborators. Registry, Cache, and Repo are
// mandatory; the rest degrade gracefully when nil.
type Deps struct {
	Registry *collector.Registry
	Cache    *cache.Cache
	Repo     *repostate.Service

	// Finalizer is optional; nil skips finalization and returns the
	// compacted aggregate directly.
	Finalizer *finalize.Service

	// History is optional; recording failures never fail a request.
	History Recorder

	// DeepScanner is optional; when set it scrubs the final text before
	// it is cached or returned.
	DeepScanner *redact.DeepScanner

	// Redactor scrubs failure reasons. Nil selects the built-in rules.
	Redactor redact.Redactor

	Logger *zap.Logger
}

// Output is a successful run.
type Output struct {
	RequestID   string        `json:"request_id"`
	Text        string        `json:"context"`
	CacheHit    bool          `json:"from_cache"`
	Truncated   bool          `json:"truncated"`
	Fingerprint string        `json:"fingerprint"`
	Warnings    []Warning     `json:"warnings,omitempty"`
	Elapsed     time.Duration `json:"-"`
}

// Stats is a snapshot of run counters since process start.
type Stats struct {
	Requests          int64 `json:"requests"`
	CacheHits         int64 `json:"cache_hits"`
	GlobalTimeouts    int64 `json:"global_timeouts"`
	RequiredFailures  int64 `json:"required_failures"`
	FinalizeFailures  int64 `json:"finalize_failures"`
	CollectorWarnings int64 `json:"collector_warnings"`
}

// Orchestrator coordinates one gathering pipeline. Safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	registry *collector.Registry
	cache    *cache.Cache
	repo     *repostate.Service
	final    *finalize.Service
	history  Recorder
	deep     *redact.DeepScanner
	redactor redact.Redactor
	logger   *zap.Logger

	tracer trace.Tracer
	meter  metric.Meter

	requestCounter    metric.Int64Counter
	requestTime       metric.Float64Histogram
	collectorTime     metric.Float64Histogram
	aggregateUnits    metric.Int64Histogram
	warningCounter    metric.Int64Counter
	requests          atomic.Int64
	cacheHits         atomic.Int64
	globalTimeouts    atomic.Int64
	requiredFailures  atomic.Int64
	finalizeFailures  atomic.Int64
	collectorWarnings atomic.Int64
}

// New validates deps and builds an orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	cfg.applyDefaults()
	if deps.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires a collector registry")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("orchestrator requires a result cache")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("orchestrator requires a repository state service")
	}
	if deps.Redactor == nil {
		deps.Redactor = redact.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	o := &Orchestrator{
		cfg:      cfg,
		registry: deps.Registry,
		cache:    deps.Cache,
		repo:     deps.Repo,
		final:    deps.Finalizer,
		history:  deps.History,
		deep:     deps.DeepScanner,
		redactor: deps.Redactor,
		logger:   deps.Logger,
		tracer:   otel.Tracer(tracerName),
		meter:    otel.Meter(meterName),
	}
	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("initializing orchestrator metrics: %w", err)
	}
	return o, nil
}

// Run executes the full pipeline for one query. enabled gates collectors by
// ID; absent IDs are disabled. Fatal failures return ErrGlobalTimeout,
// *RequiredError, or *finalize.Error; every reason string is redacted.
func (o *Orchestrator) Run(ctx context.Context, q query.Query, enabled map[string]bool) (*Output, error) {
	requestID := uuid.NewString()
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "orchestrator.run",
		trace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.Int("query_length", len(q.RawText)),
		),
	)
	defer span.End()

	logger := o.logger.With(zap.String("request_id", requestID))
	o.requests.Add(1)

	if q.Empty() {
		return nil, ErrEmptyQuery
	}

	state, err := o.repo.Snapshot(ctx, q.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("reading workspace state: %w", err)
	}
	fingerprint := state.Fingerprint()
	key := q.Key(fingerprint)
	span.SetAttributes(attribute.String("fingerprint", fingerprint))

	if text, ok := o.cache.Lookup(key); ok {
		o.cacheHits.Add(1)
		o.record(ctx, "cache_hit", time.Since(start))
		logger.Debug("cache hit", zap.String("fingerprint", fingerprint))
		return &Output{
			RequestID:   requestID,
			Text:        text,
			CacheHit:    true,
			Truncated:   budget.Truncated(text),
			Fingerprint: fingerprint,
			Elapsed:     time.Since(start),
		}, nil
	}

	regs := o.registry.Enabled(enabled)
	if len(regs) == 0 {
		return nil, ErrNoCollectors
	}

	results, err := o.collect(ctx, q, regs, logger)
	if err != nil {
		if errors.Is(err, ErrGlobalTimeout) {
			o.globalTimeouts.Add(1)
			o.record(ctx, "global_timeout", time.Since(start))
			logger.Warn("global deadline elapsed, discarding partial results",
				zap.Duration("deadline", o.cfg.GlobalTimeout))
		}
		return nil, err
	}

	sections := make(map[string]string, len(results))
	var warnings []Warning
	for _, r := range results {
		reg, ok := o.registry.Lookup(r.CollectorID)
		if !ok {
			continue
		}
		switch r.Outcome {
		case collector.OutcomeOk:
			if r.Text == "" {
				if reg.Required {
					o.requiredFailures.Add(1)
					o.record(ctx, "required_failure", time.Since(start))
					return nil, &RequiredError{CollectorID: r.CollectorID, Reason: "returned no content"}
				}
				continue
			}
			sections[r.CollectorID] = r.Text
		default:
			reason := o.redactor.Redact(r.Err.Error())
			if reg.Required {
				o.requiredFailures.Add(1)
				o.record(ctx, "required_failure", time.Since(start))
				return nil, &RequiredError{CollectorID: r.CollectorID, Reason: reason, Err: r.Err}
			}
			o.collectorWarnings.Add(1)
			o.warningCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("collector", r.CollectorID),
				attribute.String("outcome", r.Outcome.String()),
			))
			logger.Warn("collector failed, excluding from payload",
				zap.String("collector", r.CollectorID),
				zap.String("outcome", r.Outcome.String()),
				zap.String("reason", reason))
			warnings = append(warnings, Warning{CollectorID: r.CollectorID, Reason: reason})
		}
	}

	// Assembly follows registration priority, never completion order.
	ordered := make([]budget.Section, 0, len(sections))
	for _, reg := range regs {
		id := reg.Collector.ID()
		if text, ok := sections[id]; ok {
			ordered = append(ordered, budget.Section{Name: id, Text: text})
		}
	}

	text := budget.Compact(ordered, o.cfg.BudgetUnits)
	truncated := budget.Truncated(text)
	o.aggregateUnits.Record(ctx, int64(budget.Estimate(text)))

	if o.final != nil {
		text, err = o.final.Finalize(ctx, q.RawText, text)
		if err != nil {
			o.finalizeFailures.Add(1)
			o.record(ctx, "finalize_failure", time.Since(start))
			return nil, err
		}
	}

	if o.deep != nil {
		scrubbed, found := o.deep.Scrub(text)
		if found > 0 {
			logger.Warn("scrubbed secrets from aggregate", zap.Int("findings", found))
		}
		text = scrubbed
	}

	o.cache.Store(key, q.WorkingDir, text)

	if o.history != nil {
		meta := map[string]string{
			"workspace":   q.WorkingDir,
			"fingerprint": fingerprint,
		}
		if err := o.history.Record(ctx, requestID, text, meta); err != nil {
			logger.Warn("history record failed", zap.Error(err))
		}
	}

	elapsed := time.Since(start)
	o.record(ctx, "ok", elapsed)
	span.SetAttributes(
		attribute.Int("sections", len(ordered)),
		attribute.Int("warnings", len(warnings)),
		attribute.Bool("truncated", truncated),
	)
	logger.Info("gathered context",
		zap.Int("sections", len(ordered)),
		zap.Int("warnings", len(warnings)),
		zap.Bool("truncated", truncated),
		zap.Duration("elapsed", elapsed))

	return &Output{
		RequestID:   requestID,
		Text:        text,
		Truncated:   truncated,
		Fingerprint: fingerprint,
		Warnings:    warnings,
		Elapsed:     elapsed,
	}, nil
}

// collect launches every enabled collector and waits for all of them under
// the global deadline. A collector still pending at the deadline fails the
// whole batch.
func (o *Orchestrator) collect(ctx context.Context, q query.Query, regs []collector.Registration, logger *zap.Logger) ([]collector.Result, error) {
	gctx, cancel := context.WithTimeout(ctx, o.cfg.GlobalTimeout)
	defer cancel()

	// Buffered so abandoned workers can settle without a reader.
	resultsChan := make(chan collector.Result, len(regs))
	sem := make(chan struct{}, o.cfg.MaxConcurrent)

	for _, reg := range regs {
		go func(c collector.Collector) {
			id := c.ID()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				resultsChan <- collector.Settle(id, "", gctx.Err(), 0)
				return
			}

			cctx, cspan := o.tracer.Start(gctx, "collector.collect",
				trace.WithAttributes(attribute.String("collector", id)))
			start := time.Now()
			text, err := c.Collect(cctx, q)
			elapsed := time.Since(start)
			if err != nil {
				cspan.RecordError(err)
			}
			cspan.End()

			res := collector.Settle(id, text, err, elapsed)
			o.collectorTime.Record(gctx, elapsed.Seconds(), metric.WithAttributes(
				attribute.String("collector", id),
				attribute.String("outcome", res.Outcome.String()),
			))
			logger.Debug("collector settled",
				zap.String("collector", id),
				zap.String("outcome", res.Outcome.String()),
				zap.Duration("elapsed", elapsed))
			resultsChan <- res
		}(reg.Collector)
	}

	results := make([]collector.Result, 0, len(regs))
	for range regs {
		select {
		case r := <-resultsChan:
			// A result settled after expiry only unblocked because the
			// deadline fired; it must not sneak into the payload.
			if gctx.Err() == nil {
				results = append(results, r)
				continue
			}
		case <-gctx.Done():
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrGlobalTimeout
	}
	return results, nil
}

// Stats snapshots the run counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Requests:          o.requests.Load(),
		CacheHits:         o.cacheHits.Load(),
		GlobalTimeouts:    o.globalTimeouts.Load(),
		RequiredFailures:  o.requiredFailures.Load(),
		FinalizeFailures:  o.finalizeFailures.Load(),
		CollectorWarnings: o.collectorWarnings.Load(),
	}
}

func (o *Orchestrator) record(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	o.requestCounter.Add(ctx, 1, attrs)
	o.requestTime.Record(ctx, elapsed.Seconds(), attrs)
}

func (o *Orchestrator) initMetrics() error {
	var err error

	o.requestCounter, err = o.meter.Int64Counter(
		"gather.requests_total",
		metric.WithDescription("Total gather requests by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("creating request counter: %w", err)
	}

	o.requestTime, err = o.meter.Float64Histogram(
		"gather.request_duration_seconds",
		metric.WithDescription("End-to-end gather latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return fmt.Errorf("creating request duration histogram: %w", err)
	}

	o.collectorTime, err = o.meter.Float64Histogram(
		"gather.collector_duration_seconds",
		metric.WithDescription("Per-collector latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0),
	)
	if err != nil {
		return fmt.Errorf("creating collector duration histogram: %w", err)
	}

	o.aggregateUnits, err = o.meter.Int64Histogram(
		"gather.aggregate_units",
		metric.WithDescription("Compacted aggregate size in budget units"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("creating aggregate size histogram: %w", err)
	}

	o.warningCounter, err = o.meter.Int64Counter(
		"gather.collector_warnings_total",
		metric.WithDescription("Non-required collector failures excluded from payloads"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("creating warning counter: %w", err)
	}

	return nil
}
