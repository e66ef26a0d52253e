// Package finalize rewrites a budgeted aggregate into a digest focused on
// the user's query. Failure here is escalated, never papered over: a broken
// finalizer must not let raw aggregates masquerade as finalized output.
package finalize

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatherd/internal/redact"
)

const (
	tracerName = "github.com/fyrsmithlabs/gatherd/internal/finalize"
	meterName  = "finalize"
)

// Error is a fatal finalization failure. Reason is already redacted and
// safe to surface to callers.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("finalize: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Summarizer produces the final digest from the query and its aggregate.
type Summarizer interface {
	Summarize(ctx context.Context, queryText, aggregate string) (string, error)
}

// Service wraps a Summarizer with redaction, tracing, and metrics.
type Service struct {
	summarizer Summarizer
	redactor   redact.Redactor
	logger     *zap.Logger

	tracer trace.Tracer
	meter  metric.Meter

	finalizeCounter metric.Int64Counter
	finalizeTime    metric.Float64Histogram
	finalizeErrors  metric.Int64Counter
}

// NewService builds the finalization stage. redactor scrubs failure reasons
// before they leave this package; nil selects the built-in rules.
func NewService(summarizer Summarizer, redactor redact.Redactor, logger *zap.Logger) (*Service, error) {
	if summarizer == nil {
		return nil, fmt.Errorf("finalize service requires a summarizer")
	}
	if redactor == nil {
		redactor = redact.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		summarizer: summarizer,
		redactor:   redactor,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		meter:      otel.Meter(meterName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("initializing finalize metrics: %w", err)
	}
	return s, nil
}

// Finalize runs the summarizer. Any failure, including an empty digest,
// returns *Error with a redacted reason.
func (s *Service) Finalize(ctx context.Context, queryText, aggregate string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "finalize.summarize",
		trace.WithAttributes(attribute.Int("aggregate_length", len(aggregate))),
	)
	defer span.End()

	start := time.Now()

	digest, err := s.summarizer.Summarize(ctx, queryText, aggregate)
	if err != nil {
		span.RecordError(err)
		s.finalizeErrors.Add(ctx, 1)
		reason := s.redactor.Redact(err.Error())
		s.logger.Error("finalization failed", zap.String("reason", reason))
		return "", &Error{Reason: reason, Err: err}
	}
	if digest == "" {
		s.finalizeErrors.Add(ctx, 1)
		return "", &Error{Reason: "summarizer returned an empty digest"}
	}

	elapsed := time.Since(start).Seconds()
	s.finalizeCounter.Add(ctx, 1)
	s.finalizeTime.Record(ctx, elapsed)
	span.SetAttributes(
		attribute.Float64("duration_s", elapsed),
		attribute.Int("digest_length", len(digest)),
	)

	return digest, nil
}

func (s *Service) initMetrics() error {
	var err error

	s.finalizeCounter, err = s.meter.Int64Counter(
		"finalize.operations_total",
		metric.WithDescription("Total number of finalization operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("creating finalize counter: %w", err)
	}

	s.finalizeTime, err = s.meter.Float64Histogram(
		"finalize.duration_seconds",
		metric.WithDescription("Time spent finalizing aggregates"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return fmt.Errorf("creating finalize duration histogram: %w", err)
	}

	s.finalizeErrors, err = s.meter.Int64Counter(
		"finalize.errors_total",
		metric.WithDescription("Total number of finalization failures"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("creating finalize errors counter: %w", err)
	}

	return nil
}
