package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestMetrics_RecordInvocation(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := &Metrics{
		meter:  mp.Meter(instrumentationName),
		logger: zap.NewNop(),
	}
	m.init()

	ctx := context.Background()

	m.RecordInvocation(ctx, "gather_context", 100*time.Millisecond, nil)
	m.RecordInvocation(ctx, "gather_context", 50*time.Millisecond, errors.New("invalid query"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected scope metrics, got none")
	}

	foundInvocations := false
	foundDuration := false
	foundErrors := false

	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch md.Name {
			case "gatherd.mcp.tool.invocations_total":
				foundInvocations = true
				if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
					total := int64(0)
					for _, dp := range sum.DataPoints {
						total += dp.Value
					}
					if total != 2 {
						t.Errorf("expected 2 invocations, got %d", total)
					}
				}
			case "gatherd.mcp.tool.duration_seconds":
				foundDuration = true
			case "gatherd.mcp.tool.errors_total":
				foundErrors = true
				if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
					total := int64(0)
					for _, dp := range sum.DataPoints {
						total += dp.Value
					}
					if total != 1 {
						t.Errorf("expected 1 error, got %d", total)
					}
				}
			}
		}
	}

	if !foundInvocations {
		t.Error("invocations counter not found")
	}
	if !foundDuration {
		t.Error("duration histogram not found")
	}
	if !foundErrors {
		t.Error("errors counter not found")
	}
}

func TestMetrics_ActiveRequests(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := &Metrics{
		meter:  mp.Meter(instrumentationName),
		logger: zap.NewNop(),
	}
	m.init()

	ctx := context.Background()

	m.IncrementActive(ctx, "gather_context")
	m.IncrementActive(ctx, "gather_context")
	m.DecrementActive(ctx, "gather_context")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name == "gatherd.mcp.tool.active_requests" {
				if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
					total := int64(0)
					for _, dp := range sum.DataPoints {
						total += dp.Value
					}
					if total != 1 {
						t.Errorf("expected 1 active request, got %d", total)
					}
				}
				return
			}
		}
	}
	t.Error("active_requests metric not found")
}
