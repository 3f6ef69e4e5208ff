package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records livegraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordApply records a completed or failed reconcile.
	RecordApply(ctx context.Context, success bool, duration time.Duration)

	// RecordEdgeOperation records an edge create or reversal.
	RecordEdgeOperation(ctx context.Context, op string, err error)

	// RecordUpsert records a store upsert outcome. code is empty on success.
	RecordUpsert(ctx context.Context, name string, code string, duration time.Duration)

	// RecordLockWait records how long an upsert waited for its lock.
	RecordLockWait(ctx context.Context, name string, wait time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	applies       metric.Int64Counter
	applyLatency  metric.Float64Histogram
	edgeOps       metric.Int64Counter
	edgeErrors    metric.Int64Counter
	upserts       metric.Int64Counter
	upsertLatency metric.Float64Histogram
	lockWait      metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("livegraph")

	applies, err := meter.Int64Counter("livegraph.apply.count",
		metric.WithDescription("Number of graph applies"),
	)
	if err != nil {
		return nil, err
	}

	applyLatency, err := meter.Float64Histogram("livegraph.apply.latency_ms",
		metric.WithDescription("Graph apply latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	edgeOps, err := meter.Int64Counter("livegraph.edge.operations",
		metric.WithDescription("Number of edge create and reversal calls"),
	)
	if err != nil {
		return nil, err
	}

	edgeErrors, err := meter.Int64Counter("livegraph.edge.errors",
		metric.WithDescription("Number of failed edge operations"),
	)
	if err != nil {
		return nil, err
	}

	upserts, err := meter.Int64Counter("livegraph.store.upserts",
		metric.WithDescription("Number of graph document upserts"),
	)
	if err != nil {
		return nil, err
	}

	upsertLatency, err := meter.Float64Histogram("livegraph.store.upsert_latency_ms",
		metric.WithDescription("Upsert latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	lockWait, err := meter.Float64Histogram("livegraph.store.lock_wait_ms",
		metric.WithDescription("Time spent waiting for a graph lock"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		applies:       applies,
		applyLatency:  applyLatency,
		edgeOps:       edgeOps,
		edgeErrors:    edgeErrors,
		upserts:       upserts,
		upsertLatency: upsertLatency,
		lockWait:      lockWait,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordApply records a graph apply.
func (m *otelMetrics) RecordApply(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.applies.Add(ctx, 1, attrs)
	m.applyLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordEdgeOperation records an edge operation.
func (m *otelMetrics) RecordEdgeOperation(ctx context.Context, op string, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", op))
	m.edgeOps.Add(ctx, 1, attrs)
	if err != nil {
		m.edgeErrors.Add(ctx, 1, attrs)
	}
}

// RecordUpsert records an upsert.
func (m *otelMetrics) RecordUpsert(ctx context.Context, name string, code string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("graph", name),
		attribute.Bool("success", code == ""),
		attribute.String("code", code),
	)
	m.upserts.Add(ctx, 1, attrs)
	m.upsertLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordLockWait records a lock wait.
func (m *otelMetrics) RecordLockWait(ctx context.Context, name string, wait time.Duration) {
	m.lockWait.Record(ctx, float64(wait.Milliseconds()),
		metric.WithAttributes(attribute.String("graph", name)))
}
