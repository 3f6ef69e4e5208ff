package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordApply(context.Context, bool, time.Duration)            {}
func (NoopMetrics) RecordEdgeOperation(context.Context, string, error)          {}
func (NoopMetrics) RecordUpsert(context.Context, string, string, time.Duration) {}
func (NoopMetrics) RecordLockWait(context.Context, string, time.Duration)       {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartApplySpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartApplySpan(ctx context.Context, _ string, _ uint64) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartUpsertSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartUpsertSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) EndSpanWithError(trace.Span, error)                          {}
func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}
