package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs an in-memory span exporter for one test.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("livegraph")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		tracer = otel.Tracer("livegraph")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartApplySpan(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartApplySpan(context.Background(), "apply-1", 7)
	sm.AddSpanEvent(ctx, "step", attribute.String("name", "nodes.add"))
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "livegraph.apply", s.Name)
	attrs := attrMap(s.Attributes)
	assert.Equal(t, "apply-1", attrs["apply.id"].AsString())
	assert.Equal(t, int64(7), attrs["graph.version"].AsInt64())
	assert.Equal(t, codes.Ok, s.Status.Code)
	require.Len(t, s.Events, 1)
	assert.Equal(t, "step", s.Events[0].Name)
}

func TestStartUpsertSpan_Error(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	_, span := sm.StartUpsertSpan(context.Background(), "main")
	sm.EndSpanWithError(span, errors.New("conflict"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "livegraph.upsert", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "conflict", spans[0].Status.Description)
}

// TestAddSpanEvent_NoSpan verifies events without a recording span are dropped.
func TestAddSpanEvent_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		AddSpanEvent(context.Background(), "nothing")
		EndSpanWithError(nil, nil)
	})
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	got, span := sm.StartApplySpan(ctx, "a", 1)
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())

	got, span = sm.StartUpsertSpan(ctx, "g")
	assert.Equal(t, ctx, got)
	sm.EndSpanWithError(span, errors.New("x"))
	sm.AddSpanEvent(ctx, "e")
}
