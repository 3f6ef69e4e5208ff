package livegraph

import (
	"log/slog"

	"github.com/randalmurphal/livegraph/pkg/livegraph/events"
	"github.com/randalmurphal/livegraph/pkg/livegraph/journal"
	"github.com/randalmurphal/livegraph/pkg/livegraph/observability"
)

// runtimeConfig holds Runtime settings.
type runtimeConfig struct {
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	bus       events.Bus
	journal   journal.Store
	shared    map[string]any
	queueSize int
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		queueSize: 64,
	}
}

// Option configures a Runtime.
type Option func(*runtimeConfig)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *runtimeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables metrics recording.
//
// Example:
//
//	rt := livegraph.New(templates, livegraph.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *runtimeConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans around each apply.
func WithTracing(enabled bool) Option {
	return func(c *runtimeConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithEventBus publishes node status changes and completed applies on bus.
func WithEventBus(bus events.Bus) Option {
	return func(c *runtimeConfig) { c.bus = bus }
}

// WithJournal records every apply in store.
func WithJournal(store journal.Store) Option {
	return func(c *runtimeConfig) { c.journal = store }
}

// WithSharedDependencies sets the map exposed as FactoryContext.Shared.
func WithSharedDependencies(deps map[string]any) Option {
	return func(c *runtimeConfig) { c.shared = deps }
}

// WithQueueSize sets how many calls may wait behind the running one before
// callers block. Default: 64
func WithQueueSize(n int) Option {
	return func(c *runtimeConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}
