package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a notification published on a Bus.
// Events are immutable once created.
type Event interface {
	ID() string
	Type() string
	// Source is the node id, or "runtime" for runtime-level events.
	Source() string
	// CorrelationID groups events raised by the same apply.
	CorrelationID() string
	Timestamp() time.Time
	Data() any
}

// Metadata contains common event metadata fields.
type Metadata struct {
	EventID       string    `json:"id"`
	EventType     string    `json:"type"`
	EventSource   string    `json:"source"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// BaseEvent is the generic Event implementation. T is the payload type.
type BaseEvent[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`
}

func (e *BaseEvent[T]) ID() string            { return e.Meta.EventID }
func (e *BaseEvent[T]) Type() string          { return e.Meta.EventType }
func (e *BaseEvent[T]) Source() string        { return e.Meta.EventSource }
func (e *BaseEvent[T]) CorrelationID() string { return e.Meta.CorrelationID }
func (e *BaseEvent[T]) Timestamp() time.Time  { return e.Meta.Timestamp }
func (e *BaseEvent[T]) Data() any             { return e.Payload }

// TypedData returns the strongly-typed payload.
func (e *BaseEvent[T]) TypedData() T {
	return e.Payload
}

// Option configures event creation.
type Option func(*Metadata)

// WithEventID sets a specific event ID (default: random UUID).
func WithEventID(id string) Option {
	return func(m *Metadata) { m.EventID = id }
}

// WithCorrelationID sets the correlation ID.
func WithCorrelationID(id string) Option {
	return func(m *Metadata) { m.CorrelationID = id }
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(m *Metadata) { m.Timestamp = t }
}

// New creates an event with the given type, source, and payload.
func New[T any](eventType, source string, payload T, opts ...Option) *BaseEvent[T] {
	meta := Metadata{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		EventSource: source,
		Timestamp:   time.Now(),
	}
	for _, opt := range opts {
		opt(&meta)
	}
	return &BaseEvent[T]{Meta: meta, Payload: payload}
}

// Handler processes delivered events.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}
