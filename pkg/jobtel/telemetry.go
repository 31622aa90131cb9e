package jobtel

import (
	"context"
	"time"
)

// Telemetry is the single value a job engine receives.
type Telemetry interface {
	Tracer() Tracer
	ContextManager() ContextManager
	// Meter returns nil when metrics are not enabled.
	Meter() Meter
}

// ContextManager threads trace context through execution and across
// process boundaries.
type ContextManager interface {
	// Active returns the context currently in scope.
	Active() context.Context

	// With runs fn inline with ctx installed as the active context and
	// restores the previous one when fn returns, errors or panics.
	With(ctx context.Context, fn func(context.Context) error) error

	// GetMetadata serializes ctx into a transport-safe string.
	GetMetadata(ctx context.Context) (string, error)

	// FromMetadata deserializes metadata produced by GetMetadata relative
	// to activeCtx. Malformed metadata yields ErrMalformedMetadata.
	FromMetadata(activeCtx context.Context, metadata string) (context.Context, error)
}

// Tracer starts spans.
type Tracer interface {
	// StartSpan starts a span named name. A nil parent means the
	// ContextManager's active context.
	StartSpan(name string, opts *SpanOptions, parent context.Context) Span
}

// Span is one traced unit of work.
type Span interface {
	SetSpanOnContext(ctx context.Context) context.Context
	SetAttribute(key string, value AttributeValue)
	SetAttributes(attrs Attributes)
	// AddEvent records a named event. A zero at means now.
	AddEvent(name string, attrs Attributes, at time.Time)
	// RecordException attaches err as an exception event. A zero at means now.
	RecordException(err error, at time.Time)
	SetStatus(code StatusCode, description string)
	// End finalizes the span. Calls after the first are no-ops.
	End()
}

// SpanKind describes the relationship of a span to its parent and children.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// String returns the lower-case kind name.
func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	case SpanKindProducer:
		return "producer"
	case SpanKindConsumer:
		return "consumer"
	default:
		return "internal"
	}
}

// StatusCode is the outcome of a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Link points a new span at a span carried in another context.
type Link struct {
	Context    context.Context
	Attributes Attributes
}

// SpanOptions are creation options passed through to the backend.
type SpanOptions struct {
	Kind       SpanKind
	Attributes Attributes
	Links      []Link
	StartTime  time.Time
}

// Meter creates metric instruments. Repeated creation under one name returns
// the same instrument.
type Meter interface {
	CreateCounter(name string, opts *MetricOptions) (Counter, error)
	CreateHistogram(name string, opts *MetricOptions) (Histogram, error)
	CreateGauge(name string, opts *MetricOptions) (Gauge, error)
}

// MetricOptions configure an instrument on first registration.
type MetricOptions struct {
	Description string
	Unit        string
	// Buckets are explicit histogram boundaries. Ignored by other kinds.
	Buckets []float64
}

// Counter is a monotonically increasing measurement channel.
type Counter interface {
	// Add adds value, which must be non-negative.
	Add(ctx context.Context, value float64, attrs Attributes)
}

// Histogram records a distribution of values.
type Histogram interface {
	Record(ctx context.Context, value float64, attrs Attributes)
}

// Gauge records the current value of something.
type Gauge interface {
	Record(ctx context.Context, value float64, attrs Attributes)
}
