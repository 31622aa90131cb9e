package otelbridge

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// Span wraps one OpenTelemetry span. After End every mutation is a no-op.
type Span struct {
	span   trace.Span
	logger *logging.Logger
	ended  atomic.Bool
}

var _ jobtel.Span = (*Span)(nil)

func newSpan(span trace.Span, logger *logging.Logger) *Span {
	return &Span{span: span, logger: logger}
}

// SetSpanOnContext returns a child of ctx with this span active.
func (s *Span) SetSpanOnContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return trace.ContextWithSpan(ctx, s.span)
}

func (s *Span) SetAttribute(key string, value jobtel.AttributeValue) {
	if s.ended.Load() {
		return
	}
	if kv, ok := keyValue(key, value, s.logger); ok {
		s.span.SetAttributes(kv)
	}
}

// SetAttributes writes attrs in sorted key order.
func (s *Span) SetAttributes(attrs jobtel.Attributes) {
	if s.ended.Load() {
		return
	}
	if kvs := keyValues(attrs, s.logger); len(kvs) > 0 {
		s.span.SetAttributes(kvs...)
	}
}

func (s *Span) AddEvent(name string, attrs jobtel.Attributes, at time.Time) {
	if s.ended.Load() {
		return
	}
	opts := []trace.EventOption{trace.WithAttributes(keyValues(attrs, s.logger)...)}
	if !at.IsZero() {
		opts = append(opts, trace.WithTimestamp(at))
	}
	s.span.AddEvent(name, opts...)
}

// RecordException adds an "exception" event with type, message and stack.
// A nil err is ignored.
func (s *Span) RecordException(err error, at time.Time) {
	if err == nil || s.ended.Load() {
		return
	}
	opts := []trace.EventOption{trace.WithStackTrace(true)}
	if !at.IsZero() {
		opts = append(opts, trace.WithTimestamp(at))
	}
	s.span.RecordError(err, opts...)
}

func (s *Span) SetStatus(code jobtel.StatusCode, description string) {
	if s.ended.Load() {
		return
	}
	s.span.SetStatus(statusCode(code), description)
}

// SpanContext returns the trace and span IDs of the wrapped span.
func (s *Span) SpanContext() trace.SpanContext {
	return s.span.SpanContext()
}

func (s *Span) IsEnded() bool {
	return s.ended.Load()
}

// End ends the span at the current time. Only the first call reaches the backend.
func (s *Span) End() {
	s.EndAt(time.Time{})
}

// EndAt ends the span at t, or now when t is zero.
func (s *Span) EndAt(t time.Time) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	if t.IsZero() {
		s.span.End()
		return
	}
	s.span.End(trace.WithTimestamp(t))
}

func statusCode(c jobtel.StatusCode) codes.Code {
	switch c {
	case jobtel.StatusOK:
		return codes.Ok
	case jobtel.StatusError:
		return codes.Error
	default:
		return codes.Unset
	}
}
