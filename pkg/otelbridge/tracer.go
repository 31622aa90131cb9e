package otelbridge

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// Tracer starts Spans on an OpenTelemetry tracer.
type Tracer struct {
	tracer trace.Tracer
	cm     *ContextManager
	logger *logging.Logger
}

var _ jobtel.Tracer = (*Tracer)(nil)

// StartSpan starts a span under parent, or under the active context when
// parent is nil. opts are passed through unchanged.
func (t *Tracer) StartSpan(name string, opts *jobtel.SpanOptions, parent context.Context) jobtel.Span {
	if parent == nil {
		parent = t.cm.Active()
	}
	_, span := t.tracer.Start(parent, name, t.startOptions(opts)...)
	return newSpan(span, t.logger)
}

func (t *Tracer) startOptions(opts *jobtel.SpanOptions) []trace.SpanStartOption {
	if opts == nil {
		return nil
	}
	out := []trace.SpanStartOption{trace.WithSpanKind(spanKind(opts.Kind))}
	if kvs := keyValues(opts.Attributes, t.logger); len(kvs) > 0 {
		out = append(out, trace.WithAttributes(kvs...))
	}
	if len(opts.Links) > 0 {
		links := make([]trace.Link, 0, len(opts.Links))
		for _, l := range opts.Links {
			if l.Context == nil {
				continue
			}
			links = append(links, trace.Link{
				SpanContext: trace.SpanContextFromContext(l.Context),
				Attributes:  keyValues(l.Attributes, t.logger),
			})
		}
		out = append(out, trace.WithLinks(links...))
	}
	if !opts.StartTime.IsZero() {
		out = append(out, trace.WithTimestamp(opts.StartTime))
	}
	return out
}

func spanKind(k jobtel.SpanKind) trace.SpanKind {
	switch k {
	case jobtel.SpanKindServer:
		return trace.SpanKindServer
	case jobtel.SpanKindClient:
		return trace.SpanKindClient
	case jobtel.SpanKindProducer:
		return trace.SpanKindProducer
	case jobtel.SpanKindConsumer:
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindInternal
	}
}
