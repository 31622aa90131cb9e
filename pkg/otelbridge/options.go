package otelbridge

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
)

// Option selects the OpenTelemetry backend a Telemetry is built on.
type Option func(*backend)

type backend struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagator     propagation.TextMapPropagator
	logger         *logging.Logger
	root           context.Context
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *backend) { b.tracerProvider = tp }
}

// WithMeterProvider uses mp instead of the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(b *backend) { b.meterProvider = mp }
}

// WithPropagator uses p to build and read metadata.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(b *backend) { b.propagator = p }
}

// WithLogger sets the logger for dropped attributes, instrument creation
// and malformed metadata.
func WithLogger(l *logging.Logger) Option {
	return func(b *backend) { b.logger = l }
}

// WithRootContext sets the context Active returns when no scope is open.
func WithRootContext(ctx context.Context) Option {
	return func(b *backend) { b.root = ctx }
}

func newBackend(opts []Option) *backend {
	b := &backend{}
	for _, opt := range opts {
		opt(b)
	}
	if b.tracerProvider == nil {
		b.tracerProvider = otel.GetTracerProvider()
	}
	if b.propagator == nil {
		b.propagator = defaultPropagator()
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	if b.root == nil {
		b.root = context.Background()
	}
	return b
}

// defaultPropagator returns the global propagator, or W3C trace context
// plus baggage when no global one has been installed.
func defaultPropagator() propagation.TextMapPropagator {
	if p := otel.GetTextMapPropagator(); len(p.Fields()) > 0 {
		return p
	}
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

// meterProviderOrGlobal resolves the meter provider. It is only called when
// metrics are enabled.
func (b *backend) meterProviderOrGlobal() metric.MeterProvider {
	if b.meterProvider != nil {
		return b.meterProvider
	}
	return otel.GetMeterProvider()
}
