package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
)

// Telemetry owns the SDK providers that back the bridge.
//
// It manages TracerProvider, MeterProvider, the propagator and graceful shutdown.
// Provider failures do not fail New; the instance degrades to the OTel globals.
type Telemetry struct {
	config *Config
	logger *logging.Logger

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	propagator     propagation.TextMapPropagator
	promRegistry   *prometheus.Registry
	logProvider    log.LoggerProvider

	healthy  atomic.Bool
	degraded atomic.Bool
}

// Option configures New.
type Option func(*options)

type options struct {
	traceExporter trace.SpanExporter
	metricReader  sdkmetric.Reader
	stdout        io.Writer
	syncExport    bool
	setGlobals    bool
	logger        *logging.Logger
}

// WithTraceExporter overrides the configured span exporter.
func WithTraceExporter(exp trace.SpanExporter) Option {
	return func(o *options) { o.traceExporter = exp }
}

// WithMetricReader overrides the configured metric reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricReader = r }
}

// WithStdout sets the writer used by the stdout exporter.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithSyncExport exports each span as it ends instead of batching.
// Short-lived processes such as the demo command use it.
func WithSyncExport() Option {
	return func(o *options) { o.syncExport = true }
}

// WithGlobals installs the providers and propagator as OTel globals.
func WithGlobals() Option {
	return func(o *options) { o.setGlobals = true }
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a Telemetry instance and initializes providers.
//
// If telemetry is disabled in config, returns an instance that hands out the
// OTel global providers. Provider initialization errors are logged and mark
// the instance degraded rather than failing.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}

	t := &Telemetry{
		config:     cfg,
		logger:     o.logger,
		propagator: newPropagator(cfg.Propagators),
	}
	t.healthy.Store(true)

	if !cfg.Enabled {
		return t, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		t.setDegraded(ctx, "resource creation failed", err)
		return t, nil
	}

	tp, err := newTracerProvider(ctx, cfg, res, o)
	if err != nil {
		t.setDegraded(ctx, "tracer provider failed", err)
	} else {
		t.tracerProvider = tp
	}

	mp, reg, err := newMeterProvider(ctx, cfg, res, o)
	if err != nil {
		t.setDegraded(ctx, "meter provider failed", err)
	} else if mp != nil {
		t.meterProvider = mp
		t.promRegistry = reg
	}

	if o.setGlobals {
		t.InstallGlobals()
	}

	return t, nil
}

// InstallGlobals registers the providers and propagator as OTel globals.
func (t *Telemetry) InstallGlobals() {
	if t == nil {
		return
	}
	if t.tracerProvider != nil {
		otel.SetTracerProvider(t.tracerProvider)
	}
	if t.meterProvider != nil {
		otel.SetMeterProvider(t.meterProvider)
	}
	otel.SetTextMapPropagator(t.propagator)
}

// TracerProvider returns the SDK provider, or the global one if telemetry
// is disabled or degraded.
func (t *Telemetry) TracerProvider() oteltrace.TracerProvider {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider()
	}
	return t.tracerProvider
}

// MeterProvider returns the SDK provider, or the global one if telemetry
// or metrics are disabled.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return t.meterProvider
}

// Propagator returns the configured propagator.
func (t *Telemetry) Propagator() propagation.TextMapPropagator {
	if t == nil || t.propagator == nil {
		return otel.GetTextMapPropagator()
	}
	return t.propagator
}

// LoggerProvider returns the log provider for the zap OTEL bridge, or nil.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.logProvider
}

// SetLoggerProvider sets the log provider handed to logging.NewLogger.
func (t *Telemetry) SetLoggerProvider(lp log.LoggerProvider) {
	if t == nil {
		return
	}
	t.logProvider = lp
}

// Tracer returns a tracer for the given instrumentation scope.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	return t.TracerProvider().Tracer(name, opts...)
}

// Meter returns a meter for the given instrumentation scope.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return t.MeterProvider().Meter(name, opts...)
}

// MetricsHandler serves the Prometheus registry when metrics.reader is
// prometheus, and the default Prometheus registry otherwise.
func (t *Telemetry) MetricsHandler() http.Handler {
	if t == nil || t.promRegistry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(t.promRegistry, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus registry backing MetricsHandler.
func (t *Telemetry) Gatherer() prometheus.Gatherer {
	if t == nil || t.promRegistry == nil {
		return prometheus.DefaultGatherer
	}
	return t.promRegistry
}

// Shutdown flushes and stops all providers.
//
// Uses the shutdown timeout from config when ctx has no deadline.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
		defer cancel()
	}

	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	t.healthy.Store(false)
	return errors.Join(errs...)
}

// ForceFlush immediately exports all pending telemetry data.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace flush: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter flush: %w", err))
		}
	}

	return errors.Join(errs...)
}

// HealthStatus reports provider health.
type HealthStatus struct {
	Healthy  bool `json:"healthy"`
	Degraded bool `json:"degraded"`
}

// Health returns the current telemetry health status.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Healthy: false, Degraded: true}
	}
	return HealthStatus{
		Healthy:  t.healthy.Load(),
		Degraded: t.degraded.Load(),
	}
}

// IsEnabled returns true if telemetry is enabled and healthy.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil {
		return false
	}
	return t.config.Enabled && t.healthy.Load()
}

// setDegraded marks telemetry as degraded due to an error.
func (t *Telemetry) setDegraded(ctx context.Context, msg string, err error) {
	t.degraded.Store(true)
	t.logger.Warn(ctx, "telemetry degraded: "+msg, zap.Error(err))
}
