package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

var knownPropagators = map[string]propagation.TextMapPropagator{
	"tracecontext": propagation.TraceContext{},
	"baggage":      propagation.Baggage{},
}

// newPropagator builds a composite propagator from configured names.
func newPropagator(names []string) propagation.TextMapPropagator {
	if len(names) == 0 {
		names = []string{"tracecontext", "baggage"}
	}
	props := make([]propagation.TextMapPropagator, 0, len(names))
	for _, n := range names {
		if p, ok := knownPropagators[n]; ok {
			props = append(props, p)
		}
	}
	return propagation.NewCompositeTextMapPropagator(props...)
}

// newResource creates a resource describing the service.
func newResource(cfg *Config) (*resource.Resource, error) {
	// Standalone resource: resource.Default() carries a different semconv schema URL.
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	), nil
}

// authHeaders returns exporter headers derived from config.
func authHeaders(cfg *Config) map[string]string {
	if !cfg.AuthToken.IsSet() {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + cfg.AuthToken.Value()}
}

func skipVerifyTLS() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true} //nolint:gosec // User explicitly requested
}

// newSpanExporter creates the span exporter for the configured protocol.
func newSpanExporter(ctx context.Context, cfg *Config, stdout io.Writer) (trace.SpanExporter, error) {
	switch cfg.Protocol {
	case ProtocolStdout:
		if stdout == nil {
			stdout = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(stdout), stdouttrace.WithPrettyPrint())
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint)),
		}
		if h := authHeaders(cfg); h != nil {
			opts = append(opts, otlptracehttp.WithHeaders(h))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if h := authHeaders(cfg); h != nil {
			opts = append(opts, otlptracegrpc.WithHeaders(h))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
		}
		return otlptracegrpc.New(ctx, opts...)
	}
}

// newSampler maps the configured rate onto a parent-based sampler.
func newSampler(rate float64) trace.Sampler {
	var sampler trace.Sampler
	switch {
	case rate >= 1.0:
		sampler = trace.AlwaysSample()
	case rate <= 0:
		sampler = trace.NeverSample()
	default:
		sampler = trace.TraceIDRatioBased(rate)
	}
	// Consumers follow the producer's sampling decision carried in the metadata.
	return trace.ParentBased(sampler)
}

// newTracerProvider creates a TracerProvider. exp overrides the configured exporter.
func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource, o *options) (*trace.TracerProvider, error) {
	exporter := o.traceExporter
	if exporter == nil {
		var err error
		exporter, err = newSpanExporter(ctx, cfg, o.stdout)
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
	}

	spanOpt := trace.WithBatcher(exporter)
	if o.syncExport {
		spanOpt = trace.WithSyncer(exporter)
	}

	return trace.NewTracerProvider(
		spanOpt,
		trace.WithResource(res),
		trace.WithSampler(newSampler(cfg.Sampling.Rate)),
	), nil
}

// cumulativeSelector forces cumulative temporality for Prometheus-compatible backends,
// overriding OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE inherited from the environment.
func cumulativeSelector(metric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

// newMetricReader creates the reader for the configured metrics pipeline.
// For the prometheus reader it also returns the registry the exporter registers with.
func newMetricReader(ctx context.Context, cfg *Config) (metric.Reader, *prometheus.Registry, error) {
	if cfg.Metrics.Reader == ReaderPrometheus {
		reg := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		return exporter, reg, nil
	}

	var exporter metric.Exporter
	var err error

	switch cfg.Protocol {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlpmetrichttp.WithTemporalitySelector(cumulativeSelector),
		}
		if h := authHeaders(cfg); h != nil {
			opts = append(opts, otlpmetrichttp.WithHeaders(h))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithTemporalitySelector(cumulativeSelector),
		}
		if h := authHeaders(cfg); h != nil {
			opts = append(opts, otlpmetricgrpc.WithHeaders(h))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	return metric.NewPeriodicReader(exporter,
		metric.WithInterval(cfg.Metrics.ExportInterval.Duration()),
	), nil, nil
}

// newMeterProvider creates a MeterProvider, or nil when metrics are disabled.
func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource, o *options) (*metric.MeterProvider, *prometheus.Registry, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil, nil
	}

	reader := o.metricReader
	var reg *prometheus.Registry
	if reader == nil {
		var err error
		reader, reg, err = newMetricReader(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader),
	), reg, nil
}

// stripScheme removes http:// or https:// from an endpoint URL.
// The OTEL HTTP exporters expect just host:port, not full URLs.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}
