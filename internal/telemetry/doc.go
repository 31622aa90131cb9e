// Package telemetry bootstraps the OpenTelemetry SDK behind the bullmq-otel bridge.
//
// # Usage
//
//	cfg := telemetry.NewDefaultConfig()
//	cfg.Enabled = true
//	tel, err := telemetry.New(ctx, cfg, telemetry.WithGlobals())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	bridge := otelbridge.NewWithOptions(otelbridge.Options{TracerName: "worker"},
//	    otelbridge.WithTracerProvider(tel.TracerProvider()),
//	    otelbridge.WithMeterProvider(tel.MeterProvider()),
//	    otelbridge.WithPropagator(tel.Propagator()),
//	)
//
// # Exporters
//
// Traces go to an OTLP collector over gRPC (default) or HTTP, or to stdout
// when protocol is "stdout". Metrics use a periodic OTLP reader, or a pull
// based Prometheus reader served by MetricsHandler.
//
// # Graceful Degradation
//
// If a provider cannot be created, New still returns a usable instance that
// falls back to the OTel globals and reports Degraded in Health.
//
// # Testing
//
// NewTestTelemetry records spans and metrics in memory without touching the
// OTel globals.
package telemetry
