// Package otelbridge implements the jobtel contract on OpenTelemetry.
//
// # Construction
//
// Two shapes are accepted and normalized by Normalize:
//
//	tel := otelbridge.New("svc", "1.0") // tracer "svc", version "1.0", no metrics
//
//	tel := otelbridge.NewWithOptions(otelbridge.Options{
//	    TracerName:    "svc",
//	    Version:       "2.0",
//	    EnableMetrics: true,
//	}, otelbridge.WithTracerProvider(tp), otelbridge.WithMeterProvider(mp))
//
// Without backend options the OTel global providers are used.
//
// # Context propagation
//
// GetMetadata encodes a context as a JSON object of propagator fields, for
// example {"traceparent":"00-..."}. FromMetadata reverses it; metadata that
// is present but cannot be decoded returns jobtel.ErrMalformedMetadata so a
// corrupt header is never mistaken for "no parent".
//
// The ContextManager keeps its own stack of active contexts. With pushes a
// scope and always pops exactly that scope, including on panic.
//
// # Metrics
//
// Instruments are float64 and cached per kind by name. The first
// registration's options win.
package otelbridge
