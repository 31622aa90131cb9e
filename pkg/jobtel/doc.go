// Package jobtel defines the telemetry contract a job-processing engine talks to.
//
// # Overview
//
// The engine never imports a tracing or metrics backend. It holds one Telemetry
// value for its lifetime and, at each job lifecycle point, asks it for spans,
// context propagation and (optionally) metric instruments:
//
//   - enqueue: Tracer().StartSpan(..., Producer), ContextManager().GetMetadata(ctx)
//     serialized alongside the job payload
//   - process: ContextManager().FromMetadata(active, metadata), StartSpan(..., Consumer)
//   - complete / fail: Span.AddEvent, Span.RecordException, Span.End
//
// The OpenTelemetry implementation lives in pkg/otelbridge.
//
// # Metrics
//
// Meter() returns nil when metrics are disabled. Callers check for it:
//
//	if m := tel.Meter(); m != nil {
//	    c, err := m.CreateCounter("bullmq.jobs.completed", nil)
//	    ...
//	}
package jobtel
