// Package natsjob moves jobs over NATS with their trace context.
//
// A Producer wraps each publish in a "<queue> add" producer span and writes
// the span's metadata into the Envelope. A Worker restores that context,
// runs the handler under a "<queue> process" consumer span, and records
// completion or failure on the span and in the bullmq.* metrics.
//
// Both are written against the jobtel interfaces; pass an otelbridge
// Telemetry to back them with OpenTelemetry.
package natsjob
