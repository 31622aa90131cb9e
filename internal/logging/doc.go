// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry logs via otelzap)
//   - Automatic context field injection (trace_id, span_id, job identity)
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithJob(ctx, logging.Job{ID: id, Name: "send-email", Queue: "mail"})
//	logger.Info(ctx, "job completed", zap.Duration("duration", d))
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2026-10-18T10:15:30Z",
//	  "level": "info",
//	  "msg": "job completed",
//	  "trace_id": "4bf92f3577b34da6a3ce929d0e0e4736",
//	  "span_id": "00f067aa0ba902b7",
//	  "job.name": "send-email",
//	  "duration": "45ms"
//	}
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "job completed")
//	tl.AssertTraceCorrelation(t, "job completed")
package logging
