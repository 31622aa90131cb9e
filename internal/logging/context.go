// internal/logging/context.go
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if job := JobFromContext(ctx); job != nil {
		fields = append(fields,
			zap.String("job.id", job.ID),
			zap.String("job.name", job.Name),
			zap.String("job.queue", job.Queue),
		)
	}

	return fields
}

type jobCtxKey struct{}

// Job identifies the job a log line belongs to.
type Job struct {
	ID    string
	Name  string
	Queue string
}

// WithJob adds job identity to context.
func WithJob(ctx context.Context, job Job) context.Context {
	return context.WithValue(ctx, jobCtxKey{}, &job)
}

// JobFromContext extracts job identity from context.
func JobFromContext(ctx context.Context) *Job {
	if j, ok := ctx.Value(jobCtxKey{}).(*Job); ok {
		return j
	}
	return nil
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
