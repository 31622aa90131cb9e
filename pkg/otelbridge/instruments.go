package otelbridge

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// Counter wraps a Float64Counter. Negative values go to the backend
// unchecked.
type Counter struct {
	inst   metric.Float64Counter
	logger *logging.Logger
}

func (c *Counter) Add(ctx context.Context, value float64, attrs jobtel.Attributes) {
	c.inst.Add(orBackground(ctx), value, metric.WithAttributes(keyValues(attrs, c.logger)...))
}

// Histogram wraps a Float64Histogram.
type Histogram struct {
	inst   metric.Float64Histogram
	logger *logging.Logger
}

func (h *Histogram) Record(ctx context.Context, value float64, attrs jobtel.Attributes) {
	h.inst.Record(orBackground(ctx), value, metric.WithAttributes(keyValues(attrs, h.logger)...))
}

// Gauge wraps a Float64Gauge.
type Gauge struct {
	inst   metric.Float64Gauge
	logger *logging.Logger
}

func (g *Gauge) Record(ctx context.Context, value float64, attrs jobtel.Attributes) {
	g.inst.Record(orBackground(ctx), value, metric.WithAttributes(keyValues(attrs, g.logger)...))
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
