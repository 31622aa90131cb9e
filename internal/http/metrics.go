package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// HTTP metric names.
const (
	MetricRequests       = "bullmq_otel.http.requests"
	MetricRequestSeconds = "bullmq_otel.http.request_duration"
	MetricActiveRequests = "bullmq_otel.http.active_requests"
)

// HTTPMetrics records request metrics through a jobtel.Meter. A nil
// meter yields a middleware that records nothing.
type HTTPMetrics struct {
	requestsTotal  jobtel.Counter
	requestDur     jobtel.Histogram
	activeRequests jobtel.Gauge
	active         atomic.Int64
	mu             sync.Mutex
}

// NewHTTPMetrics registers the HTTP instruments on m.
func NewHTTPMetrics(m jobtel.Meter) (*HTTPMetrics, error) {
	h := &HTTPMetrics{}
	if m == nil {
		return h, nil
	}

	var err error
	h.requestsTotal, err = m.CreateCounter(MetricRequests, &jobtel.MetricOptions{
		Description: "HTTP requests by method, endpoint and status",
		Unit:        "{request}",
	})
	if err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}

	h.requestDur, err = m.CreateHistogram(MetricRequestSeconds, &jobtel.MetricOptions{
		Description: "HTTP request duration",
		Unit:        "s",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	h.activeRequests, err = m.CreateGauge(MetricActiveRequests, &jobtel.MetricOptions{
		Description: "HTTP requests in flight",
		Unit:        "{request}",
	})
	if err != nil {
		return nil, fmt.Errorf("create active requests gauge: %w", err)
	}

	return h, nil
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
// A panicking handler is recorded as a 500 and the panic is re-raised for
// the Recover middleware.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			if m.requestsTotal == nil {
				return next(c)
			}

			start := time.Now()
			ctx := c.Request().Context()
			m.trackActive(ctx, 1)

			defer func() {
				r := recover()
				status := c.Response().Status
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
				if r != nil {
					status = http.StatusInternalServerError
				}
				attrs := jobtel.Attributes{
					"method":   c.Request().Method,
					"endpoint": normalizePath(c.Path()),
					"status":   status,
				}

				m.requestsTotal.Add(ctx, 1, attrs)
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
				m.trackActive(ctx, -1)

				if r != nil {
					panic(r)
				}
			}()

			return next(c)
		}
	}
}

// trackActive adjusts the in-flight count and records it. Holding mu keeps
// gauge records in the same order as the count changes.
func (m *HTTPMetrics) trackActive(ctx context.Context, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeRequests.Record(ctx, float64(m.active.Add(delta)), nil)
}

// normalizePath returns the route template, which already has parameters
// as placeholders, so unmatched requests collapse to "/".
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
