package otelbridge

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// Meter creates float64 instruments and caches them per kind by name.
//
// The first registration of a name wins; options passed on later calls are
// ignored. A backend creation error is returned as is and nothing is cached.
type Meter struct {
	meter   metric.Meter
	name    string
	version string
	logger  *logging.Logger

	mu         sync.RWMutex
	counters   map[string]*Counter
	histograms map[string]*Histogram
	gauges     map[string]*Gauge
}

var _ jobtel.Meter = (*Meter)(nil)

func newMeter(m metric.Meter, name, version string, logger *logging.Logger) *Meter {
	return &Meter{
		meter:      m,
		name:       name,
		version:    version,
		logger:     logger,
		counters:   make(map[string]*Counter),
		histograms: make(map[string]*Histogram),
		gauges:     make(map[string]*Gauge),
	}
}

// Name returns the instrumentation scope name.
func (m *Meter) Name() string { return m.name }

// Version returns the instrumentation scope version.
func (m *Meter) Version() string { return m.version }

func (m *Meter) CreateCounter(name string, opts *jobtel.MetricOptions) (jobtel.Counter, error) {
	c, err := getOrCreate(&m.mu, m.counters, name, func() (*Counter, error) {
		inst, err := m.meter.Float64Counter(name, counterOptions(opts)...)
		if err != nil {
			return nil, err
		}
		m.created("counter", name)
		return &Counter{inst: inst, logger: m.logger}, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Meter) CreateHistogram(name string, opts *jobtel.MetricOptions) (jobtel.Histogram, error) {
	h, err := getOrCreate(&m.mu, m.histograms, name, func() (*Histogram, error) {
		inst, err := m.meter.Float64Histogram(name, histogramOptions(opts)...)
		if err != nil {
			return nil, err
		}
		m.created("histogram", name)
		return &Histogram{inst: inst, logger: m.logger}, nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (m *Meter) CreateGauge(name string, opts *jobtel.MetricOptions) (jobtel.Gauge, error) {
	g, err := getOrCreate(&m.mu, m.gauges, name, func() (*Gauge, error) {
		inst, err := m.meter.Float64Gauge(name, gaugeOptions(opts)...)
		if err != nil {
			return nil, err
		}
		m.created("gauge", name)
		return &Gauge{inst: inst, logger: m.logger}, nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (m *Meter) created(kind, name string) {
	m.logger.Debug(context.Background(), "created instrument",
		zap.String("kind", kind),
		zap.String("name", name),
		zap.String("meter", m.name),
	)
}

// getOrCreate returns cache[name], creating it under the write lock when
// absent. create runs at most once per name unless it fails.
func getOrCreate[T any](mu *sync.RWMutex, cache map[string]T, name string, create func() (T, error)) (T, error) {
	mu.RLock()
	v, ok := cache[name]
	mu.RUnlock()
	if ok {
		return v, nil
	}

	mu.Lock()
	defer mu.Unlock()
	if v, ok := cache[name]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		return v, err
	}
	cache[name] = v
	return v, nil
}

func counterOptions(opts *jobtel.MetricOptions) []metric.Float64CounterOption {
	if opts == nil {
		return nil
	}
	var out []metric.Float64CounterOption
	if opts.Description != "" {
		out = append(out, metric.WithDescription(opts.Description))
	}
	if opts.Unit != "" {
		out = append(out, metric.WithUnit(opts.Unit))
	}
	return out
}

func histogramOptions(opts *jobtel.MetricOptions) []metric.Float64HistogramOption {
	if opts == nil {
		return nil
	}
	var out []metric.Float64HistogramOption
	if opts.Description != "" {
		out = append(out, metric.WithDescription(opts.Description))
	}
	if opts.Unit != "" {
		out = append(out, metric.WithUnit(opts.Unit))
	}
	if len(opts.Buckets) > 0 {
		out = append(out, metric.WithExplicitBucketBoundaries(opts.Buckets...))
	}
	return out
}

func gaugeOptions(opts *jobtel.MetricOptions) []metric.Float64GaugeOption {
	if opts == nil {
		return nil
	}
	var out []metric.Float64GaugeOption
	if opts.Description != "" {
		out = append(out, metric.WithDescription(opts.Description))
	}
	if opts.Unit != "" {
		out = append(out, metric.WithUnit(opts.Unit))
	}
	return out
}
