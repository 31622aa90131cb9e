package otelbridge

import (
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/bullmq-otel/internal/telemetry"
)

// newTestBridge builds a bridge on in-memory providers.
func newTestBridge(opts Options, extra ...Option) (*Telemetry, *telemetry.TestTelemetry) {
	tt := telemetry.NewTestTelemetry()
	backend := append([]Option{
		WithTracerProvider(tt.TracerProvider()),
		WithMeterProvider(tt.MeterProvider()),
		WithPropagator(tt.Propagator()),
	}, extra...)
	return NewWithOptions(opts, backend...), tt
}

// spyMeterProvider counts Meter requests and wraps each meter in a spy.
type spyMeterProvider struct {
	metric.MeterProvider
	meterCalls atomic.Int32
	last       atomic.Pointer[spyMeter]
}

func (p *spyMeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	p.meterCalls.Add(1)
	m := &spyMeter{Meter: p.MeterProvider.Meter(name, opts...)}
	p.last.Store(m)
	return m
}

// spyMeter counts instrument creations. failNext makes the next creation
// fail once.
type spyMeter struct {
	metric.Meter
	counterCalls   atomic.Int32
	histogramCalls atomic.Int32
	gaugeCalls     atomic.Int32
	failNext       atomic.Pointer[error]
}

func (m *spyMeter) fail() error {
	if p := m.failNext.Swap(nil); p != nil {
		return *p
	}
	return nil
}

func (m *spyMeter) Float64Counter(name string, opts ...metric.Float64CounterOption) (metric.Float64Counter, error) {
	m.counterCalls.Add(1)
	if err := m.fail(); err != nil {
		return nil, err
	}
	return m.Meter.Float64Counter(name, opts...)
}

func (m *spyMeter) Float64Histogram(name string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	m.histogramCalls.Add(1)
	if err := m.fail(); err != nil {
		return nil, err
	}
	return m.Meter.Float64Histogram(name, opts...)
}

func (m *spyMeter) Float64Gauge(name string, opts ...metric.Float64GaugeOption) (metric.Float64Gauge, error) {
	m.gaugeCalls.Add(1)
	if err := m.fail(); err != nil {
		return nil, err
	}
	return m.Meter.Float64Gauge(name, opts...)
}
