package otelbridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

func newSpyBridge(t *testing.T) (*Telemetry, *spyMeter) {
	t.Helper()
	spy := &spyMeterProvider{MeterProvider: noop.NewMeterProvider()}
	tel := NewWithOptions(Options{EnableMetrics: true}, WithMeterProvider(spy))
	require.Equal(t, int32(1), spy.meterCalls.Load())
	return tel, spy.last.Load()
}

func TestMeter_CounterIdentity(t *testing.T) {
	tel, spy := newSpyBridge(t)

	first, err := tel.Meter().CreateCounter("jobs_completed", nil)
	require.NoError(t, err)
	second, err := tel.Meter().CreateCounter("jobs_completed", &jobtel.MetricOptions{Description: "ignored"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), spy.counterCalls.Load())
}

func TestMeter_KindsCachedSeparately(t *testing.T) {
	tel, spy := newSpyBridge(t)
	m := tel.Meter()

	_, err := m.CreateCounter("queue.depth", nil)
	require.NoError(t, err)
	_, err = m.CreateGauge("queue.depth", nil)
	require.NoError(t, err)
	_, err = m.CreateGauge("queue.depth", nil)
	require.NoError(t, err)
	_, err = m.CreateHistogram("queue.depth", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), spy.counterCalls.Load())
	assert.Equal(t, int32(1), spy.gaugeCalls.Load())
	assert.Equal(t, int32(1), spy.histogramCalls.Load())
}

func TestMeter_ConcurrentCreate(t *testing.T) {
	tel, spy := newSpyBridge(t)

	const workers = 32
	results := make([]jobtel.Histogram, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := tel.Meter().CreateHistogram("bullmq.job.duration", nil)
			assert.NoError(t, err)
			results[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), spy.histogramCalls.Load())
	for _, h := range results[1:] {
		assert.Same(t, results[0], h)
	}
}

func TestMeter_CreationErrorNotCached(t *testing.T) {
	tel, spy := newSpyBridge(t)
	errBackend := errors.New("instrument rejected")
	spy.failNext.Store(&errBackend)

	c, err := tel.Meter().CreateCounter("jobs", nil)
	assert.Same(t, errBackend, err)
	assert.Nil(t, c)

	c, err = tel.Meter().CreateCounter("jobs", nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, int32(2), spy.counterCalls.Load())
}

func TestInstruments_Record(t *testing.T) {
	tel, tt := newTestBridge(Options{EnableMetrics: true})
	ctx := context.Background()
	m := tel.Meter()

	counter, err := m.CreateCounter("bullmq.jobs.completed", &jobtel.MetricOptions{Description: "Completed jobs", Unit: "{job}"})
	require.NoError(t, err)
	counter.Add(ctx, 1, jobtel.Attributes{"bullmq.queue.name": "emails"})
	counter.Add(ctx, 2, jobtel.Attributes{"bullmq.queue.name": "emails"})
	counter.Add(nil, 1, nil) //nolint:staticcheck // nil ctx falls back to Background

	hist, err := m.CreateHistogram("bullmq.job.duration", &jobtel.MetricOptions{Unit: "ms", Buckets: []float64{10, 100, 1000}})
	require.NoError(t, err)
	hist.Record(ctx, 42, nil)

	gauge, err := m.CreateGauge("bullmq.queue.waiting", nil)
	require.NoError(t, err)
	gauge.Record(ctx, 5, nil)
	gauge.Record(ctx, 3, nil)

	assert.Equal(t, 3.0, tt.SumValue(t, "bullmq.jobs.completed", attribute.String("bullmq.queue.name", "emails")))
	assert.Equal(t, 4.0, tt.SumValue(t, "bullmq.jobs.completed"))
	assert.Equal(t, uint64(1), tt.HistogramCount(t, "bullmq.job.duration"))

	h, ok := tt.MetricByName(t, "bullmq.job.duration")
	require.True(t, ok)
	assert.Equal(t, "ms", h.Unit)
	data := h.Data.(metricdata.Histogram[float64])
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, []float64{10, 100, 1000}, data.DataPoints[0].Bounds)

	c, ok := tt.MetricByName(t, "bullmq.jobs.completed")
	require.True(t, ok)
	assert.Equal(t, "Completed jobs", c.Description)

	g, ok := tt.MetricByName(t, "bullmq.queue.waiting")
	require.True(t, ok)
	gd := g.Data.(metricdata.Gauge[float64])
	require.Len(t, gd.DataPoints, 1)
	assert.Equal(t, 3.0, gd.DataPoints[0].Value)
}
