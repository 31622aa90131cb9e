package otelbridge

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// Telemetry is the value handed to the job engine. The tracer and context
// manager always exist; the meter exists only when metrics are enabled.
type Telemetry struct {
	config Config
	tracer *Tracer
	cm     *ContextManager
	meter  *Meter
}

var _ jobtel.Telemetry = (*Telemetry)(nil)

// New is the positional construction shape: a tracer name and an optional
// version. Metrics are disabled and the OTel globals are used.
func New(tracerName string, version ...string) *Telemetry {
	return NewWithOptions(legacyOptions(tracerName, version))
}

// NewWithOptions builds a Telemetry from structured options on the backend
// chosen by backendOpts.
func NewWithOptions(opts Options, backendOpts ...Option) *Telemetry {
	cfg := Normalize(opts)
	b := newBackend(backendOpts)

	cm := NewContextManager(b.root, b.propagator, b.logger)

	var tracerOpts []trace.TracerOption
	if cfg.Version != "" {
		tracerOpts = append(tracerOpts, trace.WithInstrumentationVersion(cfg.Version))
	}

	t := &Telemetry{
		config: cfg,
		cm:     cm,
		tracer: &Tracer{
			tracer: b.tracerProvider.Tracer(cfg.TracerName, tracerOpts...),
			cm:     cm,
			logger: b.logger,
		},
	}

	if cfg.EnableMetrics {
		var meterOpts []metric.MeterOption
		if cfg.Version != "" {
			meterOpts = append(meterOpts, metric.WithInstrumentationVersion(cfg.Version))
		}
		m := b.meterProviderOrGlobal().Meter(cfg.MeterName, meterOpts...)
		t.meter = newMeter(m, cfg.MeterName, cfg.Version, b.logger)
	}

	return t
}

// Config returns the normalized configuration.
func (t *Telemetry) Config() Config { return t.config }

func (t *Telemetry) Tracer() jobtel.Tracer { return t.tracer }

// ContextManager returns the shared context manager. Its scope stack is
// shared across goroutines, so concurrent callers pass explicit parents to
// StartSpan or work on a Fork.
func (t *Telemetry) ContextManager() jobtel.ContextManager { return t.cm }

// Contexts returns the concrete context manager, which also exposes
// Carrier, FromCarrier and Fork.
func (t *Telemetry) Contexts() *ContextManager { return t.cm }

// Meter returns nil when metrics are disabled. Check before use.
func (t *Telemetry) Meter() jobtel.Meter {
	if t.meter == nil {
		return nil
	}
	return t.meter
}

// MustMeter is Meter with an explicit error instead of nil.
func (t *Telemetry) MustMeter() (jobtel.Meter, error) {
	if t.meter == nil {
		return nil, jobtel.ErrMetricsDisabled
	}
	return t.meter, nil
}
