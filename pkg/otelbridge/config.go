package otelbridge

// DefaultTracerName is used when no tracer name is configured.
const DefaultTracerName = "bullmq"

// Options is the structured construction shape.
type Options struct {
	TracerName    string `koanf:"tracer_name" json:"tracer_name,omitempty"`
	MeterName     string `koanf:"meter_name" json:"meter_name,omitempty"`
	Version       string `koanf:"version" json:"version,omitempty"`
	EnableMetrics bool   `koanf:"enable_metrics" json:"enable_metrics,omitempty"`
}

// Config is the normalized configuration every adapter is built from.
type Config struct {
	TracerName    string `json:"tracer_name"`
	MeterName     string `json:"meter_name"`
	Version       string `json:"version"`
	EnableMetrics bool   `json:"enable_metrics"`
}

// Normalize applies defaults to opts. It is the only place defaults live;
// both construction shapes go through it.
func Normalize(opts Options) Config {
	cfg := Config{
		TracerName:    opts.TracerName,
		MeterName:     opts.MeterName,
		Version:       opts.Version,
		EnableMetrics: opts.EnableMetrics,
	}
	if cfg.TracerName == "" {
		cfg.TracerName = DefaultTracerName
	}
	if cfg.MeterName == "" {
		cfg.MeterName = cfg.TracerName
	}
	return cfg
}

// legacyOptions maps the positional (tracerName, version) shape onto Options.
func legacyOptions(tracerName string, version []string) Options {
	opts := Options{TracerName: tracerName}
	if len(version) > 0 {
		opts.Version = version[0]
	}
	return opts
}
