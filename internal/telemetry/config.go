package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/bullmq-otel/internal/config"
)

// Exporter protocols.
const (
	ProtocolGRPC   = "grpc"
	ProtocolHTTP   = "http/protobuf"
	ProtocolStdout = "stdout"
)

// Metric readers.
const (
	ReaderOTLP       = "otlp"
	ReaderPrometheus = "prometheus"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool           `koanf:"enabled"`
	Endpoint       string         `koanf:"endpoint"`
	Protocol       string         `koanf:"protocol"` // grpc (default), http/protobuf, stdout
	ServiceName    string         `koanf:"service_name"`
	ServiceVersion string         `koanf:"service_version"`
	Insecure       bool           `koanf:"insecure"` // Use insecure connection (no TLS)
	TLSSkipVerify  bool           `koanf:"tls_skip_verify"`
	AuthToken      config.Secret  `koanf:"auth_token"` // Sent as "Authorization: Bearer <token>"
	Propagators    []string       `koanf:"propagators"`
	Sampling       SamplingConfig `koanf:"sampling"`
	Metrics        MetricsConfig  `koanf:"metrics"`
	Shutdown       ShutdownConfig `koanf:"shutdown"`
}

// SamplingConfig controls trace sampling behavior.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"` // 0.0-1.0, default 1.0
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Enabled        bool            `koanf:"enabled"`
	Reader         string          `koanf:"reader"` // otlp (default) or prometheus
	ExportInterval config.Duration `koanf:"export_interval"`
}

// ShutdownConfig controls graceful shutdown behavior.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns production-ready telemetry defaults.
// Telemetry is disabled by default; without it the OTel globals stay no-op.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       ProtocolGRPC,
		ServiceName:    "bullmq-otel",
		ServiceVersion: "0.1.0",
		Insecure:       true, // Insecure by default for local dev; set false for production TLS
		Propagators:    []string{"tracecontext", "baggage"},
		Sampling: SamplingConfig{
			Rate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			Reader:         ReaderOTLP,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Protocol {
	case "", ProtocolGRPC, ProtocolHTTP, ProtocolStdout:
	default:
		return fmt.Errorf("protocol must be one of grpc, http/protobuf, stdout; got %q", c.Protocol)
	}

	if c.Endpoint == "" && c.Protocol != ProtocolStdout {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}

	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}

	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required when telemetry is enabled")
	}

	// Credentials must not travel in clear text to a remote collector.
	if c.Protocol != ProtocolStdout && c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint (localhost/127.0.0.1)")
	}

	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}

	for _, p := range c.Propagators {
		if _, ok := knownPropagators[p]; !ok {
			return fmt.Errorf("unknown propagator %q", p)
		}
	}

	if c.Metrics.Enabled {
		switch c.Metrics.Reader {
		case "", ReaderOTLP:
			if c.Protocol == ProtocolStdout {
				return fmt.Errorf("metrics.reader=otlp needs an OTLP protocol; use metrics.reader=prometheus with protocol=stdout")
			}
			if c.Metrics.ExportInterval.Duration() <= 0 {
				return fmt.Errorf("metrics.export_interval must be positive when metrics enabled")
			}
		case ReaderPrometheus:
		default:
			return fmt.Errorf("metrics.reader must be otlp or prometheus, got %q", c.Metrics.Reader)
		}
	}

	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}

	return nil
}

// isLocalEndpoint checks if the endpoint is a local address.
func (c *Config) isLocalEndpoint() bool {
	host := stripScheme(c.Endpoint)

	if strings.HasPrefix(host, "[") {
		// Bracketed IPv6: [::1]:4317
		if idx := strings.Index(host, "]"); idx != -1 {
			host = host[1:idx]
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.LastIndex(host, ":")]
	}

	return host == "localhost" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.")
}
