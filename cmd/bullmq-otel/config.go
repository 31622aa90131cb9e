package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fyrsmithlabs/bullmq-otel/internal/config"
	apihttp "github.com/fyrsmithlabs/bullmq-otel/internal/http"
	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/internal/telemetry"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/natsjob"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/otelbridge"
)

// appConfig is the full CLI configuration.
type appConfig struct {
	Bridge    otelbridge.Options `koanf:"bridge" json:"bridge"`
	Telemetry telemetry.Config   `koanf:"telemetry" json:"telemetry"`
	Logging   logging.Config     `koanf:"logging" json:"logging"`
	NATS      natsConfig         `koanf:"nats" json:"nats"`
	HTTP      apihttp.Config     `koanf:"http" json:"http"`
}

// natsConfig controls the job transport.
type natsConfig struct {
	URL           string          `koanf:"url" json:"url"`
	Embedded      bool            `koanf:"embedded" json:"embedded"` // Run an in-process server instead of dialing URL
	Queue         string          `koanf:"queue" json:"queue"`
	SubjectPrefix string          `koanf:"subject_prefix" json:"subject_prefix"`
	QueueGroup    string          `koanf:"queue_group" json:"queue_group,omitempty"`
	MaxReconnects int             `koanf:"max_reconnects" json:"max_reconnects"`
	ReconnectWait config.Duration `koanf:"reconnect_wait" json:"reconnect_wait"`
}

func defaultAppConfig() *appConfig {
	return &appConfig{
		Bridge: otelbridge.Options{
			TracerName:    otelbridge.DefaultTracerName,
			EnableMetrics: true,
		},
		Telemetry: *telemetry.NewDefaultConfig(),
		Logging:   *logging.NewDefaultConfig(),
		NATS: natsConfig{
			URL:           "nats://localhost:4222",
			Queue:         "default",
			SubjectPrefix: natsjob.DefaultSubjectPrefix,
			MaxReconnects: 5,
			ReconnectWait: config.Duration(time.Second),
		},
		HTTP: apihttp.Config{
			Host: "localhost",
			Port: 9090,
		},
	}
}

// loadAppConfig applies the config file and environment on top of defaults.
func loadAppConfig(path string) (*appConfig, error) {
	cfg := defaultAppConfig()
	if err := config.Load(path, config.DefaultEnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *appConfig) Validate() error {
	var errs []error
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if c.NATS.Queue == "" {
		errs = append(errs, errors.New("nats: queue is required"))
	}
	if !c.NATS.Embedded && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats: url is required unless embedded"))
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http: port out of range: %d", c.HTTP.Port))
	}
	return errors.Join(errs...)
}

// runConfig prints the effective configuration with the bridge section
// normalized the way otelbridge applies it.
func runConfig(w io.Writer, cfg *appConfig) error {
	out := struct {
		Bridge    otelbridge.Config `json:"bridge"`
		Telemetry telemetry.Config  `json:"telemetry"`
		Logging   logging.Config    `json:"logging"`
		NATS      natsConfig        `json:"nats"`
		HTTP      apihttp.Config    `json:"http"`
	}{
		Bridge:    otelbridge.Normalize(cfg.Bridge),
		Telemetry: cfg.Telemetry,
		Logging:   cfg.Logging,
		NATS:      cfg.NATS,
		HTTP:      cfg.HTTP,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
