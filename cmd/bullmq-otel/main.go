// Package main implements the bullmq-otel CLI: print configuration, run a
// traced producer/worker demo, or serve a worker with health and metrics.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// configPath is the YAML config file; environment overrides apply on top
	configPath string
	// version information
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bullmq-otel",
	Short: "OpenTelemetry bridge for job queues over NATS",
	Long: `bullmq-otel traces jobs from producer to worker and exports the spans and
metrics through OpenTelemetry.

Configuration is read from --config (YAML) and BULLMQ_OTEL_* environment
variables, e.g. BULLMQ_OTEL_TELEMETRY_ENDPOINT or BULLMQ_OTEL_NATS_URL.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(serveCmd)
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and environment
overrides are applied. Secrets are redacted.

Examples:
  bullmq-otel config --config bullmq-otel.yaml
  BULLMQ_OTEL_BRIDGE_TRACER_NAME=billing bullmq-otel config`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadAppConfig(configPath)
		if err != nil {
			return err
		}
		return runConfig(cmd.OutOrStdout(), cfg)
	},
}

var (
	demoJobs      int
	demoFailEvery int
)

// demoCmd runs a producer and worker against an embedded NATS server
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Enqueue and process jobs over embedded NATS, printing spans and metrics",
	Long: `Start an embedded NATS server, publish jobs through a traced producer and
consume them with a traced worker. Spans are printed as they end and the
resulting metrics are printed in Prometheus text format.

Examples:
  bullmq-otel demo
  bullmq-otel demo --jobs 10 --fail-every 3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadAppConfig(configPath)
		if err != nil {
			return err
		}
		return runDemo(cmd.Context(), cfg, cmd.OutOrStdout(), demoJobs, demoFailEvery)
	},
}

// serveCmd runs a worker with the HTTP surface
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a worker with /health, /metrics and job intake",
	Long: `Connect to NATS, consume the configured queue and serve:
  GET  /health       component status
  GET  /metrics      Prometheus metrics (metrics.reader: prometheus)
  POST /api/v1/jobs  enqueue {"name": "...", "payload": {...}}

A job whose payload contains "fail": true is failed by the worker.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadAppConfig(configPath)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	demoCmd.Flags().IntVar(&demoJobs, "jobs", 3, "number of jobs to enqueue")
	demoCmd.Flags().IntVar(&demoFailEvery, "fail-every", 0, "fail every Nth job (0 disables)")
}
