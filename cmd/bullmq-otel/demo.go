package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bullmq-otel/internal/telemetry"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/natsjob"
)

// demoTimeout bounds how long the demo waits for the worker.
const demoTimeout = 30 * time.Second

type demoPayload struct {
	Seq int `json:"seq"`
}

// runDemo enqueues jobs over an embedded NATS server, waits for the worker
// to process them, then prints the Prometheus exposition of the metrics.
// Spans are written to out by the stdout exporter as they end.
func runDemo(ctx context.Context, cfg *appConfig, out io.Writer, jobs, failEvery int) (err error) {
	if jobs <= 0 {
		return errors.New("--jobs must be positive")
	}
	if failEvery < 0 {
		return errors.New("--fail-every must not be negative")
	}

	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Protocol = telemetry.ProtocolStdout
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Metrics.Reader = telemetry.ReaderPrometheus
	cfg.Bridge.EnableMetrics = true
	cfg.NATS.Embedded = true

	a, err := newApp(ctx, cfg, out, telemetry.WithSyncExport())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
	}()

	worker, err := a.newWorker()
	if err != nil {
		return err
	}
	err = worker.Subscribe(func(ctx context.Context, job *natsjob.Envelope) error {
		var p demoPayload
		if err := job.Decode(&p); err != nil {
			return err
		}
		if failEvery > 0 && p.Seq%failEvery == 0 {
			return fmt.Errorf("demo job %d failed on purpose", p.Seq)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = worker.Close() }()

	// The subscription must reach the server before the first publish.
	if err := a.nc.Flush(); err != nil {
		return fmt.Errorf("flushing subscription: %w", err)
	}

	producer, err := a.newProducer()
	if err != nil {
		return err
	}
	for i := 1; i <= jobs; i++ {
		if _, err := producer.Enqueue(ctx, "demo", demoPayload{Seq: i}); err != nil {
			return fmt.Errorf("enqueue job %d: %w", i, err)
		}
	}

	if err := waitProcessed(ctx, worker, int64(jobs)); err != nil {
		return err
	}
	a.logger.Info(ctx, "demo finished", zap.Int("jobs", jobs), zap.Int("fail_every", failEvery))

	if err := a.tel.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flushing telemetry: %w", err)
	}
	return writeMetrics(out, a.tel)
}

// waitProcessed polls until worker has finished n jobs.
func waitProcessed(ctx context.Context, worker *natsjob.Worker, n int64) error {
	ctx, cancel := context.WithTimeout(ctx, demoTimeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for worker.Processed() < n {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d jobs, processed %d: %w", n, worker.Processed(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// writeMetrics prints every gathered metric family in the text format.
func writeMetrics(w io.Writer, tel *telemetry.Telemetry) error {
	families, err := tel.Gatherer().Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
