package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	apihttp "github.com/fyrsmithlabs/bullmq-otel/internal/http"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/natsjob"
)

// errRequestedFailure fails a job whose payload sets "fail": true.
var errRequestedFailure = errors.New("job payload requested failure")

// runServe consumes the configured queue and serves the HTTP surface until
// ctx is cancelled.
func runServe(ctx context.Context, cfg *appConfig, out io.Writer) (err error) {
	a, err := newApp(ctx, cfg, out)
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
	if err := worker.Subscribe(a.handleJob); err != nil {
		return err
	}
	defer func() { _ = worker.Close() }()

	producer, err := a.newProducer()
	if err != nil {
		return err
	}

	srv, err := apihttp.NewServer(apihttp.Deps{
		Logger:   a.logger.Named("http"),
		Meter:    a.bridge.Meter(),
		Metrics:  a.tel.MetricsHandler(),
		Enqueuer: producer,
		Health:   a.health,
	}, &cfg.HTTP)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	a.logger.Info(ctx, "worker started",
		zap.String("queue", cfg.NATS.Queue),
		zap.String("subject", worker.Subject()),
	)

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// handleJob logs each job and fails it when the payload asks to.
func (a *app) handleJob(ctx context.Context, job *natsjob.Envelope) error {
	a.logger.Info(ctx, "processing job")

	var body map[string]any
	if err := job.Decode(&body); err != nil {
		return err
	}
	if fail, _ := body["fail"].(bool); fail {
		return errRequestedFailure
	}
	return nil
}

// health reports telemetry and NATS status for GET /health.
func (a *app) health(context.Context) map[string]string {
	status := map[string]string{
		"telemetry": "ok",
		"nats":      "ok",
	}
	if h := a.tel.Health(); !h.Healthy || h.Degraded {
		status["telemetry"] = "degraded"
	}
	if a.nc == nil || !a.nc.IsConnected() {
		status["nats"] = "disconnected"
	}
	return status
}
