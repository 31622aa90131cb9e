package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/log"
	otelglobal "go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/internal/telemetry"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/natsjob"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/otelbridge"
)

// app holds the initialized runtime shared by demo and serve.
type app struct {
	cfg    *appConfig
	logger *logging.Logger
	tel    *telemetry.Telemetry
	bridge *otelbridge.Telemetry

	natsServer *natsserver.Server
	nc         *nats.Conn
}

// newApp initializes logging, telemetry, the bridge and the NATS connection
// in that order. On error, everything started so far is closed.
func newApp(ctx context.Context, cfg *appConfig, stdout io.Writer, telOpts ...telemetry.Option) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	// The otelzap core ships records to whatever log SDK the process
	// installed globally.
	var lp log.LoggerProvider
	if cfg.Logging.Output.OTEL {
		lp = otelglobal.GetLoggerProvider()
	}
	a.logger, err = logging.NewLogger(&cfg.Logging, lp)
	if err != nil {
		return a, fmt.Errorf("initializing logger: %w", err)
	}

	opts := append([]telemetry.Option{
		telemetry.WithLogger(a.logger.Named("telemetry")),
		telemetry.WithStdout(stdout),
		telemetry.WithGlobals(),
	}, telOpts...)
	a.tel, err = telemetry.New(ctx, &cfg.Telemetry, opts...)
	if err != nil {
		return a, fmt.Errorf("initializing telemetry: %w", err)
	}
	a.tel.SetLoggerProvider(lp)

	a.bridge = otelbridge.NewWithOptions(cfg.Bridge,
		otelbridge.WithTracerProvider(a.tel.TracerProvider()),
		otelbridge.WithMeterProvider(a.tel.MeterProvider()),
		otelbridge.WithPropagator(a.tel.Propagator()),
		otelbridge.WithLogger(a.logger.Named("otelbridge")),
	)

	url := cfg.NATS.URL
	if cfg.NATS.Embedded {
		if a.natsServer, err = startEmbeddedNATS(); err != nil {
			return a, err
		}
		url = a.natsServer.ClientURL()
	}

	a.nc, err = nats.Connect(url,
		nats.Name("bullmq-otel"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait.Duration()),
	)
	if err != nil {
		return a, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	a.logger.Info(ctx, "connected to NATS", zap.String("url", url), zap.Bool("embedded", cfg.NATS.Embedded))

	return a, nil
}

// startEmbeddedNATS runs an in-process server on a random loopback port.
func startEmbeddedNATS() (*natsserver.Server, error) {
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   natsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedded NATS server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, errors.New("embedded NATS server not ready")
	}
	return srv, nil
}

// natsOptions returns the producer/worker options derived from config.
func (a *app) natsOptions(component string) []natsjob.Option {
	opts := []natsjob.Option{
		natsjob.WithSubjectPrefix(a.cfg.NATS.SubjectPrefix),
		natsjob.WithLogger(a.logger.Named(component)),
	}
	if a.cfg.NATS.QueueGroup != "" {
		opts = append(opts, natsjob.WithQueueGroup(a.cfg.NATS.QueueGroup))
	}
	return opts
}

// newProducer returns a producer for the configured queue.
func (a *app) newProducer() (*natsjob.Producer, error) {
	return natsjob.NewProducer(a.nc, a.cfg.NATS.Queue, a.bridge, a.natsOptions("producer")...)
}

// newWorker returns a worker with its own context stack so handler scopes
// never interleave with the producer's.
func (a *app) newWorker() (*natsjob.Worker, error) {
	opts := append(a.natsOptions("worker"), natsjob.WithContextManager(a.bridge.Contexts().Fork(nil)))
	return natsjob.NewWorker(a.nc, a.cfg.NATS.Queue, a.bridge, opts...)
}

// Close releases resources in reverse order of initialization.
func (a *app) Close(ctx context.Context) error {
	var errs []error

	if a.nc != nil {
		a.nc.Close()
	}
	if a.natsServer != nil {
		a.natsServer.Shutdown()
		a.natsServer.WaitForShutdown()
	}
	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	if a.logger != nil {
		if err := a.logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("logger sync: %w", err))
		}
	}

	return errors.Join(errs...)
}
