package natsjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// Handler processes one job. The context carries the consumer span.
type Handler func(ctx context.Context, job *Envelope) error

// Worker consumes jobs for one queue and traces each as a consumer span
// parented to the producer's context.
type Worker struct {
	conn     Subscriber
	queue    string
	subject  string
	group    string
	tel      jobtel.Telemetry
	contexts jobtel.ContextManager
	logger   *logging.Logger

	completed jobtel.Counter
	failed    jobtel.Counter
	duration  jobtel.Histogram

	processed atomic.Int64

	mu  sync.Mutex
	sub *nats.Subscription
}

// durationBuckets are histogram boundaries in milliseconds.
var durationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// NewWorker returns a Worker for queue. Instruments are registered only
// when tel has a meter.
func NewWorker(conn Subscriber, queue string, tel jobtel.Telemetry, opts ...Option) (*Worker, error) {
	if queue == "" {
		return nil, errors.New("queue name is required")
	}
	s := newSettings(queue, tel, opts)

	w := &Worker{
		conn:     conn,
		queue:    queue,
		subject:  Subject(s.subjectPrefix, queue),
		group:    s.queueGroup,
		tel:      tel,
		contexts: s.contexts,
		logger:   s.logger,
	}

	if m := tel.Meter(); m != nil {
		var err error
		if w.completed, err = m.CreateCounter(MetricJobsCompleted, &jobtel.MetricOptions{
			Description: "Jobs processed successfully",
			Unit:        "{job}",
		}); err != nil {
			return nil, fmt.Errorf("create %s counter: %w", MetricJobsCompleted, err)
		}
		if w.failed, err = m.CreateCounter(MetricJobsFailed, &jobtel.MetricOptions{
			Description: "Jobs whose processing failed",
			Unit:        "{job}",
		}); err != nil {
			return nil, fmt.Errorf("create %s counter: %w", MetricJobsFailed, err)
		}
		if w.duration, err = m.CreateHistogram(MetricJobDuration, &jobtel.MetricOptions{
			Description: "Job processing time",
			Unit:        "ms",
			Buckets:     durationBuckets,
		}); err != nil {
			return nil, fmt.Errorf("create %s histogram: %w", MetricJobDuration, err)
		}
	}

	return w, nil
}

// Processed returns how many jobs have finished, successfully or not.
func (w *Worker) Processed() int64 { return w.processed.Load() }

// Subject returns the subject the worker consumes.
func (w *Worker) Subject() string { return w.subject }

// Subscribe starts consuming with handler. Messages are delivered to one
// member of the worker's queue group.
func (w *Worker) Subscribe(handler Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		return errors.New("worker already subscribed")
	}

	sub, err := w.conn.QueueSubscribe(w.subject, w.group, func(msg *nats.Msg) {
		// Errors are already recorded on the span, counted and logged.
		_ = w.Process(msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.subject, err)
	}
	w.sub = sub

	w.logger.Info(context.Background(), "worker subscribed",
		zap.String("subject", w.subject),
		zap.String("queue_group", w.group),
	)
	return nil
}

// Close drains the subscription.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub == nil {
		return nil
	}
	err := w.sub.Drain()
	w.sub = nil
	return err
}

// Process runs handler for one encoded envelope. Malformed trace metadata
// fails the job without calling handler.
func (w *Worker) Process(data []byte, handler Handler) error {
	start := time.Now()

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
		w.logger.Error(context.Background(), "dropping undecodable message", zap.String("subject", w.subject), zap.Error(err))
		if w.failed != nil {
			w.failed.Add(context.Background(), 1, jobtel.Attributes{AttrQueueName: w.queue})
		}
		w.processed.Add(1)
		return err
	}
	if env.Queue == "" {
		env.Queue = w.queue
	}

	active := w.contexts.Active()
	parent, mdErr := w.contexts.FromMetadata(active, env.Metadata)
	if mdErr != nil {
		parent = active
	}

	span := w.tel.Tracer().StartSpan(w.queue+" process", &jobtel.SpanOptions{
		Kind:       jobtel.SpanKindConsumer,
		Attributes: jobAttributes(&env),
	}, parent)
	ctx := logging.WithJob(span.SetSpanOnContext(parent), logging.Job{ID: env.ID, Name: env.Name, Queue: env.Queue})

	if mdErr != nil {
		w.logger.Error(ctx, "rejecting job with malformed trace metadata", zap.Error(mdErr))
		w.finish(ctx, span, &env, start, mdErr)
		return mdErr
	}

	err := w.contexts.With(ctx, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}
		}()
		return handler(ctx, &env)
	})
	w.finish(ctx, span, &env, start, err)
	return err
}

func (w *Worker) finish(ctx context.Context, span jobtel.Span, env *Envelope, start time.Time, err error) {
	attrs := jobtel.Attributes{AttrQueueName: env.Queue, AttrJobName: env.Name}
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if err == nil {
		span.AddEvent("job.completed", nil, time.Time{})
		span.SetStatus(jobtel.StatusOK, "")
		if w.completed != nil {
			w.completed.Add(ctx, 1, attrs)
		}
		w.logger.Debug(ctx, "job completed", zap.Float64("duration_ms", elapsed))
	} else {
		span.RecordException(err, time.Time{})
		span.SetStatus(jobtel.StatusError, err.Error())
		span.AddEvent("job.failed", jobtel.Attributes{"error": err.Error()}, time.Time{})
		if w.failed != nil {
			w.failed.Add(ctx, 1, attrs)
		}
		w.logger.Warn(ctx, "job failed", zap.Float64("duration_ms", elapsed), zap.Error(err))
	}

	if w.duration != nil {
		w.duration.Record(ctx, elapsed, attrs)
	}
	span.End()
	w.processed.Add(1)
}
