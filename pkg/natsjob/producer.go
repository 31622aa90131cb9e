package natsjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// Producer publishes jobs for one queue, each inside a producer span whose
// context travels in the envelope.
type Producer struct {
	conn     Publisher
	queue    string
	subject  string
	tel      jobtel.Telemetry
	contexts jobtel.ContextManager
	logger   *logging.Logger
	enqueued jobtel.Counter
}

// NewProducer returns a Producer for queue. The enqueued counter is
// registered only when tel has a meter.
func NewProducer(conn Publisher, queue string, tel jobtel.Telemetry, opts ...Option) (*Producer, error) {
	if queue == "" {
		return nil, errors.New("queue name is required")
	}
	s := newSettings(queue, tel, opts)

	p := &Producer{
		conn:     conn,
		queue:    queue,
		subject:  Subject(s.subjectPrefix, queue),
		tel:      tel,
		contexts: s.contexts,
		logger:   s.logger,
	}

	if m := tel.Meter(); m != nil {
		c, err := m.CreateCounter(MetricJobsEnqueued, &jobtel.MetricOptions{
			Description: "Jobs published to a queue",
			Unit:        "{job}",
		})
		if err != nil {
			return nil, fmt.Errorf("create %s counter: %w", MetricJobsEnqueued, err)
		}
		p.enqueued = c
	}

	return p, nil
}

// Subject returns the subject jobs are published on.
func (p *Producer) Subject() string { return p.subject }

// Enqueue publishes a job named name carrying payload. A nil ctx means the
// context manager's active context, which is shared by every goroutine using
// that manager; concurrent producers pass ctx explicitly or are built
// WithContextManager on a Fork. Publish errors are returned unchanged.
func (p *Producer) Enqueue(ctx context.Context, name string, payload any) (*Envelope, error) {
	if ctx == nil {
		ctx = p.contexts.Active()
	}

	env := &Envelope{
		ID:         uuid.NewString(),
		Name:       name,
		Queue:      p.queue,
		EnqueuedAt: time.Now().UTC(),
	}
	attrs := jobAttributes(env)

	span := p.tel.Tracer().StartSpan(p.queue+" add", &jobtel.SpanOptions{
		Kind:       jobtel.SpanKindProducer,
		Attributes: attrs,
	}, ctx)
	defer span.End()

	ctx = logging.WithJob(span.SetSpanOnContext(ctx), logging.Job{ID: env.ID, Name: name, Queue: p.queue})

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, p.fail(ctx, span, fmt.Errorf("encode payload: %w", err))
		}
		env.Payload = data
	}

	md, err := p.contexts.GetMetadata(ctx)
	if err != nil {
		return nil, p.fail(ctx, span, err)
	}
	env.Metadata = md

	body, err := json.Marshal(env)
	if err != nil {
		return nil, p.fail(ctx, span, fmt.Errorf("encode envelope: %w", err))
	}

	if err := p.conn.Publish(p.subject, body); err != nil {
		return nil, p.fail(ctx, span, err)
	}

	if p.enqueued != nil {
		p.enqueued.Add(ctx, 1, jobtel.Attributes{AttrQueueName: p.queue, AttrJobName: name})
	}
	p.logger.Debug(ctx, "job enqueued", zap.String("subject", p.subject))

	return env, nil
}

func (p *Producer) fail(ctx context.Context, span jobtel.Span, err error) error {
	span.RecordException(err, time.Time{})
	span.SetStatus(jobtel.StatusError, err.Error())
	p.logger.Error(ctx, "enqueue failed", zap.Error(err))
	return err
}

func jobAttributes(env *Envelope) jobtel.Attributes {
	return jobtel.Attributes{
		AttrJobID:     env.ID,
		AttrJobName:   env.Name,
		AttrQueueName: env.Queue,
	}
}
