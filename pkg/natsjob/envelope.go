package natsjob

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Span attribute and metric names shared by producers and workers.
const (
	AttrJobID     = "bullmq.job.id"
	AttrJobName   = "bullmq.job.name"
	AttrQueueName = "bullmq.queue.name"

	MetricJobsEnqueued  = "bullmq.jobs.enqueued"
	MetricJobsCompleted = "bullmq.jobs.completed"
	MetricJobsFailed    = "bullmq.jobs.failed"
	MetricJobDuration   = "bullmq.job.duration"
)

// DefaultSubjectPrefix is prepended to the queue name to form the subject.
const DefaultSubjectPrefix = "bullmq.jobs"

var (
	// ErrInvalidEnvelope is returned when a message body is not a job envelope.
	ErrInvalidEnvelope = errors.New("invalid job envelope")

	// ErrHandlerPanic wraps a panic recovered from a job handler.
	ErrHandlerPanic = errors.New("job handler panicked")
)

// Envelope is the message published for each job. Metadata holds the
// producer's trace context as returned by ContextManager.GetMetadata.
type Envelope struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Metadata   string          `json:"metadata,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Decode unmarshals payload into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// Subject returns the NATS subject for queue under prefix.
func Subject(prefix, queue string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return queue
	}
	return prefix + "." + queue
}

// Publisher is the publishing side of a NATS connection.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subscriber is the subscribing side of a NATS connection.
type Subscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

var (
	_ Publisher  = (*nats.Conn)(nil)
	_ Subscriber = (*nats.Conn)(nil)
)
