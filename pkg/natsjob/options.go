package natsjob

import (
	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// Option configures a Producer or Worker.
type Option func(*settings)

type settings struct {
	subjectPrefix string
	queueGroup    string
	logger        *logging.Logger
	contexts      jobtel.ContextManager
}

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) Option {
	return func(s *settings) { s.subjectPrefix = prefix }
}

// WithQueueGroup sets the NATS queue group workers join. Defaults to the
// queue name.
func WithQueueGroup(group string) Option {
	return func(s *settings) { s.queueGroup = group }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithContextManager gives a worker its own context manager instead of
// the shared one from Telemetry.
func WithContextManager(cm jobtel.ContextManager) Option {
	return func(s *settings) { s.contexts = cm }
}

func newSettings(queue string, tel jobtel.Telemetry, opts []Option) *settings {
	s := &settings{subjectPrefix: DefaultSubjectPrefix}
	for _, opt := range opts {
		opt(s)
	}
	if s.queueGroup == "" {
		s.queueGroup = queue
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.contexts == nil {
		s.contexts = tel.ContextManager()
	}
	return s
}
