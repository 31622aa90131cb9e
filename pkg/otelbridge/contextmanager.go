package otelbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// ContextManager keeps an explicit stack of active contexts and moves
// contexts across process boundaries with a propagator.
//
// Each manager is isolated, but one manager has a single stack shared by
// every goroutine that uses it: Active on one goroutine sees a scope opened
// by With on another. Concurrent callers must pass an explicit parent
// context, or use Fork to give each execution unit, such as a worker
// goroutine, its own stack.
type ContextManager struct {
	root       context.Context
	propagator propagation.TextMapPropagator
	traceKeys  []string
	logger     *logging.Logger

	mu     sync.Mutex
	stack  []scope
	nextID uint64
}

type scope struct {
	id  uint64
	ctx context.Context
}

var _ jobtel.ContextManager = (*ContextManager)(nil)

// NewContextManager returns a manager whose Active falls back to root.
func NewContextManager(root context.Context, p propagation.TextMapPropagator, logger *logging.Logger) *ContextManager {
	if root == nil {
		root = context.Background()
	}
	if p == nil {
		p = defaultPropagator()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ContextManager{
		root:       root,
		propagator: p,
		traceKeys:  traceFields(p),
		logger:     logger,
	}
}

// traceFields returns the propagator fields that carry span identity.
func traceFields(p propagation.TextMapPropagator) []string {
	var keys []string
	for _, f := range p.Fields() {
		switch strings.ToLower(f) {
		case "baggage", "tracestate":
		default:
			keys = append(keys, f)
		}
	}
	return keys
}

// Fork returns an independent manager sharing this one's propagator and
// logger. A nil root keeps this manager's root.
func (m *ContextManager) Fork(root context.Context) *ContextManager {
	if root == nil {
		root = m.root
	}
	return NewContextManager(root, m.propagator, m.logger)
}

// Active returns the innermost context installed by With, or the root.
func (m *ContextManager) Active() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.stack); n > 0 {
		return m.stack[n-1].ctx
	}
	return m.root
}

// With installs ctx as active for the duration of fn. The previous active
// context is restored when fn returns or panics; a panic is re-raised.
func (m *ContextManager) With(ctx context.Context, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = m.Active()
	}
	id := m.push(ctx)
	defer m.pop(id)
	return fn(ctx)
}

// WithValue is With for functions that return a value.
func WithValue[T any](m *ContextManager, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := m.With(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (m *ContextManager) push(ctx context.Context) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.stack = append(m.stack, scope{id: m.nextID, ctx: ctx})
	return m.nextID
}

// pop removes the scope with id. Scopes closed out of order only remove
// themselves.
func (m *ContextManager) pop(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i].id == id {
			m.stack = append(m.stack[:i], m.stack[i+1:]...)
			return
		}
	}
}

// Depth returns the number of open scopes.
func (m *ContextManager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

// Carrier injects ctx into a fresh carrier.
func (m *ContextManager) Carrier(ctx context.Context) jobtel.Carrier {
	if ctx == nil {
		ctx = m.Active()
	}
	carrier := jobtel.Carrier{}
	m.propagator.Inject(ctx, carrier)
	return carrier
}

// GetMetadata returns ctx's carrier as a JSON object of strings. A context
// without trace state yields "{}".
func (m *ContextManager) GetMetadata(ctx context.Context) (string, error) {
	data, err := json.Marshal(m.Carrier(ctx))
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

// FromMetadata decodes metadata produced by GetMetadata relative to
// activeCtx. Empty metadata and "{}" return activeCtx unchanged.
func (m *ContextManager) FromMetadata(activeCtx context.Context, metadata string) (context.Context, error) {
	if activeCtx == nil {
		activeCtx = m.Active()
	}
	metadata = strings.TrimSpace(metadata)
	if metadata == "" {
		return activeCtx, nil
	}

	var carrier jobtel.Carrier
	if err := json.Unmarshal([]byte(metadata), &carrier); err != nil {
		return nil, m.malformed(activeCtx, fmt.Errorf("%w: %w", jobtel.ErrMalformedMetadata, err))
	}
	if carrier == nil {
		return nil, m.malformed(activeCtx, fmt.Errorf("%w: metadata is not an object", jobtel.ErrMalformedMetadata))
	}
	return m.FromCarrier(activeCtx, carrier)
}

// FromCarrier extracts a context from a raw carrier relative to activeCtx.
func (m *ContextManager) FromCarrier(activeCtx context.Context, carrier jobtel.Carrier) (context.Context, error) {
	if activeCtx == nil {
		activeCtx = m.Active()
	}
	if len(carrier) == 0 {
		return activeCtx, nil
	}

	for _, key := range m.traceKeys {
		if _, ok := carrier[key]; !ok {
			continue
		}
		// Probe against an empty context so a span already in activeCtx
		// cannot mask an unparseable header.
		probe := trace.SpanContextFromContext(m.propagator.Extract(context.Background(), carrier))
		if !probe.IsValid() {
			return nil, m.malformed(activeCtx, fmt.Errorf("%w: invalid %s %q", jobtel.ErrMalformedMetadata, key, carrier[key]))
		}
		break
	}

	return m.propagator.Extract(activeCtx, carrier), nil
}

func (m *ContextManager) malformed(ctx context.Context, err error) error {
	m.logger.Warn(ctx, "discarding malformed telemetry metadata", zap.Error(err))
	return err
}
