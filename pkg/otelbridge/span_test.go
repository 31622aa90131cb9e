package otelbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

func attrMap(span sdktrace.ReadOnlySpan) map[string]attribute.Value {
	out := make(map[string]attribute.Value)
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestSpan_EndIsIdempotent(t *testing.T) {
	tel, tt := newTestBridge(Options{})

	span := tel.Tracer().StartSpan("job.process", nil, context.Background())
	span.End()
	span.End()

	assert.Len(t, tt.Spans(), 1)
	assert.True(t, span.(*Span).IsEnded())
}

func TestSpan_MutationAfterEndIsNoop(t *testing.T) {
	tel, tt := newTestBridge(Options{})

	span := tel.Tracer().StartSpan("job.process", nil, context.Background())
	span.SetAttribute("before", "yes")
	span.End()
	span.SetAttribute("after", "yes")
	span.AddEvent("late", nil, time.Time{})
	span.RecordException(errors.New("late"), time.Time{})
	span.SetStatus(jobtel.StatusError, "late")

	got := tt.SpanByName("job.process")
	require.NotNil(t, got)
	attrs := attrMap(got)
	assert.Contains(t, attrs, "before")
	assert.NotContains(t, attrs, "after")
	assert.Empty(t, got.Events())
	assert.Equal(t, codes.Unset, got.Status().Code)
}

func TestSpan_Attributes(t *testing.T) {
	tl := logging.NewTestLogger()
	tel, tt := newTestBridge(Options{}, WithLogger(tl.Logger))

	a, b := "a", "b"
	n := int64(7)

	span := tel.Tracer().StartSpan("attrs", nil, context.Background())
	span.SetAttribute("jobId", "42")
	span.SetAttribute("jobId", "43")
	span.SetAttributes(jobtel.Attributes{
		"attempts":  3,
		"ratio":     float32(0.5),
		"delayed":   true,
		"big":       uint64(1 << 63),
		"tags":      []string{"x", "y"},
		"nullable":  []*string{&a, nil, &b},
		"counts":    []*int64{nil, &n},
		"decoded":   []any{"p", nil, "q"},
		"mixed":     []any{"p", 1.0},
		"allNil":    []any{nil, nil},
		"emptyAny":  []any{},
		"unsupport": struct{}{},
		"nil":       nil,
	})
	span.End()

	got := tt.SpanByName("attrs")
	require.NotNil(t, got)
	attrs := attrMap(got)

	assert.Equal(t, "43", attrs["jobId"].AsString())
	assert.Equal(t, int64(3), attrs["attempts"].AsInt64())
	assert.Equal(t, 0.5, attrs["ratio"].AsFloat64())
	assert.True(t, attrs["delayed"].AsBool())
	assert.Equal(t, float64(1<<63), attrs["big"].AsFloat64())
	assert.Equal(t, []string{"x", "y"}, attrs["tags"].AsStringSlice())
	assert.Equal(t, []string{"a", "", "b"}, attrs["nullable"].AsStringSlice())
	assert.Equal(t, []int64{0, 7}, attrs["counts"].AsInt64Slice())
	assert.Equal(t, []string{"p", "", "q"}, attrs["decoded"].AsStringSlice())
	assert.Equal(t, []string{"", ""}, attrs["allNil"].AsStringSlice())
	assert.Empty(t, attrs["emptyAny"].AsStringSlice())
	assert.Equal(t, attribute.STRINGSLICE, attrs["emptyAny"].Type())
	assert.NotContains(t, attrs, "mixed")
	assert.NotContains(t, attrs, "unsupport")
	assert.NotContains(t, attrs, "nil")

	tl.AssertLogged(t, zapcore.DebugLevel, "dropping attribute with unsupported type")
	assert.Len(t, tl.FilterMessage("dropping attribute with unsupported type").All(), 3)
}

func TestSpan_AddEvent(t *testing.T) {
	tel, tt := newTestBridge(Options{})
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	span := tel.Tracer().StartSpan("events", nil, context.Background())
	span.AddEvent("started", nil, time.Time{})
	span.AddEvent("progress", jobtel.Attributes{"pct": 50}, at)
	span.End()

	got := tt.SpanByName("events")
	require.NotNil(t, got)
	events := got.Events()
	require.Len(t, events, 2)

	assert.Equal(t, "started", events[0].Name)
	assert.False(t, events[0].Time.IsZero())

	assert.Equal(t, "progress", events[1].Name)
	assert.True(t, events[1].Time.Equal(at))
	require.Len(t, events[1].Attributes, 1)
	assert.Equal(t, int64(50), events[1].Attributes[0].Value.AsInt64())
}

func TestSpan_RecordException(t *testing.T) {
	tel, tt := newTestBridge(Options{})

	span := tel.Tracer().StartSpan("fails", nil, context.Background())
	span.RecordException(nil, time.Time{})
	span.RecordException(errors.New("connection reset"), time.Time{})
	span.SetStatus(jobtel.StatusError, "connection reset")
	span.End()

	got := tt.SpanByName("fails")
	require.NotNil(t, got)
	require.Len(t, got.Events(), 1)

	ev := got.Events()[0]
	assert.Equal(t, "exception", ev.Name)
	fields := make(map[string]string)
	for _, kv := range ev.Attributes {
		fields[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "connection reset", fields["exception.message"])
	assert.Equal(t, "*errors.errorString", fields["exception.type"])
	assert.NotEmpty(t, fields["exception.stacktrace"])

	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "connection reset", got.Status().Description)
}

func TestSpan_EndAt(t *testing.T) {
	tel, tt := newTestBridge(Options{})
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)

	span := tel.Tracer().StartSpan("timed", &jobtel.SpanOptions{StartTime: start}, context.Background())
	span.(*Span).EndAt(end)
	span.End()

	got := tt.SpanByName("timed")
	require.NotNil(t, got)
	assert.True(t, got.StartTime().Equal(start))
	assert.True(t, got.EndTime().Equal(end))
}

func TestStartSpan_Options(t *testing.T) {
	tel, tt := newTestBridge(Options{})

	linked := tel.Tracer().StartSpan("enqueue", nil, context.Background())
	linked.End()
	linkCtx := linked.SetSpanOnContext(context.Background())

	span := tel.Tracer().StartSpan("batch process", &jobtel.SpanOptions{
		Kind:       jobtel.SpanKindConsumer,
		Attributes: jobtel.Attributes{"bullmq.queue.name": "emails"},
		Links: []jobtel.Link{
			{Context: linkCtx, Attributes: jobtel.Attributes{"bullmq.job.id": "1"}},
			{Context: nil},
		},
	}, context.Background())
	span.End()

	got := tt.SpanByName("batch process")
	require.NotNil(t, got)
	assert.Equal(t, trace.SpanKindConsumer, got.SpanKind())
	assert.Equal(t, "emails", attrMap(got)["bullmq.queue.name"].AsString())
	require.Len(t, got.Links(), 1)
	assert.Equal(t, linked.(*Span).SpanContext().SpanID(), got.Links()[0].SpanContext.SpanID())
}

func TestSpanKind_Mapping(t *testing.T) {
	assert.Equal(t, trace.SpanKindInternal, spanKind(jobtel.SpanKindInternal))
	assert.Equal(t, trace.SpanKindServer, spanKind(jobtel.SpanKindServer))
	assert.Equal(t, trace.SpanKindClient, spanKind(jobtel.SpanKindClient))
	assert.Equal(t, trace.SpanKindProducer, spanKind(jobtel.SpanKindProducer))
	assert.Equal(t, trace.SpanKindConsumer, spanKind(jobtel.SpanKindConsumer))
}

func TestSpan_SetSpanOnContextDoesNotMutate(t *testing.T) {
	tel, _ := newTestBridge(Options{})
	base := context.Background()

	span := tel.Tracer().StartSpan("op", nil, base)
	defer span.End()

	ctx := span.SetSpanOnContext(base)
	assert.False(t, trace.SpanContextFromContext(base).IsValid())
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
}
