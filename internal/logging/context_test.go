package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Job(t *testing.T) {
	ctx := WithJob(context.Background(), Job{ID: "42", Name: "send-email", Queue: "mail"})

	fields := ContextFields(ctx)
	require.Len(t, fields, 3)

	got := map[string]string{}
	for _, f := range fields {
		got[f.Key] = f.String
	}
	assert.Equal(t, "42", got["job.id"])
	assert.Equal(t, "send-email", got["job.name"])
	assert.Equal(t, "mail", got["job.queue"])
}

func TestLoggerContextRoundTrip(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)

	assert.Same(t, tl.Logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
