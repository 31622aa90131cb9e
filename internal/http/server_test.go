package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/natsjob"
)

type fakeEnqueuer struct {
	name    string
	payload any
	err     error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, name string, payload any) (*natsjob.Envelope, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.name, f.payload = name, payload
	return &natsjob.Envelope{ID: "job-1", Name: name, Queue: "emails", EnqueuedAt: time.Now()}, nil
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	s, err := NewServer(deps, nil)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s := newTestServer(t, Deps{})
		assert.Equal(t, "localhost", s.config.Host)
		assert.Equal(t, 9090, s.config.Port)
		assert.NotNil(t, s.Echo())
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(Deps{}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("ok without checks", func(t *testing.T) {
		rec := do(newTestServer(t, Deps{}), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
	})

	t.Run("degraded component", func(t *testing.T) {
		s := newTestServer(t, Deps{Health: func(context.Context) map[string]string {
			return map[string]string{"nats": "ok", "telemetry": "degraded"}
		}})
		rec := do(s, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "degraded", resp.Services["telemetry"])
	})
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, Deps{Metrics: promhttp.Handler()})
	rec := do(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = do(newTestServer(t, Deps{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEnqueue(t *testing.T) {
	t.Run("accepts job", func(t *testing.T) {
		enq := &fakeEnqueuer{}
		s := newTestServer(t, Deps{Enqueuer: enq})

		rec := do(s, http.MethodPost, "/api/v1/jobs", `{"name":"welcome","payload":{"to":"a@example.com"}}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)

		var resp EnqueueResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "job-1", resp.ID)
		assert.Equal(t, "emails", resp.Queue)
		assert.Equal(t, "welcome", enq.name)
		assert.JSONEq(t, `{"to":"a@example.com"}`, string(enq.payload.(json.RawMessage)))
	})

	t.Run("requires name", func(t *testing.T) {
		s := newTestServer(t, Deps{Enqueuer: &fakeEnqueuer{}})
		rec := do(s, http.MethodPost, "/api/v1/jobs", `{"payload":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		s := newTestServer(t, Deps{Enqueuer: &fakeEnqueuer{}})
		rec := do(s, http.MethodPost, "/api/v1/jobs", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("publish failure", func(t *testing.T) {
		s := newTestServer(t, Deps{Enqueuer: &fakeEnqueuer{err: errUnavailable}})
		rec := do(s, http.MethodPost, "/api/v1/jobs", `{"name":"welcome"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("not configured", func(t *testing.T) {
		rec := do(newTestServer(t, Deps{}), http.MethodPost, "/api/v1/jobs", `{"name":"welcome"}`)
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}

func TestServer_StartStopsOnCancel(t *testing.T) {
	s, err := NewServer(Deps{Logger: logging.NewNop()}, &Config{Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
