package otelbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want Config
	}{
		{
			name: "no arguments",
			opts: Options{},
			want: Config{TracerName: "bullmq", MeterName: "bullmq"},
		},
		{
			name: "tracer name only",
			opts: Options{TracerName: "svc"},
			want: Config{TracerName: "svc", MeterName: "svc"},
		},
		{
			name: "all fields",
			opts: Options{TracerName: "svc", MeterName: "svc-metrics", Version: "2.0", EnableMetrics: true},
			want: Config{TracerName: "svc", MeterName: "svc-metrics", Version: "2.0", EnableMetrics: true},
		},
		{
			name: "meter name without tracer name",
			opts: Options{MeterName: "m"},
			want: Config{TracerName: "bullmq", MeterName: "m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.opts))
		})
	}
}

func TestConstructionShapes(t *testing.T) {
	t.Run("legacy name and version", func(t *testing.T) {
		tel := New("svc", "1.0")
		assert.Equal(t, Config{TracerName: "svc", MeterName: "svc", Version: "1.0"}, tel.Config())
		assert.Nil(t, tel.Meter())
	})

	t.Run("legacy name only", func(t *testing.T) {
		tel := New("svc")
		assert.Equal(t, Config{TracerName: "svc", MeterName: "svc"}, tel.Config())
	})

	t.Run("legacy empty name", func(t *testing.T) {
		tel := New("")
		assert.Equal(t, "bullmq", tel.Config().TracerName)
	})

	t.Run("options object", func(t *testing.T) {
		tel, _ := newTestBridge(Options{TracerName: "svc", Version: "2.0", EnableMetrics: true})
		cfg := tel.Config()
		assert.Equal(t, "svc", cfg.TracerName)
		assert.Equal(t, "svc", cfg.MeterName)
		assert.Equal(t, "2.0", cfg.Version)

		m, ok := tel.Meter().(*Meter)
		if assert.True(t, ok) {
			assert.Equal(t, "svc", m.Name())
			assert.Equal(t, "2.0", m.Version())
		}
	})
}
