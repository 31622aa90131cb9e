package otelbridge

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bullmq-otel/internal/logging"
	"github.com/fyrsmithlabs/bullmq-otel/pkg/jobtel"
)

// keyValues converts attrs in sorted key order, dropping values of
// unsupported types.
func keyValues(attrs jobtel.Attributes, logger *logging.Logger) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, k := range attrs.Keys() {
		if kv, ok := keyValue(k, attrs[k], logger); ok {
			out = append(out, kv)
		}
	}
	return out
}

func keyValue(key string, v jobtel.AttributeValue, logger *logging.Logger) (attribute.KeyValue, bool) {
	kv, ok := convert(attribute.Key(key), v)
	if !ok {
		logger.Debug(context.Background(), "dropping attribute with unsupported type",
			zap.String("key", key),
			zap.String("type", fmt.Sprintf("%T", v)),
		)
	}
	return kv, ok
}

func convert(k attribute.Key, v jobtel.AttributeValue) (attribute.KeyValue, bool) {
	switch v := v.(type) {
	case attribute.Value:
		return attribute.KeyValue{Key: k, Value: v}, v.Type() != attribute.INVALID
	case string:
		return k.String(v), true
	case bool:
		return k.Bool(v), true
	case int:
		return k.Int(v), true
	case int8:
		return k.Int64(int64(v)), true
	case int16:
		return k.Int64(int64(v)), true
	case int32:
		return k.Int64(int64(v)), true
	case int64:
		return k.Int64(v), true
	case uint8:
		return k.Int64(int64(v)), true
	case uint16:
		return k.Int64(int64(v)), true
	case uint32:
		return k.Int64(int64(v)), true
	case uint:
		return fromUint(k, uint64(v)), true
	case uint64:
		return fromUint(k, v), true
	case float32:
		return k.Float64(float64(v)), true
	case float64:
		return k.Float64(v), true

	case []string:
		return k.StringSlice(v), true
	case []bool:
		return k.BoolSlice(v), true
	case []int:
		return k.IntSlice(v), true
	case []int32:
		return k.Int64Slice(widen(v, func(x int32) int64 { return int64(x) })), true
	case []int64:
		return k.Int64Slice(v), true
	case []float32:
		return k.Float64Slice(widen(v, func(x float32) float64 { return float64(x) })), true
	case []float64:
		return k.Float64Slice(v), true

	case []*string:
		return k.StringSlice(deref(v)), true
	case []*bool:
		return k.BoolSlice(deref(v)), true
	case []*int:
		return k.IntSlice(deref(v)), true
	case []*int64:
		return k.Int64Slice(deref(v)), true
	case []*float64:
		return k.Float64Slice(deref(v)), true

	case []any:
		return convertAny(k, v)
	}
	return attribute.KeyValue{}, false
}

// fromUint keeps integers that fit in int64 and degrades the rest to float64.
func fromUint(k attribute.Key, v uint64) attribute.KeyValue {
	if v > math.MaxInt64 {
		return k.Float64(float64(v))
	}
	return k.Int64(int64(v))
}

// deref copies pointer elements, using the zero value for nil.
func deref[T any](in []*T) []T {
	out := make([]T, len(in))
	for i, p := range in {
		if p != nil {
			out[i] = *p
		}
	}
	return out
}

func widen[S, T any](in []S, f func(S) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

// convertAny handles decoded JSON arrays. The first non-nil element fixes
// the element type; any other type makes the whole slice unsupported.
// A slice with no non-nil element becomes a string slice of zero values.
func convertAny(k attribute.Key, in []any) (attribute.KeyValue, bool) {
	var kind any
	for _, e := range in {
		if e != nil {
			kind = e
			break
		}
	}
	switch kind.(type) {
	case nil, string:
		out, ok := homogeneous[string](in)
		return k.StringSlice(out), ok
	case bool:
		out, ok := homogeneous[bool](in)
		return k.BoolSlice(out), ok
	case float64:
		out, ok := homogeneous[float64](in)
		return k.Float64Slice(out), ok
	case int:
		out, ok := homogeneous[int](in)
		return k.IntSlice(out), ok
	case int64:
		out, ok := homogeneous[int64](in)
		return k.Int64Slice(out), ok
	}
	return attribute.KeyValue{}, false
}

func homogeneous[T any](in []any) ([]T, bool) {
	out := make([]T, len(in))
	for i, e := range in {
		if e == nil {
			continue
		}
		v, ok := e.(T)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
