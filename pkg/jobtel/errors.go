package jobtel

import "errors"

var (
	// ErrMalformedMetadata is returned when propagated metadata is present
	// but cannot be decoded into a context.
	ErrMalformedMetadata = errors.New("malformed telemetry metadata")

	// ErrMetricsDisabled is returned when a metrics operation is requested
	// from a Telemetry built without metrics.
	ErrMetricsDisabled = errors.New("metrics are not enabled")
)
