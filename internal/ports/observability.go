package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-verso/internal/domain"
)

// EventSink consumes the lifecycle event stream of an evaluation run.
// Implementations own serialization and delivery, e.g. NDJSON to a writer
// or SSE to a client; the core only emits.
//
// Events arrive in emission order, which under concurrency is not chunk
// order. The stream is informational: the FinalEvaluation returned by the
// run is the authoritative result.
type EventSink interface {
	// Emit delivers one event. Implementations must not block the
	// pipeline; drop or buffer instead. Errors are the sink's own
	// concern and are not surfaced to the run.
	Emit(ctx context.Context, event domain.Event)
}

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency observes the wall-clock duration of one operation,
	// dimensioned by the labels map.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter adds value to a cumulative counter. Useful for
	// tracking events like retries, fallbacks, and errors.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge overwrites a gauge with its current value. Useful for
	// tracking values like in-flight chunk evaluations.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram adds one observation to a distribution. Useful for
	// tracking distributions like scores and token usage.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
