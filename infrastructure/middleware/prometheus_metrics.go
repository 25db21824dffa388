// Package middleware provides cross-cutting observability adapters for the
// evaluation engine: Prometheus metrics, OpenTelemetry run tracing, and
// NDJSON event streaming.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-verso/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. The engine's run, chunk, retry, and fallback measurements
// are routed to dedicated metric vectors; unrecognized names land in
// generic catch-all vectors so no measurement is silently dropped.
type PrometheusMetrics struct {
	runDuration    *prometheus.HistogramVec
	chunksTotal    *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	runsFailed     *prometheus.CounterVec
	overallScore   *prometheus.HistogramVec
	runTokens      *prometheus.HistogramVec
	runsInFlight   prometheus.Gauge

	operationsTotal  *prometheus.CounterVec
	stateGauges      *prometheus.GaugeVec
	genericLatency   *prometheus.HistogramVec
	genericHistogram *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// all metrics with reg. A nil reg registers with the default global
// registry. Registering the same metrics twice panics, so construct one
// instance per registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evaluation_run_duration_seconds",
				Help:    "Wall-clock duration of evaluation runs.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		chunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_chunks_total",
				Help: "Total number of chunks evaluated across all runs.",
			},
			[]string{"model"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_chunk_retries_total",
				Help: "Total number of chunk attempt retries, by reason.",
			},
			[]string{"reason"},
		),
		fallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_fallbacks_total",
				Help: "Total number of chunks completed via fallback synthesis.",
			},
			[]string{"model"},
		),
		runsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_runs_failed_total",
				Help: "Total number of evaluation runs that ended in an error.",
			},
			[]string{"model"},
		),
		overallScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evaluation_overall_score",
				Help:    "Distribution of final weighted overall scores.",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"model"},
		),
		runTokens: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evaluation_run_tokens",
				Help:    "Distribution of total token usage per run.",
				Buckets: prometheus.ExponentialBuckets(256, 2, 14),
			},
			[]string{"model"},
		),
		runsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "evaluation_runs_in_flight",
				Help: "Number of evaluation runs currently executing.",
			},
		),

		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluation_operations_total",
				Help: "Counter events not covered by a dedicated metric.",
			},
			[]string{"operation"},
		),
		stateGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "evaluation_system_state",
				Help: "Gauge values not covered by a dedicated metric.",
			},
			[]string{"metric"},
		),
		genericLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evaluation_operation_duration_seconds",
				Help:    "Latencies of operations not covered by a dedicated metric.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		genericHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evaluation_values",
				Help:    "Histogram values not covered by a dedicated metric.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 12),
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency routes a duration to its dedicated histogram, observed
// in seconds.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	switch operation {
	case "evaluation_run_duration":
		pm.runDuration.WithLabelValues(labelOr(labels, "model")).Observe(duration.Seconds())
	default:
		pm.genericLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "evaluation_chunks_total":
		pm.chunksTotal.WithLabelValues(labelOr(labels, "model")).Add(value)
	case "evaluation_chunk_retries_total":
		pm.retriesTotal.WithLabelValues(labelOr(labels, "reason")).Add(value)
	case "evaluation_fallbacks_total":
		pm.fallbacksTotal.WithLabelValues(labelOr(labels, "model")).Add(value)
	case "evaluation_runs_failed":
		pm.runsFailed.WithLabelValues(labelOr(labels, "model")).Add(value)
	default:
		pm.operationsTotal.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	switch metric {
	case "evaluation_runs_in_flight":
		pm.runsInFlight.Set(value)
	default:
		pm.stateGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "evaluation_overall_score":
		pm.overallScore.WithLabelValues(labelOr(labels, "model")).Observe(value)
	case "evaluation_run_tokens":
		pm.runTokens.WithLabelValues(labelOr(labels, "model")).Observe(value)
	default:
		pm.genericHistogram.WithLabelValues(metric).Observe(value)
	}
}

// labelOr returns the named label's value, or "unknown" when the label
// is absent or blank.
func labelOr(labels map[string]string, name string) string {
	if v, ok := labels[name]; ok && v != "" {
		return v
	}
	return "unknown"
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
