package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
)

// RecordingSink is a thread-safe ports.EventSink that captures every
// event for later assertions. The zero value is ready to use.
type RecordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

// Emit implements ports.EventSink.
func (s *RecordingSink) Emit(_ context.Context, event domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of the captured events in emission order.
func (s *RecordingSink) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

// Kinds returns the captured event kinds in emission order.
func (s *RecordingSink) Kinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]domain.EventKind, len(s.events))
	for i, ev := range s.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// CountKind reports how many events of one kind were captured.
func (s *RecordingSink) CountKind(kind domain.EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// FirstOfKind returns the first captured event of one kind and whether
// any was captured.
func (s *RecordingSink) FirstOfKind(kind domain.EventKind) (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return domain.Event{}, false
}

// Verify interface compliance at compile time.
var _ ports.EventSink = (*RecordingSink)(nil)

// RecordingMetrics is a thread-safe ports.MetricsCollector that keeps
// what it was given: counters are summed, gauges keep the last value,
// histograms and latencies accumulate.
type RecordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
	latencies  map[string][]time.Duration
}

// NewRecordingMetrics creates an empty recorder.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		latencies:  make(map[string][]time.Duration),
	}
}

// RecordLatency implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies[operation] = append(r.latencies[operation], duration)
}

// RecordCounter implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordCounter(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
}

// RecordGauge implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[metric] = value
}

// RecordHistogram implements ports.MetricsCollector.
func (r *RecordingMetrics) RecordHistogram(metric string, value float64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric] = append(r.histograms[metric], value)
}

// Counter returns the accumulated value of one counter.
func (r *RecordingMetrics) Counter(metric string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[metric]
}

// Gauge returns the last recorded value of one gauge.
func (r *RecordingMetrics) Gauge(metric string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gauges[metric]
}

// HistogramValues returns the recorded values of one histogram.
func (r *RecordingMetrics) HistogramValues(metric string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.histograms[metric]...)
}

// LatencyCount reports how many latencies were recorded for an operation.
func (r *RecordingMetrics) LatencyCount(operation string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.latencies[operation])
}

// Verify interface compliance at compile time.
var _ ports.MetricsCollector = (*RecordingMetrics)(nil)
