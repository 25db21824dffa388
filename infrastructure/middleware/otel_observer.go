package middleware

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
)

var _ ports.EventSink = (*OTelRunObserver)(nil)

// OTelRunObserver translates the evaluation event stream into
// OpenTelemetry spans. Each run gets one span, opened on the start event
// and closed on the complete event, with retries, partial payloads, and
// chunk failures recorded as span events along the way.
//
// The observer decorates another sink: every event is forwarded to next
// after the span bookkeeping, so tracing composes with NDJSON streaming
// or any other consumer. A nil next disables forwarding.
type OTelRunObserver struct {
	tracer trace.Tracer
	next   ports.EventSink

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewOTelRunObserver creates an observer that traces runs and forwards
// events to next. Pass nil for next when tracing is the only consumer.
func NewOTelRunObserver(next ports.EventSink) *OTelRunObserver {
	return &OTelRunObserver{
		tracer: otel.Tracer("evaluation-engine"),
		next:   next,
		spans:  make(map[string]trace.Span),
	}
}

// Emit implements the EventSink interface. Chunk-start and progress
// events pass through without span events to keep traces readable on
// large runs.
func (o *OTelRunObserver) Emit(ctx context.Context, event domain.Event) {
	switch event.Kind {
	case domain.EventStart:
		o.startRun(ctx, event)
	case domain.EventChunkRetry:
		o.addSpanEvent(event.RunID, "chunk.retry", trace.WithAttributes(
			attribute.Int("chunk.index", event.ChunkIndex),
			attribute.Int("chunk.attempt", event.Attempt),
			attribute.String("chunk.retry_reason", string(event.Reason)),
		))
	case domain.EventChunkPartial:
		o.addSpanEvent(event.RunID, "chunk.partial", trace.WithAttributes(
			attribute.Int("chunk.index", event.ChunkIndex),
			attribute.Int("chunk.attempt", event.Attempt),
			attribute.StringSlice("chunk.missing_fields", event.MissingFields),
		))
	case domain.EventChunkComplete:
		o.addSpanEvent(event.RunID, "chunk.complete", trace.WithAttributes(
			attribute.Int("chunk.index", event.ChunkIndex),
			attribute.Int("chunk.overall_score", event.OverallScore),
			attribute.Bool("chunk.fallback_applied", event.FallbackApplied),
		))
	case domain.EventChunkError:
		o.recordChunkError(event)
	case domain.EventComplete:
		o.completeRun(event)
	}

	if o.next != nil {
		o.next.Emit(ctx, event)
	}
}

// CloseAll ends any spans still open, marking them with err when non-nil.
// Runs that abort before their complete event, via a fatal chunk, a
// budget stop, or cancellation, leave a dangling span; callers invoke
// CloseAll after the run returns an error to finish the trace.
func (o *OTelRunObserver) CloseAll(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for runID, span := range o.spans {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Error, "run abandoned without completion")
		}
		span.End()
		delete(o.spans, runID)
	}
}

func (o *OTelRunObserver) startRun(ctx context.Context, event domain.Event) {
	_, span := o.tracer.Start(ctx, "EvaluationEngine.Evaluate")
	span.SetAttributes(
		attribute.String("run.id", event.RunID),
		attribute.String("run.model", event.Model),
		attribute.Int("run.chunks", event.Total),
	)

	o.mu.Lock()
	o.spans[event.RunID] = span
	o.mu.Unlock()
}

func (o *OTelRunObserver) recordChunkError(event domain.Event) {
	o.mu.Lock()
	span, ok := o.spans[event.RunID]
	o.mu.Unlock()
	if !ok {
		return
	}

	span.AddEvent("chunk.error", trace.WithAttributes(
		attribute.Int("chunk.index", event.ChunkIndex),
		attribute.String("chunk.error", event.Error),
	))
	span.SetStatus(codes.Error, event.Error)
}

func (o *OTelRunObserver) completeRun(event domain.Event) {
	o.mu.Lock()
	span, ok := o.spans[event.RunID]
	delete(o.spans, event.RunID)
	o.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.Int("run.overall_score", event.OverallScore))
	span.SetStatus(codes.Ok, "evaluation completed")
	span.End()
}

func (o *OTelRunObserver) addSpanEvent(runID, name string, opts ...trace.EventOption) {
	o.mu.Lock()
	span, ok := o.spans[runID]
	o.mu.Unlock()
	if !ok {
		return
	}
	span.AddEvent(name, opts...)
}
