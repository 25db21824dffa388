package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
	"github.com/ahrav/go-verso/internal/segment"
)

// Metric names recorded by the engine.
const (
	metricRunDuration     = "evaluation_run_duration"
	metricRunsInFlight    = "evaluation_runs_in_flight"
	metricRunsFailed      = "evaluation_runs_failed"
	metricChunksEvaluated = "evaluation_chunks_total"
	metricChunkRetries    = "evaluation_chunk_retries_total"
	metricFallbacks       = "evaluation_fallbacks_total"
	metricOverallScore    = "evaluation_overall_score"
	metricRunTokens       = "evaluation_run_tokens"
)

// Config wires an Engine: the profile governing every run and an optional
// metrics collector.
type Config struct {
	// Profile holds the run policies. Zero fields take package defaults;
	// the whole profile is validated at construction.
	Profile EvaluationProfile

	// Metrics receives operational measurements. Nil disables collection.
	Metrics ports.MetricsCollector
}

// RunOptions carries the per-call knobs of Engine.Evaluate.
type RunOptions struct {
	// Concurrency bounds the worker pool for this run. Zero or negative
	// adopts the profile's concurrency.
	Concurrency int

	// Sink receives lifecycle events for this run. Nil disables the
	// stream; the returned report is unaffected either way.
	Sink ports.EventSink
}

// Engine is the synchronous entry point of the evaluation pipeline. One
// engine serves many concurrent runs; all per-run state lives in the run.
type Engine struct {
	resolver ports.JudgeResolver
	profile  EvaluationProfile
	prompts  *PromptBuilder
	metrics  ports.MetricsCollector
	validate *validator.Validate
	inFlight atomic.Int64
}

// NewEngine validates the profile, compiles its prompt templates, and
// returns an engine routing judge calls through resolver.
func NewEngine(resolver ports.JudgeResolver, cfg Config) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("judge resolver is required")
	}

	profile := cfg.Profile.withDefaults()
	validate, err := newProfileValidator()
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(&profile); err != nil {
		return nil, fmt.Errorf("invalid evaluation profile: %w", err)
	}

	prompts, err := NewPromptBuilder(profile)
	if err != nil {
		return nil, err
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Engine{
		resolver: resolver,
		profile:  profile,
		prompts:  prompts,
		metrics:  metrics,
		validate: validate,
	}, nil
}

// Evaluate runs the full pipeline for one request: normalize and validate,
// resolve the judge, segment and pair the texts, lint for copy-through,
// evaluate every chunk concurrently, and aggregate into the final report.
// The report is returned synchronously; opts.Sink, when set, streams the
// same run incrementally.
func (e *Engine) Evaluate(ctx context.Context, req domain.EvaluationRequest, opts RunOptions) (*domain.FinalEvaluation, error) {
	start := time.Now()
	e.metrics.RecordGauge(metricRunsInFlight, float64(e.inFlight.Add(1)), nil)
	defer func() {
		e.metrics.RecordGauge(metricRunsInFlight, float64(e.inFlight.Add(-1)), nil)
	}()

	req = req.Normalize(e.profile.Chunking.ChunkSize, e.profile.Chunking.Overlap)
	if req.Model == "" {
		req.Model = e.profile.Model
	}
	if err := e.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("invalid evaluation request: %w", err)
	}

	client, err := e.resolver.Resolve(req.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve judge for model %q: %w", req.Model, err)
	}
	model := client.GetModel()

	descriptors := buildDescriptors(req)
	warnings := segment.DetectCopyThrough(descriptors, e.profile.Lint.Threshold())

	runID := uuid.NewString()
	emitter := newEventEmitter(opts.Sink)

	evaluator, err := NewChunkEvaluator(ChunkEvaluatorConfig{
		Judge:           client,
		Prompts:         e.prompts,
		AuthorIntention: req.AuthorIntention,
		Retry:           e.profile.Retry,
		TokenBudget:     e.profile.TokenBudget,
		OnRetry: func(index, attempt int, reason domain.RetryReason) {
			emitter.emit(ctx, domain.NewChunkRetryEvent(runID, index, attempt, reason))
			e.metrics.RecordCounter(metricChunkRetries, 1, map[string]string{"reason": string(reason)})
		},
		OnPartial: func(index, attempt int, missing []string) {
			emitter.emit(ctx, domain.NewChunkPartialEvent(runID, index, attempt, missing))
		},
	})
	if err != nil {
		return nil, err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = e.profile.Concurrency
	}

	emitter.emit(ctx, domain.NewStartEvent(runID, model, len(descriptors)))

	scheduler := newChunkScheduler(evaluator, emitter, newRunBudget(e.profile.RunBudget), runID)
	results, err := scheduler.run(ctx, descriptors, concurrency)
	if err != nil {
		e.metrics.RecordCounter(metricRunsFailed, 1, map[string]string{"model": model})
		return nil, err
	}

	final, err := domain.Aggregate(descriptors, results, domain.AggregateMeta{
		RunID:     runID,
		Model:     model,
		ChunkSize: req.ChunkSize,
		Overlap:   req.Overlap,
		Warnings:  warnings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate results: %w", err)
	}

	emitter.emit(ctx, domain.NewCompleteEvent(runID, final.OverallScore, len(descriptors)))

	labels := map[string]string{"model": model}
	e.metrics.RecordLatency(metricRunDuration, time.Since(start), labels)
	e.metrics.RecordCounter(metricChunksEvaluated, float64(len(results)), labels)
	if n := final.FallbackCount(); n > 0 {
		e.metrics.RecordCounter(metricFallbacks, float64(n), labels)
	}
	e.metrics.RecordHistogram(metricOverallScore, float64(final.OverallScore), labels)
	e.metrics.RecordHistogram(metricRunTokens, float64(final.Meta.TokenTotals.Total()), labels)

	return final, nil
}

// buildDescriptors segments the source with overlap, slices the translation
// proportionally, and pairs the two index by index. Lengths are rune
// counts; the source length doubles as the chunk's aggregation weight.
func buildDescriptors(req domain.EvaluationRequest) []domain.ChunkDescriptor {
	sourceChunks := segment.SplitWithOverlap(req.Source, req.ChunkSize, req.Overlap)
	translationSlices := segment.ProportionalSlice(req.Translation, len(sourceChunks))

	descriptors := make([]domain.ChunkDescriptor, len(sourceChunks))
	for i, src := range sourceChunks {
		descriptors[i] = domain.ChunkDescriptor{
			Index:             i,
			SourceChunk:       src,
			TranslationChunk:  translationSlices[i],
			SourceLength:      utf8.RuneCountInString(src),
			TranslationLength: utf8.RuneCountInString(translationSlices[i]),
		}
	}
	return descriptors
}

// noopMetrics discards all measurements. It stands in when no collector is
// configured so the engine never branches on nil.
type noopMetrics struct{}

func (noopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (noopMetrics) RecordCounter(string, float64, map[string]string)      {}
func (noopMetrics) RecordGauge(string, float64, map[string]string)        {}
func (noopMetrics) RecordHistogram(string, float64, map[string]string)    {}
