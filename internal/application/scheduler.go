package application

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
)

// eventEmitter serializes delivery to an optional sink so concurrent
// workers never interleave inside the sink. A nil emitter or nil sink
// drops events, which keeps emission unconditional at call sites.
type eventEmitter struct {
	mu   sync.Mutex
	sink ports.EventSink
}

func newEventEmitter(sink ports.EventSink) *eventEmitter {
	return &eventEmitter{sink: sink}
}

func (e *eventEmitter) emit(ctx context.Context, event domain.Event) {
	if e == nil || e.sink == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink.Emit(ctx, event)
}

// runBudget enforces the optional per-run token and call ceilings from
// atomically accumulated usage. A zero limit disables that ceiling.
type runBudget struct {
	maxTokens int64
	maxCalls  int64
	tokens    atomic.Int64
	calls     atomic.Int64
}

func newRunBudget(policy RunBudgetPolicy) *runBudget {
	return &runBudget{maxTokens: policy.MaxTokens, maxCalls: policy.MaxCalls}
}

// checkAtClaim reports whether accumulated usage already exceeds a
// ceiling. Workers call it when claiming a chunk, before any further judge
// call, so a run overshoots by at most the chunks in flight.
func (b *runBudget) checkAtClaim() error {
	if b.maxTokens > 0 {
		if used := b.tokens.Load(); used > b.maxTokens {
			return domain.NewBudgetExceededError("tokens", b.maxTokens, used)
		}
	}
	if b.maxCalls > 0 {
		if used := b.calls.Load(); used > b.maxCalls {
			return domain.NewBudgetExceededError("calls", b.maxCalls, used)
		}
	}
	return nil
}

// record folds one finished chunk into the accumulated usage.
func (b *runBudget) record(result domain.ChunkResult) {
	b.tokens.Add(int64(result.Usage.Total()))
	b.calls.Add(int64(result.AttemptsUsed))
}

// chunkScheduler fans chunk descriptors out to a bounded worker pool and
// collects results in index order. Workers claim indices from a shared
// cursor, so chunks dispatch in order even though they complete in any
// order.
//
// The scheduler has no cancellation primitive of its own. A fatal chunk
// error trips a latch that stops further claims; workers already inside a
// chunk finish it, and the first error surfaces from run. The caller's
// context still governs the judge calls each worker makes.
type chunkScheduler struct {
	evaluator *ChunkEvaluator
	events    *eventEmitter
	budget    *runBudget
	runID     string
}

func newChunkScheduler(evaluator *ChunkEvaluator, events *eventEmitter, budget *runBudget, runID string) *chunkScheduler {
	return &chunkScheduler{
		evaluator: evaluator,
		events:    events,
		budget:    budget,
		runID:     runID,
	}
}

// run evaluates every descriptor with at most concurrency workers and
// returns results positioned by chunk index. On failure the first fatal
// error is returned, wrapped with its chunk index; results are discarded
// because a partial run cannot be aggregated.
func (s *chunkScheduler) run(ctx context.Context, descriptors []domain.ChunkDescriptor, concurrency int) ([]domain.ChunkResult, error) {
	total := len(descriptors)
	results := make([]domain.ChunkResult, total)

	workers := concurrency
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}

	var (
		cursor atomic.Int64
		failed atomic.Bool

		// completionMu orders the completion count with the pair of events
		// announcing it, keeping progress monotonic in the stream.
		completionMu sync.Mutex
		completed    int
	)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if failed.Load() || ctx.Err() != nil {
					return ctx.Err()
				}
				index := int(cursor.Add(1)) - 1
				if index >= total {
					return nil
				}
				if err := s.budget.checkAtClaim(); err != nil {
					failed.Store(true)
					return err
				}

				s.events.emit(ctx, domain.NewChunkStartEvent(s.runID, index))
				result, err := s.evaluator.Evaluate(ctx, descriptors[index])
				if err != nil {
					failed.Store(true)
					s.events.emit(ctx, domain.NewChunkErrorEvent(s.runID, index, err))
					return domain.NewChunkFailedError(index, err)
				}

				s.budget.record(result)
				results[index] = result

				completionMu.Lock()
				completed++
				s.events.emit(ctx, domain.NewChunkCompleteEvent(s.runID, result))
				s.events.emit(ctx, domain.NewProgressEvent(s.runID, completed, total))
				completionMu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
