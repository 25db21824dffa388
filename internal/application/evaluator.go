package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
)

// RetryCallback observes an imminent retry of a chunk attempt.
type RetryCallback func(index, attempt int, reason domain.RetryReason)

// PartialCallback observes a partial payload detected on a chunk attempt.
type PartialCallback func(index, attempt int, missing []string)

// ChunkEvaluatorConfig assembles a ChunkEvaluator.
type ChunkEvaluatorConfig struct {
	// Judge is the resolved client every attempt goes through.
	Judge ports.JudgeClient

	// Prompts renders the system and per-chunk user prompts.
	Prompts *PromptBuilder

	// AuthorIntention is the run's optional author guidance, rendered into
	// every user prompt.
	AuthorIntention string

	// Retry and TokenBudget tune the attempt loop. Zero fields take the
	// package defaults.
	Retry       RetryPolicy
	TokenBudget TokenBudgetPolicy

	// OnRetry and OnPartial are optional observers; either may be nil.
	OnRetry   RetryCallback
	OnPartial PartialCallback
}

// ChunkEvaluator drives one chunk through the judge to a validated
// ChunkResult. Each attempt is classified as success, missing JSON, invalid
// JSON, partial payload, or transport failure; the classification decides
// whether to finish, retry with an adjusted output-token budget, back off,
// or synthesize a fallback. The evaluator is immutable after construction
// and shared by all scheduler workers of a run.
type ChunkEvaluator struct {
	judge           ports.JudgeClient
	prompts         *PromptBuilder
	validate        *validator.Validate
	authorIntention string
	retry           RetryPolicy
	tokenBudget     TokenBudgetPolicy
	onRetry         RetryCallback
	onPartial       PartialCallback
}

// NewChunkEvaluator validates the wiring and fills policy defaults.
func NewChunkEvaluator(cfg ChunkEvaluatorConfig) (*ChunkEvaluator, error) {
	if cfg.Judge == nil {
		return nil, errors.New("judge client is required")
	}
	if cfg.Prompts == nil {
		return nil, errors.New("prompt builder is required")
	}
	normalized := EvaluationProfile{Retry: cfg.Retry, TokenBudget: cfg.TokenBudget}.withDefaults()
	return &ChunkEvaluator{
		judge:           cfg.Judge,
		prompts:         cfg.Prompts,
		validate:        validator.New(),
		authorIntention: cfg.AuthorIntention,
		retry:           normalized.Retry,
		tokenBudget:     normalized.TokenBudget,
		onRetry:         cfg.OnRetry,
		onPartial:       cfg.OnPartial,
	}, nil
}

// Evaluate runs the attempt loop for one descriptor. It returns a validated
// result, complete or fallback-synthesized, or an error. The error path is
// reserved for failures retrying cannot cure: fatal judge errors, exhausted
// transport retries, and context cancellation. Incomplete judge output never
// errors; it degrades to a fallback result that says so.
func (e *ChunkEvaluator) Evaluate(ctx context.Context, d domain.ChunkDescriptor) (domain.ChunkResult, error) {
	userPrompt, err := e.prompts.User(d, e.authorIntention)
	if err != nil {
		return domain.ChunkResult{}, err
	}
	systemPrompt := e.prompts.System()

	budget := e.tokenBudget.InitialOutputTokens

	var (
		usage            domain.TokenUsage
		requestID        string
		lastKnownOverall *int
		fallbackBase     domain.ChunkResult
		fallbackMissing  []string
		haveParse        bool
		attempt          int
	)

	for attempt = 1; ; attempt++ {
		resp, err := e.judge.Evaluate(ctx, ports.JudgeRequest{
			SystemPrompt:    systemPrompt,
			UserContent:     userPrompt,
			MaxOutputTokens: budget,
			StrictJSON:      true,
		})
		usage = usage.Add(resp.Usage)
		if resp.RequestID != "" {
			requestID = resp.RequestID
		}

		if err != nil {
			if ports.IsFatal(err) || !ports.IsRetryable(err) {
				return domain.ChunkResult{}, fmt.Errorf("judge call for chunk %d failed: %w", d.Index, err)
			}
			if attempt >= e.retry.MaxAttempts {
				return domain.ChunkResult{}, fmt.Errorf("judge call for chunk %d failed after %d attempts: %w", d.Index, attempt, err)
			}
			e.notifyRetry(d.Index, attempt, domain.RetryTransport)
			if sleepErr := e.backoff(ctx, attempt); sleepErr != nil {
				return domain.ChunkResult{}, sleepErr
			}
			continue
		}

		// No extractable JSON, or the provider reports it clipped the
		// output: the response was likely cut short, so the only useful
		// lever is a larger output budget. Retry immediately.
		raw, found := extractJSON(resp.RawText)
		if !found || resp.Truncated {
			if attempt >= e.retry.MaxAttempts {
				break
			}
			budget = e.growBudget(budget)
			e.notifyRetry(d.Index, attempt, domain.RetryMissingJSON)
			continue
		}

		// JSON present but undecodable: the judge is being sloppy rather
		// than short on room. Keep the budget and back off before asking
		// again.
		parsed, decodeErr := decodeJudgeResponse(raw)
		if decodeErr != nil {
			if attempt >= e.retry.MaxAttempts {
				break
			}
			e.notifyRetry(d.Index, attempt, domain.RetryInvalidJSON)
			if sleepErr := e.backoff(ctx, attempt); sleepErr != nil {
				return domain.ChunkResult{}, sleepErr
			}
			continue
		}

		result, missing, overall := assembleChunkResult(d.Index, parsed)
		if overall != nil {
			lastKnownOverall = overall
		}
		if len(missing) == 0 {
			return e.finish(result, requestID, usage, attempt)
		}

		e.notifyPartial(d.Index, attempt, missing)
		if attempt < e.retry.MaxAttempts && budget < e.tokenBudget.MaxOutputTokens {
			budget = e.growBudget(budget)
			e.notifyRetry(d.Index, attempt, domain.RetryPartial)
			continue
		}

		// Out of attempts or out of budget headroom: this parse is the
		// best material the fallback will get.
		fallbackBase, fallbackMissing, haveParse = result, missing, true
		break
	}

	// Attempts are exhausted. Synthesize from the final partial parse, or
	// from an empty shell when the last attempt produced no usable JSON.
	if !haveParse {
		fallbackBase, fallbackMissing, _ = assembleChunkResult(d.Index, &judgeResponse{})
	}
	neutral := domain.NeutralFallbackScore
	if lastKnownOverall != nil {
		neutral = *lastKnownOverall
	}
	synthesizeFallback(&fallbackBase, fallbackMissing, neutral)
	return e.finish(fallbackBase, requestID, usage, attempt)
}

// finish stamps the per-chunk accounting fields and runs the structural
// validation every returned result must pass.
func (e *ChunkEvaluator) finish(result domain.ChunkResult, requestID string, usage domain.TokenUsage, attempts int) (domain.ChunkResult, error) {
	result.JudgeRequestID = requestID
	result.Usage = usage
	result.AttemptsUsed = attempts
	if err := e.validate.Struct(&result); err != nil {
		return domain.ChunkResult{}, fmt.Errorf("chunk %d produced a malformed result: %w", result.Index, err)
	}
	return result, nil
}

// growBudget raises the output-token budget by the configured factor,
// bounded by the hard ceiling. Growth always makes progress so a small
// factor cannot stall the loop.
func (e *ChunkEvaluator) growBudget(budget int) int {
	grown := int(math.Round(float64(budget) * e.tokenBudget.GrowthFactor))
	if grown <= budget {
		grown = budget + 1
	}
	if grown > e.tokenBudget.MaxOutputTokens {
		grown = e.tokenBudget.MaxOutputTokens
	}
	return grown
}

// backoff sleeps for the attempt-indexed delay or returns early when the
// context is done.
func (e *ChunkEvaluator) backoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.backoffDelay(attempt)):
		return nil
	}
}

// backoffDelay computes the exponential delay after the given 1-based
// attempt, capped and jittered to avoid retry alignment across workers.
func (e *ChunkEvaluator) backoffDelay(attempt int) time.Duration {
	base := e.retry.BackoffBase()
	ceiling := e.retry.BackoffCap()

	delay := base * (1 << (attempt - 1))
	if delay > ceiling || delay <= 0 {
		delay = ceiling
	}
	if e.retry.JitterPercent > 0 {
		if jitter := int64(float64(delay) * e.retry.JitterPercent); jitter > 0 {
			delay += time.Duration(rand.Int64N(2*jitter) - jitter)
		}
	}
	if delay < base {
		delay = base
	}
	return delay
}

func (e *ChunkEvaluator) notifyRetry(index, attempt int, reason domain.RetryReason) {
	if e.onRetry != nil {
		e.onRetry(index, attempt, reason)
	}
}

func (e *ChunkEvaluator) notifyPartial(index, attempt int, missing []string) {
	if e.onPartial != nil {
		e.onPartial(index, attempt, missing)
	}
}
