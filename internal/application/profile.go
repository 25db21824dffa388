// Package application implements the chunked evaluation pipeline: YAML
// evaluation profiles, prompt construction, judge response parsing, the
// per-chunk retry state machine, the bounded-concurrency scheduler, and the
// engine entry point that ties them together.
package application

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/ahrav/go-verso/internal/domain"
)

// Pipeline defaults applied to an EvaluationProfile when the corresponding
// field is zero. Chunking defaults live in the domain package next to the
// request type they complete.
const (
	// DefaultConcurrency is the worker pool size for chunk evaluation.
	DefaultConcurrency = 4

	// DefaultMaxAttempts bounds judge calls per chunk, counting the first.
	DefaultMaxAttempts = 3

	// DefaultInitialOutputTokens is the starting output budget per call.
	DefaultInitialOutputTokens = 2048

	// DefaultMaxOutputTokens is the hard ceiling the output budget grows
	// toward across retries.
	DefaultMaxOutputTokens = 8192

	// DefaultBudgetGrowthFactor multiplies the output budget after a
	// truncated or missing response.
	DefaultBudgetGrowthFactor = 1.5

	// DefaultBackoffBase is the first retry delay for malformed responses
	// and transient transport failures.
	DefaultBackoffBase = 500 * time.Millisecond

	// DefaultBackoffCap bounds the exponential backoff delay.
	DefaultBackoffCap = 8 * time.Second

	// DefaultJitterPercent is the random fraction added to or subtracted
	// from each backoff delay.
	DefaultJitterPercent = 0.1

	// DefaultCopyThroughThreshold is the similarity at or above which a
	// chunk's translation is flagged as untranslated.
	DefaultCopyThroughThreshold = 0.92

	// DefaultPrimaryLanguage and DefaultSecondaryLanguage are the BCP-47
	// tags of the commentary language pair.
	DefaultPrimaryLanguage   = "en"
	DefaultSecondaryLanguage = "zh"
)

// EvaluationProfile is the YAML-configurable policy for evaluation runs:
// which judge to use, the commentary language pair, chunking and
// concurrency defaults, the retry and token budget policies, optional run
// ceilings, and prompt template overrides. Zero fields adopt package
// defaults, so an empty profile is fully usable.
type EvaluationProfile struct {
	// Model is the default judge identifier in "provider/model" or bare
	// "provider" form, used when an evaluation request does not name one.
	// Empty routes to the resolver's default provider.
	Model string `yaml:"model,omitempty" validate:"omitempty,modelref"`

	// Languages is the commentary language pair.
	Languages LanguagePair `yaml:"languages"`

	// Chunking sets the default chunk size and overlap for requests that
	// leave them zero.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Concurrency is the default worker pool size.
	Concurrency int `yaml:"concurrency" validate:"min=1,max=64"`

	// Retry controls the per-chunk retry policy.
	Retry RetryPolicy `yaml:"retry"`

	// TokenBudget controls the adaptive output token budget.
	TokenBudget TokenBudgetPolicy `yaml:"token_budget"`

	// RunBudget sets optional whole-run resource ceilings.
	RunBudget RunBudgetPolicy `yaml:"run_budget"`

	// Lint configures the copy-through lint.
	Lint LintConfig `yaml:"lint"`

	// Prompts optionally overrides the built-in prompt templates.
	Prompts PromptOverrides `yaml:"prompts"`
}

// LanguagePair names the two commentary languages by BCP-47 tag. The
// primary language also carries the judge's instructions.
type LanguagePair struct {
	Primary   string `yaml:"primary" validate:"required,langtag"`
	Secondary string `yaml:"secondary" validate:"required,langtag"`
}

// ChunkingConfig carries the profile's default chunking parameters.
type ChunkingConfig struct {
	// ChunkSize is the target source chunk size in runes.
	ChunkSize int `yaml:"chunk_size" validate:"min=1,max=100000"`

	// Overlap is the number of runes duplicated across chunk boundaries.
	// It must stay below the chunk size.
	Overlap int `yaml:"overlap" validate:"min=0,ltfield=ChunkSize"`
}

// RetryPolicy bounds judge calls per chunk and shapes the backoff delays
// between them. Delays are configured in milliseconds to keep the YAML
// plain.
type RetryPolicy struct {
	// MaxAttempts is the judge call ceiling per chunk, counting the
	// first attempt.
	MaxAttempts int `yaml:"max_attempts" validate:"min=1,max=10"`

	// BackoffBaseMS is the first retry delay in milliseconds.
	BackoffBaseMS int `yaml:"backoff_base_ms" validate:"min=1,max=60000"`

	// BackoffCapMS caps the exponential delay in milliseconds.
	BackoffCapMS int `yaml:"backoff_cap_ms" validate:"min=1,max=300000"`

	// JitterPercent is the random fraction, between 0 and 1, applied to
	// each delay to avoid retry storms.
	JitterPercent float64 `yaml:"jitter_percent" validate:"gte=0,lte=1"`
}

// BackoffBase returns the base delay as a duration.
func (p RetryPolicy) BackoffBase() time.Duration {
	return time.Duration(p.BackoffBaseMS) * time.Millisecond
}

// BackoffCap returns the delay ceiling as a duration.
func (p RetryPolicy) BackoffCap() time.Duration {
	return time.Duration(p.BackoffCapMS) * time.Millisecond
}

// TokenBudgetPolicy shapes the adaptive output token budget: every chunk
// starts at the initial budget, and truncated or incomplete responses grow
// it by the growth factor up to the ceiling.
type TokenBudgetPolicy struct {
	// InitialOutputTokens is the starting output budget per judge call.
	InitialOutputTokens int `yaml:"initial_output_tokens" validate:"min=1,ltefield=MaxOutputTokens"`

	// MaxOutputTokens is the hard budget ceiling.
	MaxOutputTokens int `yaml:"max_output_tokens" validate:"min=1"`

	// GrowthFactor multiplies the budget on each growth step and must
	// exceed 1 for growth to terminate at the ceiling.
	GrowthFactor float64 `yaml:"growth_factor" validate:"gt=1,lte=4"`
}

// RunBudgetPolicy sets optional whole-run ceilings checked between chunk
// claims. A zero limit disables that check.
type RunBudgetPolicy struct {
	// MaxTokens caps the total tokens, input plus output, a run may
	// consume across all judge calls.
	MaxTokens int64 `yaml:"max_tokens" validate:"min=0"`

	// MaxCalls caps the total judge calls a run may make, counting
	// retries.
	MaxCalls int64 `yaml:"max_calls" validate:"min=0"`
}

// Enabled reports whether any ceiling is configured.
func (p RunBudgetPolicy) Enabled() bool { return p.MaxTokens > 0 || p.MaxCalls > 0 }

// LintConfig configures the copy-through lint that flags untranslated
// passages in the report metadata.
type LintConfig struct {
	// Disabled turns the lint off entirely.
	Disabled bool `yaml:"disabled"`

	// CopyThroughThreshold is the source/translation similarity at or
	// above which a chunk is flagged.
	CopyThroughThreshold float64 `yaml:"copy_through_threshold" validate:"gt=0,lte=1"`
}

// Threshold returns the effective lint threshold, zero when disabled.
// A zero threshold turns the similarity scan off.
func (c LintConfig) Threshold() float64 {
	if c.Disabled {
		return 0
	}
	return c.CopyThroughThreshold
}

// PromptOverrides replaces the built-in prompt templates with custom
// text/template sources. Empty fields keep the defaults. Override
// templates receive the same data and function map as the built-ins.
type PromptOverrides struct {
	System string `yaml:"system,omitempty"`
	User   string `yaml:"user,omitempty"`
}

// DefaultProfile returns the profile used when no YAML profile is loaded.
func DefaultProfile() EvaluationProfile {
	return EvaluationProfile{}.withDefaults()
}

// withDefaults returns a copy of the profile with zero fields replaced by
// package defaults. Profiles are normalized this way before validation so
// a sparse YAML file only needs to name the fields it changes.
func (p EvaluationProfile) withDefaults() EvaluationProfile {
	if p.Languages.Primary == "" {
		p.Languages.Primary = DefaultPrimaryLanguage
	}
	if p.Languages.Secondary == "" {
		p.Languages.Secondary = DefaultSecondaryLanguage
	}
	if p.Chunking.ChunkSize == 0 {
		p.Chunking.ChunkSize = domain.DefaultChunkSize
		if p.Chunking.Overlap == 0 {
			p.Chunking.Overlap = domain.DefaultOverlap
		}
	}
	if p.Concurrency == 0 {
		p.Concurrency = DefaultConcurrency
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if p.Retry.BackoffBaseMS == 0 {
		p.Retry.BackoffBaseMS = int(DefaultBackoffBase / time.Millisecond)
	}
	if p.Retry.BackoffCapMS == 0 {
		p.Retry.BackoffCapMS = int(DefaultBackoffCap / time.Millisecond)
	}
	if p.Retry.JitterPercent == 0 {
		p.Retry.JitterPercent = DefaultJitterPercent
	}
	if p.TokenBudget.InitialOutputTokens == 0 {
		p.TokenBudget.InitialOutputTokens = DefaultInitialOutputTokens
	}
	if p.TokenBudget.MaxOutputTokens == 0 {
		p.TokenBudget.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if p.TokenBudget.GrowthFactor == 0 {
		p.TokenBudget.GrowthFactor = DefaultBudgetGrowthFactor
	}
	if p.Lint.CopyThroughThreshold == 0 {
		p.Lint.CopyThroughThreshold = DefaultCopyThroughThreshold
	}
	return p
}

// newProfileValidator returns a validator with the profile's custom rules
// registered: modelref for judge identifiers and langtag for BCP-47
// language tags.
func newProfileValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := v.RegisterValidation("modelref", validateModelRef); err != nil {
		return nil, fmt.Errorf("failed to register modelref validator: %w", err)
	}
	if err := v.RegisterValidation("langtag", validateLangTag); err != nil {
		return nil, fmt.Errorf("failed to register langtag validator: %w", err)
	}
	return v, nil
}

// validateModelRef accepts judge identifiers in "provider" or
// "provider/model" form where neither side is empty.
func validateModelRef(fl validator.FieldLevel) bool {
	ref := fl.Field().String()
	if ref == "" {
		return true
	}

	for i, ch := range ref {
		if ch != '/' {
			continue
		}
		if i == 0 {
			return false // provider name cannot be empty
		}
		if i == len(ref)-1 {
			return false // model name cannot be empty
		}
		return true
	}

	// No slash: a bare provider name routed to its default model.
	return true
}

// validateLangTag accepts well-formed BCP-47 language tags.
func validateLangTag(fl validator.FieldLevel) bool {
	_, err := language.Parse(fl.Field().String())
	return err == nil
}
