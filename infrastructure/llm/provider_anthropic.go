package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is the model used when a request does not name one.
const AnthropicDefaultModel = "claude-4-sonnet-20250514"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider adapts the Claude Messages API to the CoreJudge
// interface. Claude has no JSON-constrained output mode, so StrictJSON
// relies on the schema instructions the system prompt already carries.
type anthropicProvider struct {
	BaseProvider
	client          anthropic.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newAnthropicProvider builds a Claude judge core, validating the base
// URL override when one is configured.
func newAnthropicProvider(config ClientConfig) (CoreJudge, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &anthropicProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          anthropic.NewClient(opts...),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoRequest sends one judging request to the Messages API and
// assembles the text blocks of the reply into a single response.
func (p *anthropicProvider) DoRequest(ctx context.Context, req Request) (Response, error) {
	message, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return Response{}, p.wrapError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	content := text.String()
	if content == "" {
		return Response{}, ErrEmptyResponse
	}

	return Response{
		Text:      content,
		RequestID: message.ID,
		TokensIn:  p.tokenCounter.GetTokenCount(int(message.Usage.InputTokens), req.SystemPrompt+req.UserContent),
		TokensOut: p.tokenCounter.GetTokenCount(int(message.Usage.OutputTokens), content),
		Truncated: message.StopReason == anthropic.StopReasonMaxTokens,
	}, nil
}

// buildParams maps a judge request onto Messages API parameters. The
// system prompt travels in the dedicated system field rather than as a
// conversation turn.
func (p *anthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.GetModel()),
		MaxTokens: int64(req.MaxOutputTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserContent)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	return params
}

// wrapError converts Claude SDK failures into classified
// ProviderError values.
func (p *anthropicProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.errorClassifier.ClassifyHTTPError(apiErr.StatusCode, "request failed", err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
