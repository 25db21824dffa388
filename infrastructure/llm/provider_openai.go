package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is the model used when a request does not name one.
const OpenAIDefaultModel = "gpt-4.1"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider adapts the OpenAI chat completion API to the
// CoreJudge interface.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newOpenAIProvider builds an OpenAI judge core, validating the base
// URL and timeout before constructing the underlying client.
func newOpenAIProvider(config ClientConfig) (CoreJudge, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = baseURL
	}

	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          openai.NewClientWithConfig(clientConfig),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends one judging request as a chat completion and
// normalizes the first choice into a Response. Truncation is reported
// when generation stopped at the output budget, so callers can retry
// with a shorter prompt instead of parsing clipped JSON.
func (p *openAIProvider) DoRequest(ctx context.Context, req Request) (Response, error) {
	apiReq := openai.ChatCompletionRequest{
		Model:     p.GetModel(),
		Messages:  p.buildMessages(req),
		MaxTokens: req.MaxOutputTokens,
	}
	if req.StrictJSON {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return Response{}, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, ErrNoResponseChoice
	}

	choice := resp.Choices[0]
	return Response{
		Text:      choice.Message.Content,
		RequestID: resp.ID,
		TokensIn:  p.tokenCounter.GetTokenCount(resp.Usage.PromptTokens, req.SystemPrompt+req.UserContent),
		TokensOut: p.tokenCounter.GetTokenCount(resp.Usage.CompletionTokens, choice.Message.Content),
		Truncated: choice.FinishReason == openai.FinishReasonLength,
	}, nil
}

// buildMessages arranges the optional system prompt and the chunk
// content as chat messages.
func (p *openAIProvider) buildMessages(req Request) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserContent,
	})
}

// handleError converts OpenAI failures into classified ProviderError
// values.
func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
	}

	message := apiErr.Message
	if message == "" {
		message = "unknown error"
	}
	return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
}
