package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GoogleDefaultModel is the model used when a request does not name one.
const GoogleDefaultModel = "gemini-2.5-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider adapts the Gemini API to the CoreJudge interface,
// translating requests into generation configs and API failures into
// classified provider errors.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newGoogleProvider builds a Gemini judge core from the client
// configuration. Only API key authentication is supported; a key that
// looks like a credentials file path is rejected so a misconfigured
// GOOGLE_API_KEY fails loudly instead of leaking a path to the API.
func newGoogleProvider(config ClientConfig) (CoreJudge, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	authConfig, err := buildAuthConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	client, err := genai.NewClient(context.Background(), authConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoRequest sends one judging request to Gemini and normalizes the
// result, falling back to estimated token counts when the response
// omits usage metadata.
func (p *googleProvider) DoRequest(ctx context.Context, req Request) (Response, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(req.UserContent, genai.RoleUser),
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.GetModel(), contents, p.buildGenerationConfig(req))
	if err != nil {
		return Response{}, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return Response{}, ErrEmptyResponse
	}

	var promptTokens, outputTokens int32
	if usage := resp.UsageMetadata; usage != nil {
		promptTokens = usage.PromptTokenCount
		outputTokens = usage.CandidatesTokenCount
	}

	truncated := len(resp.Candidates) > 0 &&
		resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens

	return Response{
		Text:      content,
		RequestID: resp.ResponseID,
		TokensIn:  p.tokenCount(promptTokens, req.SystemPrompt+req.UserContent),
		TokensOut: p.tokenCount(outputTokens, content),
		Truncated: truncated,
	}, nil
}

// tokenCount prefers the API-reported count and estimates from the
// text when the API reported nothing.
func (p *googleProvider) tokenCount(reported int32, text string) int {
	if reported > 0 {
		return int(reported)
	}
	return p.tokenCounter.EstimateTokens(text)
}

// buildGenerationConfig maps a judge request onto Gemini generation
// settings: system instruction, output token cap, and JSON response
// mode for strict verdict parsing.
func (p *googleProvider) buildGenerationConfig(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(min(req.MaxOutputTokens, math.MaxInt32))
	}

	if req.StrictJSON {
		config.ResponseMIMEType = "application/json"
	}

	return config
}

// handleError converts Gemini failures into ProviderError values.
// Safety filter blocks get their own content-policy classification
// since retrying them is pointless; everything else is classified by
// HTTP status.
func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
	}

	if safetyBlocked(apiErr) {
		return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
			"request blocked by safety filters", err)
	}

	message := apiErr.Message
	if message == "" && len(apiErr.Errors) > 0 {
		message = apiErr.Errors[0].Message
	}
	return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
}

// buildAuthConfig validates the API key and produces the Gemini client
// configuration. Service account files are rejected with pointers to
// the supported alternatives.
func buildAuthConfig(config ClientConfig) (*genai.ClientConfig, error) {
	if looksLikeFilePath(config.APIKey) {
		if _, err := os.Stat(config.APIKey); err != nil {
			return nil, fmt.Errorf("credentials file not found: %s", config.APIKey)
		}
		return nil, fmt.Errorf("service account credentials are not supported here; " +
			"use API key authentication or set GOOGLE_APPLICATION_CREDENTIALS")
	}

	return &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}, nil
}

// looksLikeFilePath reports whether a credential string resembles a
// file path rather than an API key.
func looksLikeFilePath(s string) bool {
	if filepath.IsAbs(s) || strings.ContainsAny(s, `/\`) {
		return true
	}

	lower := strings.ToLower(s)
	for _, suffix := range []string{".json", ".p12", ".pem"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return strings.Contains(lower, "credentials")
}

// safetyBlocked reports whether a Gemini API error stems from content
// safety filtering rather than a transport or quota problem.
func safetyBlocked(apiErr *googleapi.Error) bool {
	lower := strings.ToLower(apiErr.Message)
	for _, keyword := range []string{"safety", "policy", "blocked"} {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	for _, item := range apiErr.Errors {
		if item.Reason == "SAFETY" || item.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}
