package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
)

func TestMockJudgeClient_DefaultOutcome(t *testing.T) {
	client := NewMockJudgeClient("mock-model")

	resp, err := client.Evaluate(context.Background(), ports.JudgeRequest{
		SystemPrompt:    "judge the translation",
		UserContent:     "SOURCE: hello",
		MaxOutputTokens: 1024,
	})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.RawText), &payload))
	assert.Equal(t, float64(82), payload[domain.FieldOverallScore])
	assert.Equal(t, "mock-req-1", resp.RequestID)
	assert.Equal(t, 320, resp.Usage.Total())
	assert.Equal(t, "mock-model", client.GetModel())
}

func TestMockJudgeClient_ScriptPrecedence(t *testing.T) {
	client := NewMockJudgeClient("mock-model")
	client.AddPattern("SOURCE", CompleteOutcome(50))
	client.Enqueue(
		JudgeOutcome{Err: errors.New("boom")},
		CompleteOutcome(90),
	)

	_, err := client.Evaluate(context.Background(), ports.JudgeRequest{UserContent: "SOURCE: a"})
	require.EqualError(t, err, "boom")

	resp, err := client.Evaluate(context.Background(), ports.JudgeRequest{UserContent: "SOURCE: a"})
	require.NoError(t, err)
	assert.Contains(t, resp.RawText, `"overallScore":90`)

	// Script exhausted: the pattern takes over.
	resp, err = client.Evaluate(context.Background(), ports.JudgeRequest{UserContent: "SOURCE: a"})
	require.NoError(t, err)
	assert.Contains(t, resp.RawText, `"overallScore":50`)

	assert.Equal(t, 3, client.CallCount())
}

func TestMockJudgeClient_PatternOrder(t *testing.T) {
	client := NewMockJudgeClient("mock-model")
	client.AddPattern("ridge", CompleteOutcome(70))
	client.AddPattern("river", CompleteOutcome(40))

	resp, err := client.Evaluate(context.Background(), ports.JudgeRequest{
		UserContent: "the ridge and the river",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.RawText, `"overallScore":70`)
}

func TestMockJudgeClient_HoldFirst(t *testing.T) {
	client := NewMockJudgeClient("mock-model")
	client.HoldFirst(3)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Evaluate(context.Background(), ports.JudgeRequest{UserContent: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, client.CallCount())
	assert.GreaterOrEqual(t, client.MaxActive(), 3)
}

func TestMockJudgeClient_ContextCanceled(t *testing.T) {
	client := NewMockJudgeClient("mock-model")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Evaluate(ctx, ports.JudgeRequest{UserContent: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockJudgeClient_EstimateTokens(t *testing.T) {
	client := NewMockJudgeClient("mock-model")

	n, err := client.EstimateTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = client.EstimateTokens("ab")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = client.EstimateTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestJudgePayload_Mutators(t *testing.T) {
	payload := JudgePayload(80)
	DeleteCriterionScore(payload, domain.CriterionFluency)
	DeleteCriterionCommentary(payload, domain.CriterionStyle)
	DeleteAspect(payload, domain.AspectSuggestions)
	DeleteOverallScore(payload)

	raw := MarshalJudgePayload(payload)
	assert.NotContains(t, raw, domain.FieldOverallScore)
	assert.NotContains(t, raw, domain.AspectSuggestions)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	quantitative := decoded[domain.SectionQuantitative].(map[string]any)
	fluency := quantitative[domain.CriterionFluency].(map[string]any)
	_, hasScore := fluency["score"]
	assert.False(t, hasScore)
	style := quantitative[domain.CriterionStyle].(map[string]any)
	_, hasCommentary := style["commentary"]
	assert.False(t, hasCommentary)
}

func TestSyntheticCorpus(t *testing.T) {
	en := SyntheticEnglish(500)
	assert.Equal(t, 500, utf8.RuneCountInString(en))
	assert.Contains(t, en, "caravan")

	zh := SyntheticChinese(321)
	assert.Equal(t, 321, utf8.RuneCountInString(zh))
	assert.Contains(t, zh, "山脊")

	assert.Empty(t, SyntheticEnglish(0))
}
