package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeltrace/steeltrace/internal/errors"
)

func TestBuildVisionMessageOpenAIShape(t *testing.T) {
	m := BuildVisionMessage(EnvelopeOpenAI, "extract", "data:image/jpeg;base64,abc", "image/jpeg", "abc")

	require.Len(t, m.Parts, 2)
	assert.Equal(t, PartText, m.Parts[0].Type)
	assert.Equal(t, "extract", m.Parts[0].Text)
	assert.Equal(t, PartImageURL, m.Parts[1].Type)
	assert.Equal(t, "data:image/jpeg;base64,abc", m.Parts[1].ImageURL)
}

func TestBuildVisionMessageAnthropicShape(t *testing.T) {
	m := BuildVisionMessage(EnvelopeAnthropic, "extract", "data:image/jpeg;base64,abc", "image/jpeg", "abc")

	require.Len(t, m.Parts, 2)
	assert.Equal(t, PartImage, m.Parts[0].Type)
	assert.Equal(t, "image/jpeg", m.Parts[0].MediaType)
	assert.Equal(t, "abc", m.Parts[0].Data)
	assert.Equal(t, PartText, m.Parts[1].Type)
}

func TestEnvelopeFor(t *testing.T) {
	assert.Equal(t, EnvelopeAnthropic, EnvelopeFor("anthropic"))
	assert.Equal(t, EnvelopeOpenAI, EnvelopeFor("openai"))
	assert.Equal(t, EnvelopeOpenAI, EnvelopeFor("groq"))
}

func TestRouterPrefersPriorityTier(t *testing.T) {
	r := NewStaticRouter(map[string]string{"openai": "sk-x"}, nil)

	m, err := r.Route(context.Background(), RouteRequest{Priority: PriorityCost, NeedsVision: true})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", m.Model)

	m, err = r.Route(context.Background(), RouteRequest{Priority: PriorityQuality, NeedsVision: true})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.Model)
}

func TestRouterSkipsProvidersWithoutKeys(t *testing.T) {
	r := NewStaticRouter(map[string]string{"anthropic": "sk-ant"}, nil)

	m, err := r.Route(context.Background(), RouteRequest{Priority: PriorityQuality, NeedsVision: true})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", m.Provider)
}

func TestRouterNoModelAvailable(t *testing.T) {
	r := NewStaticRouter(nil, nil)

	_, err := r.Route(context.Background(), RouteRequest{NeedsVision: true})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoModelAvailable, errors.GetCode(err))
}

func TestResolveKey(t *testing.T) {
	r := NewStaticRouter(map[string]string{"openai": "sk-x"}, nil)

	key, err := r.ResolveKey("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-x", key)

	_, err = r.ResolveKey("anthropic")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoCredentials, errors.GetCode(err))
}

func TestEstimateCost(t *testing.T) {
	// gpt-4o: $2.50/M in, $10/M out.
	assert.InDelta(t, 0.0125, EstimateCost("gpt-4o", 1000, 1000), 1e-9)
	assert.InDelta(t, 0.0125, EstimateCost("gpt-4o-2024-08-06", 1000, 1000), 1e-9, "suffixed ids use base pricing")
	assert.Zero(t, EstimateCost("unknown-model", 1000, 1000))
}

func TestLogSinkTotals(t *testing.T) {
	s := NewLogSink(nil)
	s.RecordUsage(context.Background(), Usage{TokensInput: 100, TokensOutput: 50, CostUSD: 0.01})
	s.RecordUsage(context.Background(), Usage{TokensInput: 200, TokensOutput: 100, CostUSD: 0.02})

	calls, tokens, cost := s.Totals()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 450, tokens)
	assert.InDelta(t, 0.03, cost, 1e-9)
}
