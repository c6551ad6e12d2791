package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

func TestHeuristicExtractor_Extract(t *testing.T) {
	extractor, err := NewHeuristicExtractor(nil)
	require.NoError(t, err)
	require.True(t, extractor.Available())

	transcript := Transcript{
		SourceType: "call_transcript",
		SourceID:   "call_123",
		Text: "Thanks for joining. We are really struggling with manual data entry across the team. " +
			"Our procurement team needs sign-off from the CFO before anything moves. " +
			"We currently use Clari for forecasting. " +
			"OK. Sounds good.",
	}

	candidates, err := extractor.Extract(context.Background(), transcript)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	byCategory := map[insight.Category]insight.CandidateClaim{}
	for _, c := range candidates {
		byCategory[c.Category] = c
	}

	pain, ok := byCategory[insight.CategoryPainPoint]
	require.True(t, ok)
	assert.Contains(t, pain.Content, "struggling with manual data entry")
	assert.Equal(t, insight.ImportanceMedium, pain.Importance)
	assert.InDelta(t, 0.65, pain.Confidence, 0.001)
	assert.Equal(t, pain.Content, pain.Quote)

	_, ok = byCategory[insight.CategoryBuyingProcess]
	assert.True(t, ok)

	_, ok = byCategory[insight.CategoryCompetitiveIntel]
	assert.True(t, ok)
}

func TestHeuristicExtractor_NoMatches(t *testing.T) {
	extractor, err := NewHeuristicExtractor(nil)
	require.NoError(t, err)

	candidates, err := extractor.Extract(context.Background(), Transcript{
		Text: "Hello there. How is the weather today over in Denver.",
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestHeuristicExtractor_CustomPatterns(t *testing.T) {
	extractor, err := NewHeuristicExtractor([]Pattern{
		{Name: "custom", Regex: `(?i)magic phrase`, Category: insight.CategoryICPSignal, Weight: 0.9},
		{Name: "broken", Regex: `([`, Category: insight.CategoryICPSignal, Weight: 0.9},
	})
	require.NoError(t, err)

	candidates, err := extractor.Extract(context.Background(), Transcript{
		Text: "They said the magic phrase during the call.",
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, insight.CategoryICPSignal, candidates[0].Category)
	assert.InDelta(t, 0.9, candidates[0].Confidence, 0.001)
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("First sentence here. Too short. OK!\nA line on its own that is long enough?")
	assert.Equal(t, []string{
		"First sentence here",
		"A line on its own that is long enough",
	}, sentences)
}

func TestNewExtractor(t *testing.T) {
	e, err := NewExtractor(Config{Provider: "disabled"})
	require.NoError(t, err)
	assert.IsType(t, &NoOpExtractor{}, e)
	assert.False(t, e.Available())

	e, err = NewExtractor(Config{Provider: "heuristic"})
	require.NoError(t, err)
	assert.IsType(t, &HeuristicExtractor{}, e)

	_, err = NewExtractor(Config{Provider: "anthropic"})
	require.Error(t, err, "anthropic provider requires an API key")

	_, err = NewExtractor(Config{Provider: "grpc"})
	require.Error(t, err)
}
