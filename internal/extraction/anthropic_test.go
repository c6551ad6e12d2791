package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

func TestNewAnthropicExtractor(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{APIKey: "sk-ant-test123", Model: "claude-3-5-sonnet-20241022"},
			wantErr: false,
		},
		{
			name:    "empty API key",
			cfg:     Config{Model: "claude-3-5-sonnet-20241022"},
			wantErr: true,
		},
		{
			name:    "defaults filled in",
			cfg:     Config{APIKey: "sk-ant-test123"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor, err := newAnthropicExtractor(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, extractor.Available())
		})
	}
}

// anthropicTextResponse builds a messages API response wrapping the text.
func anthropicTextResponse(text string) anthropicResponse {
	var resp anthropicResponse
	resp.Content = []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{
		{Type: "text", Text: text},
	}
	return resp
}

func TestAnthropicExtractor_Extract(t *testing.T) {
	candidatesJSON := `[
		{"category": "pain_point", "content": "Prospect spends 10 hours a week on manual reporting", "quote": "I spend half my Fridays on reports", "importance": "high", "actionable": true, "confidence": 0.85},
		{"category": "icp_signal", "content": "Team of 45 engineers, series B", "importance": "medium", "confidence": 0.7}
	]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test123", r.Header.Get("X-API-Key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("Anthropic-Version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Messages[0].Content, "call_123")
		assert.NotContains(t, req.Messages[0].Content, "sk-ant-REDACTED")

		json.NewEncoder(w).Encode(anthropicTextResponse(candidatesJSON))
	}))
	defer server.Close()

	extractor, err := newAnthropicExtractor(Config{
		APIKey:  "sk-ant-test123",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	candidates, err := extractor.Extract(context.Background(), Transcript{
		SourceType: "call_transcript",
		SourceID:   "call_123",
		Text:       "My key is sk-ant-REDACTED and I spend half my Fridays on reports.",
	})
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, insight.CategoryPainPoint, candidates[0].Category)
	assert.True(t, candidates[0].Actionable)
	assert.InDelta(t, 0.85, candidates[0].Confidence, 0.001)
	assert.Equal(t, insight.CategoryICPSignal, candidates[1].Category)
}

func TestAnthropicExtractor_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(anthropicTextResponse(`[]`))
	}))
	defer server.Close()

	extractor, err := newAnthropicExtractor(Config{APIKey: "sk-ant-test123", BaseURL: server.URL})
	require.NoError(t, err)

	candidates, err := extractor.Extract(context.Background(), Transcript{Text: "hello there friend"})
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnthropicExtractor_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`)
	}))
	defer server.Close()

	extractor, err := newAnthropicExtractor(Config{APIKey: "sk-ant-test123", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background(), Transcript{Text: "hello there friend"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad model")
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseCandidatesJSON(t *testing.T) {
	t.Run("markdown fenced", func(t *testing.T) {
		candidates, err := parseCandidatesJSON("```json\n[{\"category\": \"objection\", \"content\": \"Pricing is a blocker\", \"importance\": \"high\", \"confidence\": 0.8}]\n```")
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, insight.CategoryObjection, candidates[0].Category)
	})

	t.Run("invalid entries dropped", func(t *testing.T) {
		candidates, err := parseCandidatesJSON(`[
			{"category": "not_a_category", "content": "dropped", "confidence": 0.5},
			{"category": "objection", "content": "", "confidence": 0.5},
			{"category": "objection", "content": "kept", "importance": "urgent", "confidence": 1.5}
		]`)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "kept", candidates[0].Content)
		assert.Equal(t, insight.ImportanceMedium, candidates[0].Importance)
		assert.Zero(t, candidates[0].Confidence)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := parseCandidatesJSON("Here are the claims I found:")
		require.Error(t, err)
	})
}

func TestScrubSecrets(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{
			name:     "anthropic key",
			input:    "use sk-ant-REDACTED for auth",
			contains: "[REDACTED:ANTHROPIC_KEY]",
			absent:   "sk-ant-REDACTED",
		},
		{
			name:     "env secret",
			input:    "GITHUB_TOKEN=ghp_abc123def456",
			contains: "GITHUB_TOKEN=[REDACTED:ENV_SECRET]",
			absent:   "ghp_abc123def456",
		},
		{
			name:     "password",
			input:    "password: hunter22",
			contains: "[REDACTED:PASSWORD]",
			absent:   "hunter22",
		},
		{
			name:     "plain text untouched",
			input:    "they mentioned budget approval next quarter",
			contains: "budget approval next quarter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scrubSecrets(tt.input)
			assert.Contains(t, got, tt.contains)
			if tt.absent != "" {
				assert.NotContains(t, got, tt.absent)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(fmt.Errorf("plain")))
	assert.True(t, isRetryableError(&retryableError{err: fmt.Errorf("inner")}))
	assert.True(t, isRetryableError(fmt.Errorf("wrapped: %w", &retryableError{err: fmt.Errorf("inner")})))
}
