package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// Default configuration values.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultMaxTokens        = 2048
	defaultTimeout          = 60 * time.Second
	defaultMaxRetries       = 3
	defaultBaseBackoff      = 1 * time.Second
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// anthropicExtractor implements Extractor using Anthropic's Claude API.
type anthropicExtractor struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

func newAnthropicExtractor(cfg Config) (Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &anthropicExtractor{
		model:   model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries: defaultMaxRetries,
	}, nil
}

// anthropicRequest is the Claude messages API request body.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the Claude messages API response body.
type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// extractPrompt is the system prompt for claim extraction.
const extractPrompt = `You are an expert at analyzing sales conversations and extracting factual insights about prospects.

Extract discrete, verifiable claims from the conversation. Each claim must be:
1. A single fact about the prospect, their process, or their reaction
2. Between 10 and 5000 characters
3. Free of filler and speculation

Respond with a JSON array. Each element is an object with:
- "category": one of buying_process, pain_point, objection, competitive_intel, messaging_effectiveness, icp_signal
- "content": the claim text
- "quote": a short verbatim quote backing the claim, if one exists
- "importance": low, medium, or high
- "actionable": true if a seller can act on the claim directly
- "confidence": your confidence the claim is accurate (0.0 to 1.0)

Respond ONLY with the JSON array, no additional text.`

// Extract asks Claude for candidate claims from the transcript.
func (a *anthropicExtractor) Extract(ctx context.Context, transcript Transcript) ([]insight.CandidateClaim, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	// Scrub secrets before sending anything to the API.
	userContent := fmt.Sprintf("Source: %s (%s)", transcript.SourceType, transcript.SourceID)
	if transcript.CompanyName != "" {
		userContent += "\nCompany: " + transcript.CompanyName
	}
	userContent += "\n\nConversation:\n" + scrubSecrets(transcript.Text)

	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.3,
		System:      extractPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: userContent},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		candidates, err := a.doRequest(ctx, req)
		if err == nil {
			return candidates, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (a *anthropicExtractor) doRequest(ctx context.Context, req anthropicRequest) ([]insight.CandidateClaim, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", a.apiKey)
	httpReq.Header.Set("Anthropic-Version", "2023-06-01")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp anthropicError
		if err := json.Unmarshal(body, &errResp); err == nil {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var claudeResp anthropicResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(claudeResp.Content) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	return parseCandidatesJSON(claudeResp.Content[0].Text)
}

// Available returns true if the extractor is configured.
func (a *anthropicExtractor) Available() bool {
	return a.apiKey != ""
}

// parseCandidatesJSON parses the LLM response into candidate claims.
// Entries with an unknown category or out-of-range confidence are dropped
// rather than failing the whole batch.
func parseCandidatesJSON(content string) ([]insight.CandidateClaim, error) {
	// LLMs sometimes wrap JSON in markdown code blocks.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var raw []insight.CandidateClaim
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse candidates: %w", err)
	}

	candidates := make([]insight.CandidateClaim, 0, len(raw))
	for _, c := range raw {
		if !c.Category.Valid() {
			continue
		}
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		if !c.Importance.Valid() {
			c.Importance = insight.ImportanceMedium
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			c.Confidence = 0
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError checks if an error should be retried.
func isRetryableError(err error) bool {
	for e := err; e != nil; {
		if _, ok := e.(*retryableError); ok {
			return true
		}
		if unwrapper, ok := e.(interface{ Unwrap() error }); ok {
			e = unwrapper.Unwrap()
		} else {
			break
		}
	}
	return false
}

// scrubSecrets removes common secret patterns from content before it is
// sent to the API. Transcripts occasionally contain pasted credentials.
func scrubSecrets(content string) string {
	patterns := []struct {
		regex       *regexp.Regexp
		replacement string
	}{
		{
			regexp.MustCompile(`(OPENAI_API_KEY|ANTHROPIC_API_KEY|GITHUB_TOKEN|AWS_SECRET_ACCESS_KEY)\s*=\s*([^\s]+)`),
			"$1=[REDACTED:ENV_SECRET]",
		},
		{
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9-]{20,}`),
			"[REDACTED:ANTHROPIC_KEY]",
		},
		{
			regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
			"[REDACTED:API_KEY]",
		},
		{
			regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?\s*([^"'\s]{8,})["']?`),
			"$1=[REDACTED:API_KEY]",
		},
		{
			regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.=]{20,}`),
			"[REDACTED:BEARER_TOKEN]",
		},
		{
			regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*["']?\s*([^"'\s]{4,})["']?`),
			"$1=[REDACTED:PASSWORD]",
		},
	}

	result := content
	for _, p := range patterns {
		result = p.regex.ReplaceAllString(result, p.replacement)
	}
	return result
}

var _ Extractor = (*anthropicExtractor)(nil)
