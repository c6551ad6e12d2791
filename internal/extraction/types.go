// Package extraction turns raw sales conversations into candidate insight
// claims. It supports an LLM-backed extractor (Anthropic) and a heuristic
// pattern-based extractor for offline use.
package extraction

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// Transcript is one conversation document to extract claims from.
type Transcript struct {
	// SourceType is the conversation medium: call_transcript, email_reply,
	// linkedin_message, or manual_entry.
	SourceType string `json:"source_type"`

	// SourceID is the originating document ID.
	SourceID string `json:"source_id"`

	// LeadID is the associated lead, if known.
	LeadID string `json:"lead_id,omitempty"`

	// CompanyName is the prospect company, if known.
	CompanyName string `json:"company_name,omitempty"`

	// Text is the full conversation text.
	Text string `json:"text"`
}

// Extractor produces candidate claims from a transcript.
type Extractor interface {
	// Extract finds candidate claims in the transcript.
	Extract(ctx context.Context, transcript Transcript) ([]insight.CandidateClaim, error)

	// Available reports whether the extractor is configured and ready.
	Available() bool
}

// Config holds extraction configuration.
type Config struct {
	// Provider selects the extractor: "anthropic", "heuristic", or "disabled".
	Provider string `koanf:"provider"`

	// Model is the LLM model name (anthropic provider only).
	Model string `koanf:"model"`

	// APIKey authenticates against the LLM API.
	APIKey string `koanf:"api_key"`

	// BaseURL overrides the LLM API endpoint.
	BaseURL string `koanf:"base_url"`

	// MaxTokens caps the LLM response size.
	MaxTokens int `koanf:"max_tokens"`

	// TimeoutSeconds is the per-request HTTP timeout.
	TimeoutSeconds int `koanf:"timeout_seconds"`

	// Patterns override the heuristic extractor's defaults.
	Patterns []Pattern `koanf:"patterns"`
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{
		Provider: "heuristic",
	}
}

// NewExtractor creates an extractor based on configuration.
func NewExtractor(cfg Config) (Extractor, error) {
	switch cfg.Provider {
	case "disabled", "":
		return &NoOpExtractor{}, nil
	case "heuristic":
		return NewHeuristicExtractor(cfg.Patterns)
	case "anthropic":
		return newAnthropicExtractor(cfg)
	default:
		return nil, fmt.Errorf("unknown extraction provider: %s", cfg.Provider)
	}
}

// NoOpExtractor is the extractor used when extraction is disabled.
type NoOpExtractor struct{}

// Extract returns no candidates.
func (n *NoOpExtractor) Extract(_ context.Context, _ Transcript) ([]insight.CandidateClaim, error) {
	return []insight.CandidateClaim{}, nil
}

// Available returns false for NoOpExtractor.
func (n *NoOpExtractor) Available() bool {
	return false
}

var _ Extractor = (*NoOpExtractor)(nil)
