package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// Pattern is one heuristic claim detection rule.
type Pattern struct {
	Name     string           `json:"name" koanf:"name"`
	Regex    string           `json:"regex" koanf:"regex"`
	Category insight.Category `json:"category" koanf:"category"`
	Weight   float64          `json:"weight" koanf:"weight"`
}

// DefaultPatterns returns the default claim detection patterns.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Buying process signals
		{Name: "decision_maker", Regex: `(?i)(decision maker|sign[- ]?off|procurement|approval from)`, Category: insight.CategoryBuyingProcess, Weight: 0.6},
		{Name: "budget_timeline", Regex: `(?i)(budget (cycle|approved|for)|timeline for|next quarter|by end of)`, Category: insight.CategoryBuyingProcess, Weight: 0.6},

		// Pain points
		{Name: "pain_struggle", Regex: `(?i)(struggl\w+ with|frustrat\w+|biggest (challenge|problem)|pain point)`, Category: insight.CategoryPainPoint, Weight: 0.65},
		{Name: "pain_manual", Regex: `(?i)(manual(ly)? .*(process|work)|wast\w+ (time|hours)|takes (too long|forever))`, Category: insight.CategoryPainPoint, Weight: 0.55},

		// Objections
		{Name: "objection_price", Regex: `(?i)(too expensive|not in the budget|can't afford|pricing concern)`, Category: insight.CategoryObjection, Weight: 0.65},
		{Name: "objection_hesitation", Regex: `(?i)(concern\w* about|hesitant|pushback|not convinced|worried (about|that))`, Category: insight.CategoryObjection, Weight: 0.55},

		// Competitive intel
		{Name: "competitor_usage", Regex: `(?i)(currently us(e|ing)|already (use|have)|switch\w* from|evaluat\w+ .*(vendor|alternative))`, Category: insight.CategoryCompetitiveIntel, Weight: 0.6},
		{Name: "competitor_compare", Regex: `(?i)(compared to|versus|better than) [A-Z]\w+`, Category: insight.CategoryCompetitiveIntel, Weight: 0.5},

		// Messaging effectiveness
		{Name: "messaging_resonance", Regex: `(?i)(that resonat\w+|landed well|caught my (eye|attention)|didn't land)`, Category: insight.CategoryMessaging, Weight: 0.55},

		// ICP signals
		{Name: "icp_size", Regex: `(?i)(team of \d+|\d+ (employees|engineers|seats)|series [a-dA-D]\b)`, Category: insight.CategoryICPSignal, Weight: 0.5},
	}
}

// HeuristicExtractor finds candidate claims with regex pattern matching.
// It is a coarse fallback for when no LLM is configured; confidence comes
// from pattern weights, not from provenance scoring.
type HeuristicExtractor struct {
	patterns []*compiledPattern
}

type compiledPattern struct {
	Pattern
	regex *regexp.Regexp
}

// NewHeuristicExtractor creates a pattern-based extractor. Invalid patterns
// are skipped.
func NewHeuristicExtractor(patterns []Pattern) (*HeuristicExtractor, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	compiled := make([]*compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			continue
		}
		compiled = append(compiled, &compiledPattern{Pattern: p, regex: re})
	}

	return &HeuristicExtractor{patterns: compiled}, nil
}

// Extract scans the transcript sentence by sentence and emits one candidate
// per sentence from the highest-weight matching pattern.
func (h *HeuristicExtractor) Extract(_ context.Context, transcript Transcript) ([]insight.CandidateClaim, error) {
	var candidates []insight.CandidateClaim

	for _, sentence := range splitSentences(transcript.Text) {
		match := h.findBestMatch(sentence)
		if match == nil {
			continue
		}

		candidates = append(candidates, insight.CandidateClaim{
			Category:   match.Category,
			Content:    sentence,
			Quote:      sentence,
			Importance: insight.ImportanceMedium,
			Confidence: match.Weight,
		})
	}

	return candidates, nil
}

// Available always returns true; the heuristic extractor needs no credentials.
func (h *HeuristicExtractor) Available() bool {
	return true
}

// findBestMatch returns the highest-weight pattern matching the sentence.
func (h *HeuristicExtractor) findBestMatch(sentence string) *compiledPattern {
	var best *compiledPattern
	var bestWeight float64

	for _, p := range h.patterns {
		if p.regex.MatchString(sentence) && p.Weight > bestWeight {
			best = p
			bestWeight = p.Weight
		}
	}

	return best
}

// splitSentences breaks text into trimmed sentences on terminal punctuation
// and newlines. Fragments shorter than 10 characters are dropped to satisfy
// the minimum claim length.
func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})

	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if len(s) >= 10 {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

var _ Extractor = (*HeuristicExtractor)(nil)
