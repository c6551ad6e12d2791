package insight

import "math"

// Confidence bonuses per source type. Call transcripts are the most
// trustworthy medium, manual entries earn nothing beyond the base.
var sourceTypeBonus = map[string]float64{
	"call_transcript":  0.20,
	"email_reply":      0.10,
	"linkedin_message": 0.05,
	"manual_entry":     0.0,
}

// ScoreConfidence computes a heuristic confidence score for a claim whose
// extractor did not supply one (manual entries, legacy imports).
//
// Scoring: base 0.5, plus a source-type bonus, plus 0.10 for a verbatim
// quote, plus 0.10 for a known company name. Capped at 1.0 and rounded to
// two decimals.
func ScoreConfidence(hasQuote bool, source Provenance) float64 {
	confidence := 0.5
	confidence += sourceTypeBonus[source.SourceType]
	if hasQuote {
		confidence += 0.10
	}
	if source.CompanyName != "" {
		confidence += 0.10
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return math.Round(confidence*100) / 100
}
