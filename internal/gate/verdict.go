package gate

// ConfidenceResult is the outcome of the confidence gate.
type ConfidenceResult struct {
	// Passed is true when Score >= Threshold.
	Passed bool `json:"passed"`

	// Score is the claim's confidence, reported verbatim.
	Score float64 `json:"score"`

	// Threshold is the configured minimum, reported verbatim.
	Threshold float64 `json:"threshold"`
}

// DuplicateResult is the outcome of the two-tier duplicate gate.
type DuplicateResult struct {
	// Passed is true when no duplicate was found.
	Passed bool `json:"passed"`

	// IsDuplicate is true when either tier matched a prior claim.
	IsDuplicate bool `json:"is_duplicate"`

	// DuplicateID is the matched prior claim, when IsDuplicate.
	DuplicateID string `json:"duplicate_id,omitempty"`

	// Similarity is the match score; exact cache hits report 1.0.
	Similarity float64 `json:"similarity,omitempty"`
}

// ImportanceResult is the routing outcome of the importance gate.
type ImportanceResult struct {
	// Importance echoes the claim's level.
	Importance string `json:"importance"`

	// RequiresReview is true when a human must approve the claim.
	RequiresReview bool `json:"requires_review"`

	// Reason explains the routing decision.
	Reason string `json:"reason"`
}

// Verdict is the full gate result for one claim.
//
// Created fresh per evaluation and never persisted standalone; only the
// routing outcome survives into session metrics and the review queue.
type Verdict struct {
	// ClaimID identifies the evaluated claim.
	ClaimID string `json:"claim_id"`

	Confidence ConfidenceResult `json:"confidence"`
	Duplicate  DuplicateResult  `json:"duplicate"`
	Importance ImportanceResult `json:"importance"`

	// Passed is confidence AND duplicate; a failed claim is discarded.
	Passed bool `json:"passed"`

	// RequiresReview routes a passed claim to the human review queue.
	RequiresReview bool `json:"requires_review"`

	// AutoCommitted marks a passed claim eligible for direct commit.
	AutoCommitted bool `json:"auto_committed"`

	// RejectionReason explains why a claim did not pass, when it didn't.
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// Outcome buckets a verdict for batch filtering.
type Outcome string

const (
	OutcomePassed        Outcome = "passed"
	OutcomeRejected      Outcome = "rejected"
	OutcomeNeedsReview   Outcome = "needs_review"
	OutcomeAutoCommitted Outcome = "auto_committed"
)

// Outcome returns the bucket this verdict falls into. Rejected claims never
// also count as needing review or auto-committed.
func (v *Verdict) Outcome() Outcome {
	switch {
	case !v.Passed:
		return OutcomeRejected
	case v.RequiresReview:
		return OutcomeNeedsReview
	case v.AutoCommitted:
		return OutcomeAutoCommitted
	default:
		return OutcomePassed
	}
}
