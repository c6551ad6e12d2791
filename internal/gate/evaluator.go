package gate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/session"
)

// Default gate thresholds.
const (
	DefaultConfidenceThreshold  = 0.70
	DefaultSimilarityThreshold  = 0.85
	DefaultAutoApproveThreshold = 0.80
)

// DuplicateMatch is the semantic-search collaborator's answer.
type DuplicateMatch struct {
	IsDuplicate bool
	SimilarID   string
	Similarity  float64
}

// DuplicateChecker performs the semantic duplicate lookup. Implementations
// are network-bound; the evaluator fails open on their errors.
type DuplicateChecker interface {
	CheckDuplicate(ctx context.Context, tenantID, content string) (DuplicateMatch, error)
}

// CacheReader is the session store's fast-path dedup lookup.
type CacheReader interface {
	FindByContentKey(key string) (session.RecentClaimEntry, bool)
}

// Config holds the gate thresholds and routing policy.
type Config struct {
	// ConfidenceThreshold is the minimum confidence to pass (default 0.70).
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// SimilarityThreshold is passed to the semantic search (default 0.85).
	SimilarityThreshold float64 `koanf:"similarity_threshold"`

	// AutoApproveThreshold is the confidence above which high and medium
	// importance claims may skip review (default 0.80).
	AutoApproveThreshold float64 `koanf:"auto_approve_threshold"`

	// AutoApproveMedium enables skipping review for medium importance
	// claims that clear the auto-approve threshold.
	AutoApproveMedium bool `koanf:"auto_approve_medium"`

	// ReviewCategories always require review regardless of importance.
	// Empty by default.
	ReviewCategories []insight.Category `koanf:"review_categories"`
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:  DefaultConfidenceThreshold,
		SimilarityThreshold:  DefaultSimilarityThreshold,
		AutoApproveThreshold: DefaultAutoApproveThreshold,
	}
}

// Validate rejects thresholds outside [0, 1].
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"confidence_threshold":   c.ConfidenceThreshold,
		"similarity_threshold":   c.SimilarityThreshold,
		"auto_approve_threshold": c.AutoApproveThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("gate %s must be in [0, 1], got %v", name, v)
		}
	}
	for _, cat := range c.ReviewCategories {
		if !cat.Valid() {
			return fmt.Errorf("gate review_categories: %w: %q", insight.ErrInvalidCategory, cat)
		}
	}
	return nil
}

// Evaluator runs the multi-gate decision over one claim: confidence check,
// two-tier duplicate detection, and importance-based routing.
type Evaluator struct {
	config  Config
	cache   CacheReader
	checker DuplicateChecker
	logger  *zap.Logger
}

// NewEvaluator creates an evaluator. cache and checker are required; the
// logger defaults to a no-op.
func NewEvaluator(cfg Config, cache CacheReader, checker DuplicateChecker, logger *zap.Logger) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gate config: %w", err)
	}
	if cache == nil {
		return nil, errors.New("cache reader is required")
	}
	if checker == nil {
		return nil, errors.New("duplicate checker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{config: cfg, cache: cache, checker: checker, logger: logger}, nil
}

// Evaluate runs all gates over one claim and returns its verdict.
//
// The claim is never mutated. Confidence or duplicate failure is
// authoritative: a failed claim is discarded and importance routing is not
// consulted.
func (e *Evaluator) Evaluate(ctx context.Context, claim *insight.Claim) Verdict {
	verdict := Verdict{
		ClaimID:    claim.ID,
		Confidence: e.checkConfidence(claim),
	}

	if !verdict.Confidence.Passed {
		verdict.Duplicate = DuplicateResult{Passed: true}
		verdict.RejectionReason = fmt.Sprintf("confidence %.2f below threshold %.2f",
			verdict.Confidence.Score, verdict.Confidence.Threshold)
		e.logger.Info("gate rejected claim",
			zap.String("claim_id", claim.ID),
			zap.String("reason", "confidence_below_threshold"),
			zap.Float64("confidence", verdict.Confidence.Score))
		return verdict
	}

	verdict.Duplicate = e.checkDuplicate(ctx, claim)
	if !verdict.Duplicate.Passed {
		verdict.RejectionReason = fmt.Sprintf("duplicate of %s (similarity %.3f)",
			verdict.Duplicate.DuplicateID, verdict.Duplicate.Similarity)
		e.logger.Info("gate rejected claim",
			zap.String("claim_id", claim.ID),
			zap.String("reason", "duplicate"),
			zap.String("duplicate_id", verdict.Duplicate.DuplicateID),
			zap.Float64("similarity", verdict.Duplicate.Similarity))
		return verdict
	}

	verdict.Passed = true
	verdict.Importance = e.route(claim)
	verdict.RequiresReview = verdict.Importance.RequiresReview
	// Auto-commit eligibility is the same rule table as review routing,
	// so the two can never disagree.
	verdict.AutoCommitted = !verdict.RequiresReview
	return verdict
}

// EvaluateBatch evaluates claims independently, in order, and returns a map
// keyed by claim ID. There is no cross-claim interaction: a duplicate of an
// earlier claim in the same batch is only caught once that claim has been
// committed and cached.
func (e *Evaluator) EvaluateBatch(ctx context.Context, claims []*insight.Claim) map[string]Verdict {
	verdicts := make(map[string]Verdict, len(claims))
	for _, claim := range claims {
		verdicts[claim.ID] = e.Evaluate(ctx, claim)
	}
	return verdicts
}

// FilterByOutcome partitions a verdict map into outcome buckets.
func FilterByOutcome(verdicts map[string]Verdict) map[Outcome][]string {
	buckets := make(map[Outcome][]string)
	for id, v := range verdicts {
		buckets[v.Outcome()] = append(buckets[v.Outcome()], id)
	}
	return buckets
}

func (e *Evaluator) checkConfidence(claim *insight.Claim) ConfidenceResult {
	return ConfidenceResult{
		Passed:    claim.Confidence >= e.config.ConfidenceThreshold,
		Score:     claim.Confidence,
		Threshold: e.config.ConfidenceThreshold,
	}
}

// checkDuplicate runs the two-tier lookup: exact content-key match against
// the bounded recent-claims cache, then the semantic search collaborator.
//
// Collaborator failures fail open (not a duplicate): a transient search
// outage must never silently block legitimate claims.
func (e *Evaluator) checkDuplicate(ctx context.Context, claim *insight.Claim) DuplicateResult {
	if entry, ok := e.cache.FindByContentKey(claim.Key()); ok {
		return DuplicateResult{
			IsDuplicate: true,
			DuplicateID: entry.ClaimID,
			Similarity:  1.0,
		}
	}

	match, err := e.checker.CheckDuplicate(ctx, claim.TenantID, claim.Content)
	if err != nil {
		e.logger.Warn("duplicate check failed, failing open",
			zap.String("claim_id", claim.ID),
			zap.Error(err))
		return DuplicateResult{Passed: true}
	}
	if match.IsDuplicate {
		return DuplicateResult{
			IsDuplicate: true,
			DuplicateID: match.SimilarID,
			Similarity:  match.Similarity,
		}
	}
	return DuplicateResult{Passed: true}
}

// route applies the importance routing policy. This is the single rule
// table: RequiresReview and auto-commit eligibility both derive from it.
func (e *Evaluator) route(claim *insight.Claim) ImportanceResult {
	result := ImportanceResult{Importance: string(claim.Importance)}

	for _, cat := range e.config.ReviewCategories {
		if claim.Category == cat {
			result.RequiresReview = true
			result.Reason = fmt.Sprintf("category %s always requires review", cat)
			return result
		}
	}

	switch claim.Importance {
	case insight.ImportanceHigh:
		if claim.Confidence >= e.config.AutoApproveThreshold {
			result.Reason = fmt.Sprintf("high importance auto-approved at confidence %.2f", claim.Confidence)
		} else {
			result.RequiresReview = true
			result.Reason = fmt.Sprintf("high importance below auto-approve threshold %.2f",
				e.config.AutoApproveThreshold)
		}
	case insight.ImportanceMedium:
		if e.config.AutoApproveMedium && claim.Confidence >= e.config.AutoApproveThreshold {
			result.Reason = "medium importance auto-approved by feature flag"
		} else {
			result.RequiresReview = true
			result.Reason = "medium importance requires review"
		}
	default:
		result.Reason = "low importance never requires review"
	}
	return result
}
