package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/session"
)

// mockCache is a CacheReader backed by a map of content keys.
type mockCache struct {
	entries map[string]session.RecentClaimEntry
}

func (m *mockCache) FindByContentKey(key string) (session.RecentClaimEntry, bool) {
	entry, ok := m.entries[key]
	return entry, ok
}

// mockChecker is a DuplicateChecker with a canned answer.
type mockChecker struct {
	match DuplicateMatch
	err   error
	calls int
}

func (m *mockChecker) CheckDuplicate(ctx context.Context, tenantID, content string) (DuplicateMatch, error) {
	m.calls++
	return m.match, m.err
}

func newTestEvaluator(t *testing.T, cfg Config, cache *mockCache, checker *mockChecker) *Evaluator {
	t.Helper()
	if cache == nil {
		cache = &mockCache{entries: map[string]session.RecentClaimEntry{}}
	}
	if checker == nil {
		checker = &mockChecker{}
	}
	eval, err := NewEvaluator(cfg, cache, checker, nil)
	require.NoError(t, err)
	return eval
}

func testClaim(importance insight.Importance, confidence float64) *insight.Claim {
	return &insight.Claim{
		ID:         "claim_1",
		TenantID:   "brain_test_1",
		Category:   insight.CategoryPainPoint,
		Content:    "Budget approvals stall in legal review",
		Importance: importance,
		Confidence: confidence,
	}
}

func TestNewEvaluator_Validation(t *testing.T) {
	cache := &mockCache{}
	checker := &mockChecker{}

	_, err := NewEvaluator(Config{ConfidenceThreshold: 1.5}, cache, checker, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be in [0, 1]")

	_, err = NewEvaluator(DefaultConfig(), nil, checker, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache reader is required")

	_, err = NewEvaluator(DefaultConfig(), cache, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate checker is required")
}

func TestEvaluate_ConfidenceBelowThresholdRejects(t *testing.T) {
	checker := &mockChecker{}
	eval := newTestEvaluator(t, DefaultConfig(), nil, checker)

	for _, importance := range []insight.Importance{insight.ImportanceLow, insight.ImportanceMedium, insight.ImportanceHigh} {
		v := eval.Evaluate(context.Background(), testClaim(importance, 0.69))
		assert.False(t, v.Passed, "importance %s", importance)
		assert.False(t, v.RequiresReview)
		assert.False(t, v.AutoCommitted)
		assert.Equal(t, OutcomeRejected, v.Outcome())
		assert.Contains(t, v.RejectionReason, "below threshold")
	}
	assert.Zero(t, checker.calls, "duplicate search skipped for low-confidence claims")
}

func TestEvaluate_ConfidenceReportedVerbatim(t *testing.T) {
	eval := newTestEvaluator(t, DefaultConfig(), nil, nil)
	v := eval.Evaluate(context.Background(), testClaim(insight.ImportanceLow, 0.73))
	assert.Equal(t, 0.73, v.Confidence.Score)
	assert.Equal(t, DefaultConfidenceThreshold, v.Confidence.Threshold)
}

func TestEvaluate_CacheHitShortCircuits(t *testing.T) {
	claim := testClaim(insight.ImportanceLow, 0.9)
	cache := &mockCache{entries: map[string]session.RecentClaimEntry{
		claim.Key(): {ClaimID: "earlier_claim", ContentKey: claim.Key()},
	}}
	checker := &mockChecker{}
	eval := newTestEvaluator(t, DefaultConfig(), cache, checker)

	v := eval.Evaluate(context.Background(), claim)
	assert.False(t, v.Passed)
	assert.True(t, v.Duplicate.IsDuplicate)
	assert.Equal(t, "earlier_claim", v.Duplicate.DuplicateID)
	assert.Equal(t, 1.0, v.Duplicate.Similarity)
	assert.Zero(t, checker.calls, "semantic search skipped on exact cache hit")
}

func TestEvaluate_SemanticDuplicateRejects(t *testing.T) {
	checker := &mockChecker{match: DuplicateMatch{IsDuplicate: true, SimilarID: "ins_42", Similarity: 0.91}}
	eval := newTestEvaluator(t, DefaultConfig(), nil, checker)

	v := eval.Evaluate(context.Background(), testClaim(insight.ImportanceHigh, 0.95))
	assert.False(t, v.Passed)
	assert.Equal(t, "ins_42", v.Duplicate.DuplicateID)
	assert.InDelta(t, 0.91, v.Duplicate.Similarity, 0.001)
	assert.False(t, v.AutoCommitted, "duplicate failure is authoritative over importance")
}

func TestEvaluate_SearchErrorFailsOpen(t *testing.T) {
	checker := &mockChecker{err: errors.New("qdrant unavailable")}
	eval := newTestEvaluator(t, DefaultConfig(), nil, checker)

	v := eval.Evaluate(context.Background(), testClaim(insight.ImportanceLow, 0.9))
	assert.True(t, v.Passed, "transient search outage must not block claims")
	assert.True(t, v.Duplicate.Passed)
	assert.True(t, v.AutoCommitted)
}

func TestEvaluate_ImportanceRouting(t *testing.T) {
	tests := []struct {
		name           string
		importance     insight.Importance
		confidence     float64
		autoMedium     bool
		requiresReview bool
		autoCommitted  bool
	}{
		{"high below auto-approve", insight.ImportanceHigh, 0.75, false, true, false},
		{"high at auto-approve", insight.ImportanceHigh, 0.85, false, false, true},
		{"medium flag off", insight.ImportanceMedium, 0.95, false, true, false},
		{"medium flag on above threshold", insight.ImportanceMedium, 0.85, true, false, true},
		{"medium flag on below threshold", insight.ImportanceMedium, 0.75, true, true, false},
		{"low always auto-commits", insight.ImportanceLow, 0.71, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AutoApproveMedium = tt.autoMedium
			eval := newTestEvaluator(t, cfg, nil, nil)

			v := eval.Evaluate(context.Background(), testClaim(tt.importance, tt.confidence))
			require.True(t, v.Passed)
			assert.Equal(t, tt.requiresReview, v.RequiresReview)
			assert.Equal(t, tt.autoCommitted, v.AutoCommitted)
			assert.NotEqual(t, v.RequiresReview, v.AutoCommitted,
				"review routing and auto-commit derive from one rule table")
		})
	}
}

func TestEvaluate_ReviewCategoryOverridesImportance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReviewCategories = []insight.Category{insight.CategoryBuyingProcess}
	eval := newTestEvaluator(t, cfg, nil, nil)

	claim := testClaim(insight.ImportanceLow, 0.95)
	claim.Category = insight.CategoryBuyingProcess

	v := eval.Evaluate(context.Background(), claim)
	require.True(t, v.Passed)
	assert.True(t, v.RequiresReview)
	assert.False(t, v.AutoCommitted)
}

func TestEvaluateBatch_IndependentVerdicts(t *testing.T) {
	eval := newTestEvaluator(t, DefaultConfig(), nil, nil)

	a := testClaim(insight.ImportanceLow, 0.9)
	b := testClaim(insight.ImportanceHigh, 0.75)
	b.ID = "claim_2"
	c := testClaim(insight.ImportanceLow, 0.2)
	c.ID = "claim_3"

	verdicts := eval.EvaluateBatch(context.Background(), []*insight.Claim{a, b, c})
	require.Len(t, verdicts, 3)
	assert.True(t, verdicts["claim_1"].AutoCommitted)
	assert.True(t, verdicts["claim_2"].RequiresReview)
	assert.False(t, verdicts["claim_3"].Passed)

	buckets := FilterByOutcome(verdicts)
	assert.ElementsMatch(t, []string{"claim_1"}, buckets[OutcomeAutoCommitted])
	assert.ElementsMatch(t, []string{"claim_2"}, buckets[OutcomeNeedsReview])
	assert.ElementsMatch(t, []string{"claim_3"}, buckets[OutcomeRejected])
}
