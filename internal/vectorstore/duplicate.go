package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/gate"
)

// DuplicateChecker answers the gate evaluator's semantic duplicate lookups
// by querying the insights collection scoped to one tenant.
type DuplicateChecker struct {
	store     Store
	threshold float64
	logger    *zap.Logger
}

// NewDuplicateChecker creates a checker using similarityThreshold as the
// duplicate cutoff.
func NewDuplicateChecker(store Store, similarityThreshold float64, logger *zap.Logger) (*DuplicateChecker, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if similarityThreshold <= 0 || similarityThreshold > 1 {
		return nil, fmt.Errorf("%w: similarity threshold must be in (0, 1], got %v",
			ErrInvalidConfig, similarityThreshold)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateChecker{store: store, threshold: similarityThreshold, logger: logger}, nil
}

// CheckDuplicate searches the tenant's insights for the nearest neighbor of
// content and reports a duplicate when its similarity clears the threshold.
//
// Errors propagate to the caller; the gate evaluator fails open on them.
func (c *DuplicateChecker) CheckDuplicate(ctx context.Context, tenantID, content string) (gate.DuplicateMatch, error) {
	results, err := c.store.Search(ctx, content, 1, map[string]interface{}{
		"tenant_id": tenantID,
	})
	if err != nil {
		return gate.DuplicateMatch{}, fmt.Errorf("duplicate search: %w", err)
	}
	if len(results) == 0 || float64(results[0].Score) < c.threshold {
		return gate.DuplicateMatch{}, nil
	}

	match := gate.DuplicateMatch{
		IsDuplicate: true,
		SimilarID:   results[0].ID,
		Similarity:  float64(results[0].Score),
	}
	c.logger.Info("duplicate detected",
		zap.String("tenant_id", tenantID),
		zap.String("existing_id", match.SimilarID),
		zap.Float64("similarity", match.Similarity))
	return match, nil
}
