package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// Commit retry policy: bounded linear backoff (attempt × base delay).
// Writes favor correctness over availability, unlike the fail-open
// duplicate search, so exhausted retries surface the last error.
const (
	DefaultCommitAttempts = 3
	DefaultCommitBackoff  = time.Second
)

// CommitResult reports a successful knowledge-store write.
type CommitResult struct {
	// StoredID is the document ID in the insights collection.
	StoredID string
}

// KnowledgeStore commits validated or auto-approved claims to the insights
// collection.
type KnowledgeStore struct {
	store    Store
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

// NewKnowledgeStore creates a committer with the default retry policy.
func NewKnowledgeStore(store Store, logger *zap.Logger) (*KnowledgeStore, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeStore{
		store:    store,
		attempts: DefaultCommitAttempts,
		backoff:  DefaultCommitBackoff,
		logger:   logger,
	}, nil
}

// Commit writes the claim with its validation status and zeroed usage
// stats, retrying transient failures with linear backoff before surfacing
// the last error.
func (k *KnowledgeStore) Commit(ctx context.Context, claim *insight.Claim, status insight.ValidationStatus, validatorID string) (CommitResult, error) {
	doc := Document{
		ID:      claim.ID,
		Content: claim.Content,
		Metadata: map[string]interface{}{
			"tenant_id":         claim.TenantID,
			"category":          string(claim.Category),
			"importance":        string(claim.Importance),
			"actionable":        claim.Actionable,
			"confidence":        claim.Confidence,
			"quote":             claim.Quote,
			"source_type":       claim.Source.SourceType,
			"source_id":         claim.Source.SourceID,
			"lead_id":           claim.Source.LeadID,
			"company_name":      claim.Source.CompanyName,
			"validation_status": string(status),
			"validated_by":      validatorID,
			"times_used":        0,
			"last_used_at":      "",
			"created_at":        claim.CreatedAt.UTC().Format(time.RFC3339),
		},
	}

	var lastErr error
	for attempt := 1; attempt <= k.attempts; attempt++ {
		ids, err := k.store.AddDocuments(ctx, []Document{doc})
		if err == nil {
			k.logger.Info("claim committed",
				zap.String("claim_id", claim.ID),
				zap.String("tenant_id", claim.TenantID),
				zap.String("validation_status", string(status)))
			return CommitResult{StoredID: ids[0]}, nil
		}
		lastErr = err
		k.logger.Warn("commit attempt failed",
			zap.String("claim_id", claim.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == k.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return CommitResult{}, fmt.Errorf("commit canceled: %w", errors.Join(ctx.Err(), lastErr))
		case <-time.After(time.Duration(attempt) * k.backoff):
		}
	}
	return CommitResult{}, fmt.Errorf("commit failed after %d attempts: %w", k.attempts, lastErr)
}
