package vectorstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// mockStore is an in-memory Store for tests.
type mockStore struct {
	mu        sync.Mutex
	docs      []Document
	results   []SearchResult
	addErr    error
	searchErr error
	addCalls  int
	filters   map[string]interface{}
}

func (m *mockStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if m.addErr != nil {
		return nil, m.addErr
	}
	m.docs = append(m.docs, docs...)
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids, nil
}

func (m *mockStore) Search(ctx context.Context, query string, k int, filters map[string]interface{}) ([]SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = filters
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.results, nil
}

func (m *mockStore) EnsureCollection(ctx context.Context) error { return nil }
func (m *mockStore) Close() error                               { return nil }

func TestNewDuplicateChecker_Validation(t *testing.T) {
	_, err := NewDuplicateChecker(nil, 0.85, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewDuplicateChecker(&mockStore{}, 1.5, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCheckDuplicate_Match(t *testing.T) {
	store := &mockStore{results: []SearchResult{{ID: "ins_42", Score: 0.91}}}
	checker, err := NewDuplicateChecker(store, 0.85, nil)
	require.NoError(t, err)

	match, err := checker.CheckDuplicate(context.Background(), "brain_test_1", "pricing objection")
	require.NoError(t, err)
	assert.True(t, match.IsDuplicate)
	assert.Equal(t, "ins_42", match.SimilarID)
	assert.InDelta(t, 0.91, match.Similarity, 0.001)
	assert.Equal(t, "brain_test_1", store.filters["tenant_id"], "search scoped to tenant")
}

func TestCheckDuplicate_BelowThreshold(t *testing.T) {
	store := &mockStore{results: []SearchResult{{ID: "ins_42", Score: 0.80}}}
	checker, err := NewDuplicateChecker(store, 0.85, nil)
	require.NoError(t, err)

	match, err := checker.CheckDuplicate(context.Background(), "brain_test_1", "pricing objection")
	require.NoError(t, err)
	assert.False(t, match.IsDuplicate)
}

func TestCheckDuplicate_NoResults(t *testing.T) {
	checker, err := NewDuplicateChecker(&mockStore{}, 0.85, nil)
	require.NoError(t, err)

	match, err := checker.CheckDuplicate(context.Background(), "brain_test_1", "novel insight")
	require.NoError(t, err)
	assert.False(t, match.IsDuplicate)
}

func TestCheckDuplicate_ErrorPropagates(t *testing.T) {
	store := &mockStore{searchErr: errors.New("unavailable")}
	checker, err := NewDuplicateChecker(store, 0.85, nil)
	require.NoError(t, err)

	_, err = checker.CheckDuplicate(context.Background(), "brain_test_1", "anything")
	require.Error(t, err, "the gate decides fail-open, not the checker")
}

func TestKnowledgeStoreCommit(t *testing.T) {
	store := &mockStore{}
	ks, err := NewKnowledgeStore(store, nil)
	require.NoError(t, err)

	claim := &insight.Claim{
		ID:         "claim_1",
		TenantID:   "brain_test_1",
		Category:   insight.CategoryPainPoint,
		Content:    "Procurement stalls in legal",
		Importance: insight.ImportanceLow,
		Confidence: 0.75,
	}

	result, err := ks.Commit(context.Background(), claim, insight.StatusAutoApproved, "")
	require.NoError(t, err)
	assert.Equal(t, "claim_1", result.StoredID)

	require.Len(t, store.docs, 1)
	meta := store.docs[0].Metadata
	assert.Equal(t, "brain_test_1", meta["tenant_id"])
	assert.Equal(t, string(insight.StatusAutoApproved), meta["validation_status"])
	assert.Equal(t, 0, meta["times_used"], "usage stats start zeroed")
}

func TestKnowledgeStoreCommit_RetriesThenSurfaces(t *testing.T) {
	store := &mockStore{addErr: errors.New("upsert timeout")}
	ks, err := NewKnowledgeStore(store, nil)
	require.NoError(t, err)
	ks.backoff = 0 // keep the test fast

	claim := &insight.Claim{ID: "claim_1", TenantID: "brain_test_1", Category: insight.CategoryObjection, Content: "x", Importance: insight.ImportanceLow}

	_, err = ks.Commit(context.Background(), claim, insight.StatusValidated, "U42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, DefaultCommitAttempts, store.addCalls)
}
