package review

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/session"
)

// memStorage is an in-memory Storage for tests.
type memStorage struct {
	mu    sync.Mutex
	items map[string]*Item
}

func newMemStorage() *memStorage {
	return &memStorage{items: map[string]*Item{}}
}

func (m *memStorage) Put(ctx context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *item
	m.items[item.ID] = &copied
	return nil
}

func (m *memStorage) Get(ctx context.Context, id string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *memStorage) Update(ctx context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return ErrNotFound
	}
	copied := *item
	m.items[item.ID] = &copied
	return nil
}

func (m *memStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memStorage) ListPending(ctx context.Context, tenantID string) ([]*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*Item
	for _, item := range m.items {
		if item.TenantID == tenantID && item.Status == StatusPending {
			copied := *item
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

func (m *memStorage) Count(ctx context.Context, tenantID string) (int, error) {
	pending, _ := m.ListPending(ctx, tenantID)
	return len(pending), nil
}

// mockNotifier records calls and can be told to fail.
type mockNotifier struct {
	sendErr     error
	reminderErr error
	updateErr   error

	sends     int
	reminders []int
	updates   []Outcome
}

func (m *mockNotifier) Send(ctx context.Context, item *Item) (string, string, error) {
	m.sends++
	if m.sendErr != nil {
		return "", "", m.sendErr
	}
	return "C123", "1700000000.1", nil
}

func (m *mockNotifier) Update(ctx context.Context, channel, handle string, outcome Outcome) error {
	m.updates = append(m.updates, outcome)
	return m.updateErr
}

func (m *mockNotifier) SendReminder(ctx context.Context, item *Item, reminderNumber int) error {
	if m.reminderErr != nil {
		return m.reminderErr
	}
	m.reminders = append(m.reminders, reminderNumber)
	return nil
}

type fixture struct {
	queue    *Queue
	storage  *memStorage
	notifier *mockNotifier
	sessions *session.Store
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions, err := session.NewStore("brain_test_1", filepath.Join(t.TempDir(), "session.json"), zap.NewNop())
	require.NoError(t, err)

	f := &fixture{
		storage:  newMemStorage(),
		notifier: &mockNotifier{},
		sessions: sessions,
		clock:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	queue, err := NewQueue(DefaultConfig(), f.storage, f.notifier, sessions, zap.NewNop())
	require.NoError(t, err)
	queue.now = func() time.Time { return f.clock }
	f.queue = queue
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func testClaim() *insight.Claim {
	return &insight.Claim{
		ID:         "claim_1",
		TenantID:   "brain_test_1",
		Category:   insight.CategoryObjection,
		Content:    "Security team blocks all new vendors in Q4",
		Importance: insight.ImportanceHigh,
		Confidence: 0.75,
	}
}

func TestNewQueue_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := NewQueue(Config{ReminderInterval: -time.Hour, ExpirationWindow: time.Hour}, f.storage, f.notifier, f.sessions, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reminder_interval must be positive")

	_, err = NewQueue(DefaultConfig(), nil, f.notifier, f.sessions, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue storage is required")
}

func TestEnqueue(t *testing.T) {
	f := newFixture(t)

	item, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, item.Status)
	assert.Equal(t, "claim_1", item.ClaimID)
	assert.Equal(t, 0, item.Reminder.Count)
	assert.Equal(t, f.clock.Add(DefaultReminderInterval), item.Reminder.NextDueAt)
	assert.Equal(t, "C123", item.Delivery.Channel)
	assert.NotEmpty(t, item.Delivery.Handle)

	stored, err := f.storage.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Delivery.Handle, stored.Delivery.Handle, "handle written back onto stored item")
	assert.Equal(t, 1, f.sessions.PendingValidationCount())
}

func TestEnqueue_DeliveryFailureStillQueues(t *testing.T) {
	f := newFixture(t)
	f.notifier.sendErr = errors.New("slack unreachable")

	item, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err, "delivery failure is not a queuing failure")

	stored, err := f.storage.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Empty(t, stored.Delivery.Handle)

	state := f.sessions.Snapshot()
	require.NotEmpty(t, state.Errors)
	assert.Equal(t, "notify_failed", state.Errors[0].Type)
}

func TestResolve_Approve(t *testing.T) {
	f := newFixture(t)
	item, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err)

	resolved, err := f.queue.Resolve(context.Background(), item.ID, DecisionApprove, "U42", "looks right")
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, resolved.Status)
	require.NotNil(t, resolved.Decision)
	assert.Equal(t, "U42", resolved.Decision.ActorID)
	assert.Equal(t, "looks right", resolved.Decision.Note)

	_, err = f.storage.Get(context.Background(), item.ID)
	assert.ErrorIs(t, err, ErrNotFound, "resolved items leave durable storage")
	assert.Equal(t, 0, f.sessions.PendingValidationCount())
	assert.Equal(t, 1, f.sessions.Metrics().ValidationsApproved)
	assert.Equal(t, []Outcome{OutcomeApproved}, f.notifier.updates)
}

func TestResolve_Reject(t *testing.T) {
	f := newFixture(t)
	item, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err)

	resolved, err := f.queue.Resolve(context.Background(), item.ID, DecisionReject, "U42", "")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, resolved.Status)
	assert.Equal(t, 1, f.sessions.Metrics().ValidationsRejected)
}

func TestResolve_SecondCallIsNoOpError(t *testing.T) {
	f := newFixture(t)
	item, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err)

	_, err = f.queue.Resolve(context.Background(), item.ID, DecisionApprove, "U42", "")
	require.NoError(t, err)

	_, err = f.queue.Resolve(context.Background(), item.ID, DecisionApprove, "U42", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, f.sessions.Metrics().ValidationsApproved, "no double count")
}

func TestResolve_InvalidDecision(t *testing.T) {
	f := newFixture(t)
	_, err := f.queue.Resolve(context.Background(), "whatever", Decision("escalate"), "U42", "")
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestProcessReminders(t *testing.T) {
	f := newFixture(t)
	_, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err)

	// Not yet due.
	sent, err := f.queue.ProcessReminders(context.Background(), "brain_test_1")
	require.NoError(t, err)
	assert.Zero(t, sent)

	f.advance(DefaultReminderInterval + time.Minute)
	sent, err = f.queue.ProcessReminders(context.Background(), "brain_test_1")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int{1}, f.notifier.reminders)

	// Immediately after sending, the next reminder is not due yet.
	sent, err = f.queue.ProcessReminders(context.Background(), "brain_test_1")
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestProcessReminders_BudgetExhausted(t *testing.T) {
	f := newFixture(t)
	_, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err)

	for i := 0; i < DefaultMaxReminders; i++ {
		f.advance(DefaultReminderInterval + time.Minute)
		sent, err := f.queue.ProcessReminders(context.Background(), "brain_test_1")
		require.NoError(t, err)
		require.Equal(t, 1, sent)
	}

	// Overdue again, but the budget is spent.
	f.advance(10 * DefaultReminderInterval)
	sent, err := f.queue.ProcessReminders(context.Background(), "brain_test_1")
	require.NoError(t, err)
	assert.Zero(t, sent, "an item at the reminder cap is never nudged again")
}

func TestProcessReminders_FailureDoesNotAdvanceState(t *testing.T) {
	f := newFixture(t)
	item, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err)

	f.advance(DefaultReminderInterval + time.Minute)
	f.notifier.reminderErr = errors.New("slack unreachable")
	sent, err := f.queue.ProcessReminders(context.Background(), "brain_test_1")
	require.NoError(t, err)
	assert.Zero(t, sent)

	stored, err := f.storage.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Reminder.Count, "failed delivery retries on next sweep")

	f.notifier.reminderErr = nil
	sent, err = f.queue.ProcessReminders(context.Background(), "brain_test_1")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)
	item, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err)

	// Younger than the window: untouched.
	expired, err := f.queue.ExpireOverdue(context.Background(), "brain_test_1")
	require.NoError(t, err)
	assert.Zero(t, expired)

	f.advance(DefaultExpirationWindow + time.Hour)
	expired, err = f.queue.ExpireOverdue(context.Background(), "brain_test_1")
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	_, err = f.storage.Get(context.Background(), item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, f.sessions.Metrics().ValidationsRejected,
		"expiry reuses the rejection path")
	assert.Equal(t, []Outcome{OutcomeExpired}, f.notifier.updates)
}

func TestExpireOverdue_ReminderCappedItemEligible(t *testing.T) {
	f := newFixture(t)
	_, err := f.queue.Enqueue(context.Background(), testClaim())
	require.NoError(t, err)

	for i := 0; i < DefaultMaxReminders; i++ {
		f.advance(DefaultReminderInterval + time.Minute)
		_, err := f.queue.ProcessReminders(context.Background(), "brain_test_1")
		require.NoError(t, err)
	}

	// Two reminder intervals put the item well past the 72h window.
	expired, err := f.queue.ExpireOverdue(context.Background(), "brain_test_1")
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
}
