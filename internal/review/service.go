package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/session"
)

const instrumentationName = "github.com/fyrsmithlabs/insightd/internal/review"

// Default queue timing.
const (
	DefaultReminderInterval = 48 * time.Hour
	DefaultExpirationWindow = 72 * time.Hour
	DefaultMaxReminders     = 2
)

// Config holds review queue timing policy.
type Config struct {
	// ReminderInterval is how long after enqueue (and between reminders)
	// a nudge becomes due. Default 48h.
	ReminderInterval time.Duration `koanf:"reminder_interval"`

	// ExpirationWindow is the pending age after which an item auto-expires.
	// Default 72h.
	ExpirationWindow time.Duration `koanf:"expiration_window"`

	// MaxReminders caps reminders per item; at the cap the only further
	// transition is expiry. Default 2.
	MaxReminders int `koanf:"max_reminders"`
}

// DefaultConfig returns the documented queue timing defaults.
func DefaultConfig() Config {
	return Config{
		ReminderInterval: DefaultReminderInterval,
		ExpirationWindow: DefaultExpirationWindow,
		MaxReminders:     DefaultMaxReminders,
	}
}

// Validate rejects non-positive windows.
func (c Config) Validate() error {
	if c.ReminderInterval <= 0 {
		return fmt.Errorf("reminder_interval must be positive, got %s", c.ReminderInterval)
	}
	if c.ExpirationWindow <= 0 {
		return fmt.Errorf("expiration_window must be positive, got %s", c.ExpirationWindow)
	}
	if c.MaxReminders < 0 {
		return fmt.Errorf("max_reminders cannot be negative, got %d", c.MaxReminders)
	}
	return nil
}

// Queue turns "requires review" verdicts into durable queue entries,
// delivers them to reviewers, and applies reviewer decisions.
type Queue struct {
	config   Config
	storage  Storage
	notifier Notifier
	sessions *session.Store
	logger   *zap.Logger

	resolvedCounter metric.Int64Counter
	reminderCounter metric.Int64Counter

	// now is a test seam; production uses time.Now.
	now func() time.Time
}

// NewQueue creates a review queue. storage, notifier, and sessions are
// required; the logger defaults to a no-op.
func NewQueue(cfg Config, storage Storage, notifier Notifier, sessions *session.Store, logger *zap.Logger) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid review config: %w", err)
	}
	if storage == nil {
		return nil, errors.New("queue storage is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &Queue{
		config:   cfg,
		storage:  storage,
		notifier: notifier,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}

	meter := otel.Meter(instrumentationName)
	var err error
	q.resolvedCounter, err = meter.Int64Counter("review_items_resolved_total",
		metric.WithDescription("Review items resolved, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating resolved counter: %w", err)
	}
	q.reminderCounter, err = meter.Int64Counter("review_reminders_sent_total",
		metric.WithDescription("Reminders sent for pending review items"))
	if err != nil {
		return nil, fmt.Errorf("creating reminder counter: %w", err)
	}
	return q, nil
}

// Enqueue builds a pending item for the claim, persists it, registers the
// session shadow entry, and requests delivery.
//
// Delivery failure is not a queuing failure: the item stays queued and the
// failure is logged to the session error log for the next sweep. On
// delivery success the message handle is written back onto the stored item.
func (q *Queue) Enqueue(ctx context.Context, claim *insight.Claim) (*Item, error) {
	now := q.now()
	item := &Item{
		ID:         uuid.New().String(),
		ClaimID:    claim.ID,
		TenantID:   claim.TenantID,
		Status:     StatusPending,
		Summary:    claim.Summary(),
		Importance: string(claim.Importance),
		Confidence: claim.Confidence,
		Quote:      claim.Quote,
		Reminder:   Reminder{NextDueAt: now.Add(q.config.ReminderInterval)},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := q.storage.Put(ctx, item); err != nil {
		return nil, fmt.Errorf("storing review item: %w", err)
	}

	q.sessions.AddPendingValidation(session.PendingValidation{
		ValidationID: item.ID,
		ClaimID:      claim.ID,
		TenantID:     claim.TenantID,
		CreatedAt:    now,
	})

	channel, handle, err := q.notifier.Send(ctx, item)
	if err != nil {
		q.logger.Warn("review delivery failed, item remains queued",
			zap.String("validation_id", item.ID),
			zap.Error(err))
		q.sessions.RecordError("notify_failed", err.Error(), item.ID)
		return item, nil
	}

	sentAt := q.now()
	item.Delivery = Delivery{Channel: channel, Handle: handle, SentAt: &sentAt}
	item.UpdatedAt = sentAt
	if err := q.storage.Update(ctx, item); err != nil {
		q.logger.Warn("failed to record delivery handle",
			zap.String("validation_id", item.ID),
			zap.Error(err))
	}

	q.logger.Info("review item enqueued",
		zap.String("validation_id", item.ID),
		zap.String("claim_id", claim.ID),
		zap.String("channel", channel))
	return item, nil
}

// Resolve applies a reviewer decision to a pending item.
//
// Returns ErrNotFound for unknown or already-resolved IDs so a second call
// on the same ID is a no-op error, never a double count. The item is
// removed from storage and from the session shadow, metrics are bumped, and
// the delivered message is updated to show the outcome.
func (q *Queue) Resolve(ctx context.Context, validationID string, decision Decision, actorID, note string) (*Item, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	item, err := q.storage.Get(ctx, validationID)
	if err != nil {
		return nil, err
	}
	if item.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, validationID, item.Status)
	}

	return q.finalize(ctx, item, decision, actorID, note, false)
}

// finalize is the single resolution path shared by Resolve and
// ExpireOverdue so metrics and storage can never drift apart.
func (q *Queue) finalize(ctx context.Context, item *Item, decision Decision, actorID, note string, expired bool) (*Item, error) {
	now := q.now()
	approved := decision == DecisionApprove

	item.Status = StatusRejected
	outcome := OutcomeRejected
	if approved {
		item.Status = StatusApproved
		outcome = OutcomeApproved
	} else if expired {
		item.Status = StatusExpired
		outcome = OutcomeExpired
	}
	item.Decision = &DecisionRecord{
		ActorID:   actorID,
		Decision:  decision,
		Note:      note,
		DecidedAt: now,
	}
	item.UpdatedAt = now

	if err := q.storage.Delete(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("deleting review item: %w", err)
	}
	if err := q.sessions.CompleteValidation(item.ID, approved); err != nil {
		// The shadow can legitimately be missing after a fresh session
		// recovered from a stale state file.
		q.logger.Debug("no session shadow for resolved item",
			zap.String("validation_id", item.ID), zap.Error(err))
	}

	q.resolvedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(outcome))))

	if item.Delivery.Handle != "" {
		if err := q.notifier.Update(ctx, item.Delivery.Channel, item.Delivery.Handle, outcome); err != nil {
			q.logger.Warn("failed to update delivered message",
				zap.String("validation_id", item.ID),
				zap.Error(err))
			q.sessions.RecordError("notify_failed", err.Error(), item.ID)
		}
	}

	q.logger.Info("review item resolved",
		zap.String("validation_id", item.ID),
		zap.String("status", string(item.Status)),
		zap.String("actor_id", actorID))
	return item, nil
}

// ProcessReminders sends a nudge for every pending tenant item whose
// reminder is due and whose budget is not exhausted. Returns the number
// sent. Delivery failures do not advance reminder state, so they retry on
// the next sweep.
func (q *Queue) ProcessReminders(ctx context.Context, tenantID string) (int, error) {
	items, err := q.storage.ListPending(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("listing pending items: %w", err)
	}

	now := q.now()
	sent := 0
	for _, item := range items {
		if item.Reminder.Count >= q.config.MaxReminders {
			continue
		}
		if now.Before(item.Reminder.NextDueAt) {
			continue
		}

		reminderNumber := item.Reminder.Count + 1
		if err := q.notifier.SendReminder(ctx, item, reminderNumber); err != nil {
			q.logger.Warn("reminder delivery failed, will retry next sweep",
				zap.String("validation_id", item.ID),
				zap.Error(err))
			q.sessions.RecordError("notify_failed", err.Error(), item.ID)
			continue
		}

		sentAt := q.now()
		item.Reminder.Count = reminderNumber
		item.Reminder.LastSentAt = &sentAt
		item.Reminder.NextDueAt = item.Reminder.NextDueAt.Add(q.config.ReminderInterval)
		item.UpdatedAt = sentAt
		if err := q.storage.Update(ctx, item); err != nil {
			q.logger.Error("failed to persist reminder state",
				zap.String("validation_id", item.ID),
				zap.Error(err))
			continue
		}
		if err := q.sessions.UpdateValidationReminder(item.ID, reminderNumber, sentAt); err != nil {
			q.logger.Debug("no session shadow for reminded item",
				zap.String("validation_id", item.ID), zap.Error(err))
		}

		q.reminderCounter.Add(ctx, 1)
		sent++
	}
	return sent, nil
}

// ExpireOverdue resolves every pending tenant item older than the
// expiration window as rejected by "system" with note "auto-expired".
// Returns the number expired.
func (q *Queue) ExpireOverdue(ctx context.Context, tenantID string) (int, error) {
	items, err := q.storage.ListPending(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("listing pending items: %w", err)
	}

	now := q.now()
	expired := 0
	for _, item := range items {
		if now.Sub(item.CreatedAt) < q.config.ExpirationWindow {
			continue
		}
		if _, err := q.finalize(ctx, item, DecisionReject, "system", "auto-expired", true); err != nil {
			q.logger.Error("failed to expire review item",
				zap.String("validation_id", item.ID),
				zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

// PendingCount returns the number of pending items for the tenant from
// durable storage.
func (q *Queue) PendingCount(ctx context.Context, tenantID string) (int, error) {
	return q.storage.Count(ctx, tenantID)
}
