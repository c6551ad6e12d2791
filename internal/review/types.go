package review

import (
	"context"
	"errors"
	"time"
)

// Errors returned by review queue operations.
var (
	// ErrNotFound is returned for unknown or already-resolved items.
	ErrNotFound = errors.New("review item not found")

	// ErrNotPending is returned when a decision targets a terminal item.
	ErrNotPending = errors.New("review item is not pending")

	// ErrInvalidDecision is returned for decisions other than approve/reject.
	ErrInvalidDecision = errors.New("invalid decision")
)

// Status is the review item lifecycle state.
type Status string

const (
	// StatusPending awaits a human decision.
	StatusPending Status = "pending"

	// StatusApproved is terminal: a human approved the claim.
	StatusApproved Status = "approved"

	// StatusRejected is terminal: a human rejected the claim.
	StatusRejected Status = "rejected"

	// StatusExpired is terminal: the reminder budget ran out. Downstream
	// this is treated the same as rejected.
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Decision is a reviewer's verdict on a pending item.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// DecisionRecord captures who decided what, and when.
type DecisionRecord struct {
	// ActorID is the reviewer, or "system" for auto-expiry.
	ActorID string `json:"actor_id"`

	// Decision is approve or reject.
	Decision Decision `json:"decision"`

	// Note is an optional reviewer comment.
	Note string `json:"note,omitempty"`

	// DecidedAt is when the decision was applied.
	DecidedAt time.Time `json:"decided_at"`
}

// Delivery tracks where the review request was shown to a reviewer.
type Delivery struct {
	// Channel is the notification channel the item was sent to.
	Channel string `json:"channel,omitempty"`

	// Handle is the message handle used for later updates.
	Handle string `json:"handle,omitempty"`

	// SentAt is when delivery succeeded.
	SentAt *time.Time `json:"sent_at,omitempty"`
}

// Reminder tracks nudges sent for a pending item.
type Reminder struct {
	// Count is the number of reminders sent so far.
	Count int `json:"count"`

	// LastSentAt is when the last reminder went out.
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`

	// NextDueAt is when the next reminder becomes due.
	NextDueAt time.Time `json:"next_due_at"`
}

// Item is the durable review queue entry for one claim.
//
// Items are created pending and mutated only by decision application or the
// sweeper; once terminal they are never mutated again.
type Item struct {
	// ID is the unique validation identifier.
	ID string `json:"id"`

	// ClaimID references the claim under review.
	ClaimID string `json:"claim_id"`

	// TenantID scopes the item.
	TenantID string `json:"tenant_id"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// Summary is a denormalized claim display string, so the queue never
	// re-fetches the claim.
	Summary string `json:"summary"`

	// Importance echoes the claim's importance for display.
	Importance string `json:"importance"`

	// Confidence echoes the claim's confidence for display.
	Confidence float64 `json:"confidence"`

	// Quote is the claim's verbatim quote, if any.
	Quote string `json:"quote,omitempty"`

	// Delivery is the notification metadata.
	Delivery Delivery `json:"delivery"`

	// Reminder tracks nudges.
	Reminder Reminder `json:"reminder"`

	// Decision is set when the item reaches a terminal state.
	Decision *DecisionRecord `json:"decision,omitempty"`

	// CreatedAt is when the item was enqueued.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the item last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Storage is the durable queue storage collaborator.
type Storage interface {
	// Put persists a new item.
	Put(ctx context.Context, item *Item) error

	// Get fetches an item by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Item, error)

	// Update replaces a stored item.
	Update(ctx context.Context, item *Item) error

	// Delete removes an item by ID.
	Delete(ctx context.Context, id string) error

	// ListPending returns all pending items for a tenant.
	ListPending(ctx context.Context, tenantID string) ([]*Item, error)

	// Count returns the number of pending items for a tenant.
	Count(ctx context.Context, tenantID string) (int, error)
}

// Outcome is what Notifier.Update reflects onto a delivered message.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeExpired  Outcome = "expired"
)

// Notifier delivers review requests to reviewers and reflects outcomes.
type Notifier interface {
	// Send delivers a review request and returns the message handle.
	Send(ctx context.Context, item *Item) (channel, handle string, err error)

	// Update rewrites a delivered message to show the outcome.
	Update(ctx context.Context, channel, handle string, outcome Outcome) error

	// SendReminder nudges the reviewer about a still-pending item.
	SendReminder(ctx context.Context, item *Item, reminderNumber int) error
}
