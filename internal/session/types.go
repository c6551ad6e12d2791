package session

import (
	"time"

	"github.com/fyrsmithlabs/insightd/internal/insight"
)

// SchemaVersion is the persisted session document version. Loads of any
// other version discard the document and start fresh.
const SchemaVersion = 2

// JobStatus tracks an extraction job through its lifecycle.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ExtractionJob is one queued source document awaiting claim extraction.
type ExtractionJob struct {
	// ID is the unique job identifier.
	ID string `json:"id"`

	// SourceIDs are the documents this job covers.
	SourceIDs []string `json:"source_ids"`

	// Status is the job lifecycle state.
	Status JobStatus `json:"status"`

	// Error holds the failure message when Status is failed.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the job was enqueued.
	CreatedAt time.Time `json:"created_at"`
}

// PendingValidation is the local shadow of an open review item.
//
// The authoritative item lives in the external queue storage; this shadow
// exists for fast counts and idempotency checks without a round trip.
type PendingValidation struct {
	// ValidationID matches the review item ID in queue storage.
	ValidationID string `json:"validation_id"`

	// ClaimID is the claim under review.
	ClaimID string `json:"claim_id"`

	// TenantID scopes the validation.
	TenantID string `json:"tenant_id"`

	// CreatedAt is when the review item was enqueued.
	CreatedAt time.Time `json:"created_at"`

	// ReminderCount mirrors the reminders sent so far.
	ReminderCount int `json:"reminder_count"`

	// LastReminderAt is when the last reminder went out.
	LastReminderAt *time.Time `json:"last_reminder_at,omitempty"`
}

// RecentClaimEntry is one row of the bounded dedup cache.
type RecentClaimEntry struct {
	// ClaimID identifies the committed claim.
	ClaimID string `json:"claim_id"`

	// ContentKey is the normalized category+content key.
	ContentKey string `json:"content_key"`

	// Category is the claim category.
	Category insight.Category `json:"category"`

	// CreatedAt is when the entry was cached.
	CreatedAt time.Time `json:"created_at"`
}

// ErrorEntry is one row of the bounded session error log.
type ErrorEntry struct {
	// Type tags the failure class (commit_failed, notify_failed, ...).
	Type string `json:"type"`

	// Message is the error text.
	Message string `json:"message"`

	// Context carries optional free-text context (claim ID, source ID).
	Context string `json:"context,omitempty"`

	// OccurredAt is when the error was recorded.
	OccurredAt time.Time `json:"occurred_at"`

	// Recovered marks errors that a later operation resolved.
	Recovered bool `json:"recovered"`
}

// Metrics holds the running counters for one tenant session.
type Metrics struct {
	// ClaimsExtracted counts claims received from extraction.
	ClaimsExtracted int `json:"claims_extracted"`

	// ClaimsCommitted counts auto-committed claims.
	ClaimsCommitted int `json:"claims_committed"`

	// ClaimsRejected counts claims discarded by the gates.
	ClaimsRejected int `json:"claims_rejected"`

	// ClaimsQueued counts claims sent to human review.
	ClaimsQueued int `json:"claims_queued"`

	// ValidationsApproved counts human-approved review items.
	ValidationsApproved int `json:"validations_approved"`

	// ValidationsRejected counts rejected or expired review items.
	ValidationsRejected int `json:"validations_rejected"`

	// AvgExtractionMillis is the running average extraction latency.
	AvgExtractionMillis float64 `json:"avg_extraction_millis"`
}

// State is the persisted session document for one tenant.
type State struct {
	// Version is the schema version, checked exactly on load.
	Version int `json:"version"`

	// TenantID is the session owner.
	TenantID string `json:"tenant_id"`

	// Jobs is the extraction job queue.
	Jobs []ExtractionJob `json:"jobs"`

	// PendingValidations shadows the open review items.
	PendingValidations []PendingValidation `json:"pending_validations"`

	// RecentClaims is the bounded dedup cache, most recent first.
	RecentClaims []RecentClaimEntry `json:"recent_claims"`

	// Errors is the bounded error log, most recent first.
	Errors []ErrorEntry `json:"errors"`

	// Metrics are the running counters.
	Metrics Metrics `json:"metrics"`

	// StartedAt is when this session began.
	StartedAt time.Time `json:"started_at"`

	// LastCheckpoint is when the state was last durably saved.
	LastCheckpoint time.Time `json:"last_checkpoint"`

	// LastActivity is when the state last changed.
	LastActivity time.Time `json:"last_activity"`
}

func newState(tenantID string) *State {
	now := time.Now()
	return &State{
		Version:   SchemaVersion,
		TenantID:  tenantID,
		StartedAt: now,
	}
}
