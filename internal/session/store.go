package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Bounds for the in-state collections.
const (
	// MaxRecentClaims caps the dedup cache; oldest entries evict first.
	MaxRecentClaims = 100

	// MaxErrorEntries caps the session error log.
	MaxErrorEntries = 50

	// RecentClaimRetention drops cache entries older than this on load.
	RecentClaimRetention = 24 * time.Hour
)

// Errors returned by store operations.
var (
	ErrJobNotFound        = errors.New("extraction job not found")
	ErrValidationNotFound = errors.New("pending validation not found")
	ErrInvalidTransition  = errors.New("invalid job status transition")
)

// Store owns the durable session state for one tenant.
//
// All mutations are serialized behind a single mutex; the design assumes
// one active process per tenant (callers serialize across processes).
type Store struct {
	mu       sync.Mutex
	state    *State
	path     string
	tenantID string
	logger   *zap.Logger
}

// NewStore creates a store for tenantID persisting at path.
// The returned store holds a fresh state; call Load to recover a prior one.
func NewStore(tenantID, path string, logger *zap.Logger) (*Store, error) {
	if tenantID == "" {
		return nil, errors.New("tenant ID is required")
	}
	if path == "" {
		return nil, errors.New("session path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:    newState(tenantID),
		path:     path,
		tenantID: tenantID,
		logger:   logger,
	}, nil
}

// Load reads the persisted session document.
//
// A missing file, unparsable content, schema version mismatch, or tenant
// mismatch all degrade to keeping the fresh state; Load never fails the
// caller for any of those. Recent-claim entries older than the retention
// window are evicted after a successful load.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("session state unreadable, starting fresh",
				zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("session state unparsable, starting fresh",
			zap.String("path", s.path), zap.Error(err))
		return
	}
	if loaded.Version != SchemaVersion {
		s.logger.Warn("session schema version mismatch, starting fresh",
			zap.Int("found", loaded.Version), zap.Int("want", SchemaVersion))
		return
	}
	if loaded.TenantID != s.tenantID {
		s.logger.Warn("session tenant mismatch, starting fresh",
			zap.String("found", loaded.TenantID), zap.String("want", s.tenantID))
		return
	}

	cutoff := time.Now().Add(-RecentClaimRetention)
	kept := loaded.RecentClaims[:0]
	for _, entry := range loaded.RecentClaims {
		if entry.CreatedAt.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	loaded.RecentClaims = kept

	s.state = &loaded
	s.logger.Info("session state loaded",
		zap.String("tenant_id", s.tenantID),
		zap.Int("pending_validations", len(loaded.PendingValidations)),
		zap.Int("recent_claims", len(loaded.RecentClaims)))
}

// Save serializes the state and atomically replaces the session file.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Checkpoint is Save plus a checkpoint timestamp; the orchestrator calls it
// after finishing a unit of work.
func (s *Store) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastCheckpoint = time.Now()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	s.state.LastActivity = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	// Write to temp then rename so a crash mid-write never leaves a
	// partial document for the next Load.
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing session state: %w", err)
	}
	return nil
}

// TenantID returns the session owner.
func (s *Store) TenantID() string {
	return s.tenantID
}

// Snapshot returns a deep copy of the current state for inspection.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *s.state
	copied.Jobs = append([]ExtractionJob(nil), s.state.Jobs...)
	copied.PendingValidations = append([]PendingValidation(nil), s.state.PendingValidations...)
	copied.RecentClaims = append([]RecentClaimEntry(nil), s.state.RecentClaims...)
	copied.Errors = append([]ErrorEntry(nil), s.state.Errors...)
	return copied
}

// FindByContentKey looks up a dedup cache entry by normalized content key.
// Returns the entry and true on a hit.
func (s *Store) FindByContentKey(key string) (RecentClaimEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.state.RecentClaims {
		if entry.ContentKey == key {
			return entry, true
		}
	}
	return RecentClaimEntry{}, false
}

// AddRecentClaim prepends an entry to the dedup cache and truncates it to
// capacity, evicting the oldest entries.
func (s *Store) AddRecentClaim(entry RecentClaimEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.RecentClaims = append([]RecentClaimEntry{entry}, s.state.RecentClaims...)
	if len(s.state.RecentClaims) > MaxRecentClaims {
		s.state.RecentClaims = s.state.RecentClaims[:MaxRecentClaims]
	}
	s.state.LastActivity = time.Now()
}

// AddPendingValidation registers a review-item shadow. Enqueue is idempotent
// on validation ID; re-adding an existing ID is a no-op.
func (s *Store) AddPendingValidation(pv PendingValidation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.state.PendingValidations {
		if existing.ValidationID == pv.ValidationID {
			return
		}
	}
	s.state.PendingValidations = append(s.state.PendingValidations, pv)
	s.state.Metrics.ClaimsQueued++
	s.state.LastActivity = time.Now()
}

// UpdateValidationReminder mirrors a sent reminder onto the shadow entry.
func (s *Store) UpdateValidationReminder(validationID string, count int, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.PendingValidations {
		if s.state.PendingValidations[i].ValidationID == validationID {
			s.state.PendingValidations[i].ReminderCount = count
			s.state.PendingValidations[i].LastReminderAt = &sentAt
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrValidationNotFound, validationID)
}

// CompleteValidation removes the shadow entry and increments the matching
// metric: approved bumps ValidationsApproved, otherwise ValidationsRejected.
func (s *Store) CompleteValidation(validationID string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, pv := range s.state.PendingValidations {
		if pv.ValidationID == validationID {
			s.state.PendingValidations = append(
				s.state.PendingValidations[:i], s.state.PendingValidations[i+1:]...)
			if approved {
				s.state.Metrics.ValidationsApproved++
			} else {
				s.state.Metrics.ValidationsRejected++
			}
			s.state.LastActivity = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrValidationNotFound, validationID)
}

// PendingValidationCount returns the number of open review-item shadows.
func (s *Store) PendingValidationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.PendingValidations)
}

// QueueExtraction enqueues an extraction job. Idempotent on job ID.
func (s *Store) QueueExtraction(jobID string, sourceIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.state.Jobs {
		if existing.ID == jobID {
			return
		}
	}
	s.state.Jobs = append(s.state.Jobs, ExtractionJob{
		ID:        jobID,
		SourceIDs: append([]string(nil), sourceIDs...),
		Status:    JobQueued,
		CreatedAt: time.Now(),
	})
	s.state.LastActivity = time.Now()
}

// TransitionJob moves a job to the given status. Valid transitions are
// queued→processing and processing→completed|failed; failErr is recorded
// when transitioning to failed.
func (s *Store) TransitionJob(jobID string, status JobStatus, failErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.Jobs {
		if s.state.Jobs[i].ID != jobID {
			continue
		}
		current := s.state.Jobs[i].Status
		if !validJobTransition(current, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
		}
		s.state.Jobs[i].Status = status
		if status == JobFailed {
			s.state.Jobs[i].Error = failErr
		}
		s.state.LastActivity = time.Now()
		return nil
	}
	return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
}

func validJobTransition(from, to JobStatus) bool {
	switch from {
	case JobQueued:
		return to == JobProcessing
	case JobProcessing:
		return to == JobCompleted || to == JobFailed
	}
	return false
}

// JobCount returns the number of jobs with the given status.
func (s *Store) JobCount(status JobStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, job := range s.state.Jobs {
		if job.Status == status {
			count++
		}
	}
	return count
}

// RecordError appends a tagged entry to the bounded error log.
func (s *Store) RecordError(errType, message, context string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Errors = append([]ErrorEntry{{
		Type:       errType,
		Message:    message,
		Context:    context,
		OccurredAt: time.Now(),
	}}, s.state.Errors...)
	if len(s.state.Errors) > MaxErrorEntries {
		s.state.Errors = s.state.Errors[:MaxErrorEntries]
	}
	s.state.LastActivity = time.Now()
}

// MarkErrorsRecovered flips Recovered on all logged errors of the given
// type and returns how many were marked.
func (s *Store) MarkErrorsRecovered(errType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for i := range s.state.Errors {
		if s.state.Errors[i].Type == errType && !s.state.Errors[i].Recovered {
			s.state.Errors[i].Recovered = true
			marked++
		}
	}
	return marked
}

// IncrementCommitted bumps the auto-commit counter.
func (s *Store) IncrementCommitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Metrics.ClaimsCommitted++
}

// IncrementRejected bumps the gate-rejection counter.
func (s *Store) IncrementRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Metrics.ClaimsRejected++
}

// UpdateExtractionTime folds one extraction latency sample (milliseconds)
// into the running average and increments the extracted counter.
//
// The first sample sets the average directly; afterwards
// newAvg = (oldAvg*(n-1) + sample) / n with n the post-increment count.
func (s *Store) UpdateExtractionTime(millis float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Metrics.ClaimsExtracted++
	n := float64(s.state.Metrics.ClaimsExtracted)
	if n == 1 {
		s.state.Metrics.AvgExtractionMillis = millis
		return
	}
	s.state.Metrics.AvgExtractionMillis =
		(s.state.Metrics.AvgExtractionMillis*(n-1) + millis) / n
}

// Metrics returns a copy of the running counters.
func (s *Store) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Metrics
}
