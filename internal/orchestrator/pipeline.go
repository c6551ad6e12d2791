// Package orchestrator drives batches of claims through the gate evaluator
// and routes each to auto-commit, human review, or discard.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/extraction"
	"github.com/fyrsmithlabs/insightd/internal/gate"
	"github.com/fyrsmithlabs/insightd/internal/insight"
	"github.com/fyrsmithlabs/insightd/internal/review"
	"github.com/fyrsmithlabs/insightd/internal/session"
	"github.com/fyrsmithlabs/insightd/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/insightd/internal/orchestrator"

// Error type tags for the session error log.
const (
	errTypeExtraction = "extraction_failed"
	errTypeCommit     = "commit_failed"
	errTypeEnqueue    = "review_enqueue_failed"
	errTypeClaim      = "invalid_claim"
	errTypeCheckpoint = "checkpoint_failed"
)

var (
	// ErrMissingDependency is returned when a required collaborator is nil.
	ErrMissingDependency = errors.New("orchestrator: missing dependency")

	// ErrExtractionUnavailable is returned when no extractor is configured.
	ErrExtractionUnavailable = errors.New("orchestrator: extractor not available")
)

// Evaluator runs the quality gates for one claim.
type Evaluator interface {
	Evaluate(ctx context.Context, claim *insight.Claim) gate.Verdict
}

// Committer writes an approved claim to the knowledge store.
type Committer interface {
	Commit(ctx context.Context, claim *insight.Claim, status insight.ValidationStatus, validatorID string) (vectorstore.CommitResult, error)
}

// Reviewer queues a claim for human review.
type Reviewer interface {
	Enqueue(ctx context.Context, claim *insight.Claim) (*review.Item, error)
}

// BatchResult summarizes one processed batch.
type BatchResult struct {
	// JobID is the extraction job, when the batch came from a transcript.
	JobID string `json:"job_id,omitempty"`

	// Processed counts claims that went through the gates.
	Processed int `json:"processed"`

	// Committed counts claims written to the knowledge store.
	Committed int `json:"committed"`

	// Queued counts claims sent to human review.
	Queued int `json:"queued"`

	// Rejected counts claims the gates discarded.
	Rejected int `json:"rejected"`

	// Failed counts claims whose commit or enqueue errored.
	Failed int `json:"failed"`

	// Verdicts holds the gate verdict per claim ID.
	Verdicts map[string]gate.Verdict `json:"verdicts"`
}

// Pipeline coordinates extraction, gating, commits, and review queuing
// for a single tenant.
type Pipeline struct {
	evaluator Evaluator
	committer Committer
	reviewer  Reviewer
	extractor extraction.Extractor
	sessions  *session.Store
	logger    *zap.Logger
	tracer    trace.Tracer
	processed metric.Int64Counter
}

// New creates a pipeline. The extractor may be nil when claims arrive
// pre-extracted; everything else is required.
func New(evaluator Evaluator, committer Committer, reviewer Reviewer, extractor extraction.Extractor, sessions *session.Store, logger *zap.Logger) (*Pipeline, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("%w: evaluator", ErrMissingDependency)
	}
	if committer == nil {
		return nil, fmt.Errorf("%w: committer", ErrMissingDependency)
	}
	if reviewer == nil {
		return nil, fmt.Errorf("%w: reviewer", ErrMissingDependency)
	}
	if sessions == nil {
		return nil, fmt.Errorf("%w: session store", ErrMissingDependency)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		evaluator: evaluator,
		committer: committer,
		reviewer:  reviewer,
		extractor: extractor,
		sessions:  sessions,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
	}

	var err error
	p.processed, err = otel.Meter(instrumentationName).Int64Counter(
		"insightd.pipeline.claims_processed_total",
		metric.WithDescription("Claims processed by the pipeline, labeled by outcome"),
		metric.WithUnit("{claim}"),
	)
	if err != nil {
		logger.Warn("failed to create claims counter", zap.Error(err))
	}

	return p, nil
}

// ProcessTranscript extracts claims from one source document and runs them
// through the gates. The extraction job is tracked in the session so a crash
// mid-batch is visible after recovery.
func (p *Pipeline) ProcessTranscript(ctx context.Context, transcript extraction.Transcript) (*BatchResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process_transcript")
	defer span.End()

	if p.extractor == nil {
		return nil, ErrExtractionUnavailable
	}

	jobID := transcript.SourceID
	if jobID == "" {
		jobID = uuid.New().String()
	}

	p.sessions.QueueExtraction(jobID, []string{transcript.SourceID})
	if err := p.sessions.TransitionJob(jobID, session.JobProcessing, ""); err != nil {
		return nil, fmt.Errorf("starting extraction job: %w", err)
	}

	start := time.Now()
	candidates, err := p.extractor.Extract(ctx, transcript)
	if err != nil {
		p.sessions.RecordError(errTypeExtraction, err.Error(), transcript.SourceID)
		if terr := p.sessions.TransitionJob(jobID, session.JobFailed, err.Error()); terr != nil {
			p.logger.Warn("failed to mark job failed", zap.String("job_id", jobID), zap.Error(terr))
		}
		p.checkpoint()
		return nil, fmt.Errorf("extracting claims: %w", err)
	}
	elapsed := time.Since(start)

	claims := p.mintClaims(transcript, candidates)

	// Fold the per-claim share of the batch latency into the running average.
	if len(claims) > 0 {
		share := float64(elapsed.Milliseconds()) / float64(len(claims))
		for range claims {
			p.sessions.UpdateExtractionTime(share)
		}
	}

	result := p.processClaims(ctx, claims)
	result.JobID = jobID

	if err := p.sessions.TransitionJob(jobID, session.JobCompleted, ""); err != nil {
		p.logger.Warn("failed to mark job completed", zap.String("job_id", jobID), zap.Error(err))
	}
	p.checkpoint()

	p.logger.Info("transcript processed",
		zap.String("job_id", jobID),
		zap.String("source_id", transcript.SourceID),
		zap.Int("claims", result.Processed),
		zap.Int("committed", result.Committed),
		zap.Int("queued", result.Queued),
		zap.Int("rejected", result.Rejected),
		zap.Int("failed", result.Failed))

	return result, nil
}

// ProcessClaims runs pre-extracted claims through the gates in order and
// checkpoints the session at batch end.
func (p *Pipeline) ProcessClaims(ctx context.Context, claims []*insight.Claim) (*BatchResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process_claims")
	defer span.End()

	result := p.processClaims(ctx, claims)
	p.checkpoint()
	return result, nil
}

// processClaims routes each claim by its gate verdict. Claims are handled
// in input order; one claim's failure never stops the rest of the batch.
func (p *Pipeline) processClaims(ctx context.Context, claims []*insight.Claim) *BatchResult {
	result := &BatchResult{
		Verdicts: make(map[string]gate.Verdict, len(claims)),
	}

	for _, claim := range claims {
		verdict := p.evaluator.Evaluate(ctx, claim)
		result.Verdicts[claim.ID] = verdict
		result.Processed++

		outcome := verdict.Outcome()
		switch outcome {
		case gate.OutcomeRejected:
			p.sessions.IncrementRejected()
			result.Rejected++
			p.logger.Debug("claim rejected",
				zap.String("claim_id", claim.ID),
				zap.String("reason", verdict.RejectionReason))

		case gate.OutcomeNeedsReview:
			if _, err := p.reviewer.Enqueue(ctx, claim); err != nil {
				p.sessions.RecordError(errTypeEnqueue, err.Error(), claim.ID)
				result.Failed++
				p.logger.Error("failed to queue claim for review",
					zap.String("claim_id", claim.ID), zap.Error(err))
				break
			}
			result.Queued++

		default:
			// Auto-commit. A passed claim that needs no review is always
			// commit-eligible.
			if _, err := p.committer.Commit(ctx, claim, insight.StatusAutoApproved, ""); err != nil {
				p.sessions.RecordError(errTypeCommit, err.Error(), claim.ID)
				result.Failed++
				p.logger.Error("failed to commit claim",
					zap.String("claim_id", claim.ID), zap.Error(err))
				break
			}
			p.sessions.AddRecentClaim(session.RecentClaimEntry{
				ClaimID:    claim.ID,
				ContentKey: claim.Key(),
				Category:   claim.Category,
				CreatedAt:  time.Now(),
			})
			p.sessions.IncrementCommitted()
			result.Committed++
		}

		if p.processed != nil {
			p.processed.Add(ctx, 1, metric.WithAttributes(
				attribute.String("outcome", string(outcome))))
		}
	}

	return result
}

// mintClaims converts extractor candidates into validated claims. Candidates
// without a confidence score fall back to provenance-based scoring; invalid
// candidates are logged and skipped.
func (p *Pipeline) mintClaims(transcript extraction.Transcript, candidates []insight.CandidateClaim) []*insight.Claim {
	source := insight.Provenance{
		SourceType:  transcript.SourceType,
		SourceID:    transcript.SourceID,
		LeadID:      transcript.LeadID,
		CompanyName: transcript.CompanyName,
	}

	claims := make([]*insight.Claim, 0, len(candidates))
	for _, c := range candidates {
		confidence := c.Confidence
		if confidence == 0 {
			confidence = insight.ScoreConfidence(c.Quote != "", source)
		}

		claim, err := insight.NewClaim(p.sessions.TenantID(), c.Category, c.Content, c.Importance, confidence, source)
		if err != nil {
			p.sessions.RecordError(errTypeClaim, err.Error(), transcript.SourceID)
			p.logger.Warn("skipping invalid candidate",
				zap.String("source_id", transcript.SourceID), zap.Error(err))
			continue
		}
		claim.Quote = c.Quote
		claim.Actionable = c.Actionable
		claims = append(claims, claim)
	}

	return claims
}

// checkpoint persists the session. A failed checkpoint does not fail the
// batch; the state survives in memory and the next checkpoint retries.
func (p *Pipeline) checkpoint() {
	if err := p.sessions.Checkpoint(); err != nil {
		p.sessions.RecordError(errTypeCheckpoint, err.Error(), "")
		p.logger.Error("session checkpoint failed", zap.Error(err))
	}
}
