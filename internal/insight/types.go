package insight

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Common errors for claim operations.
var (
	ErrEmptyTenantID     = errors.New("tenant ID cannot be empty")
	ErrEmptyContent      = errors.New("claim content cannot be empty")
	ErrContentLength     = errors.New("claim content must be 10 to 5000 characters")
	ErrInvalidCategory   = errors.New("invalid claim category")
	ErrInvalidImportance = errors.New("invalid importance level")
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")
)

// Content length bounds, counted in characters.
const (
	ContentMinLen = 10
	ContentMaxLen = 5000
)

// Category classifies what kind of sales insight a claim carries.
type Category string

const (
	CategoryBuyingProcess    Category = "buying_process"
	CategoryPainPoint        Category = "pain_point"
	CategoryObjection        Category = "objection"
	CategoryCompetitiveIntel Category = "competitive_intel"
	CategoryMessaging        Category = "messaging_effectiveness"
	CategoryICPSignal        Category = "icp_signal"
)

// Categories lists all valid claim categories.
var Categories = []Category{
	CategoryBuyingProcess,
	CategoryPainPoint,
	CategoryObjection,
	CategoryCompetitiveIntel,
	CategoryMessaging,
	CategoryICPSignal,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Importance ranks how much a claim matters to downstream consumers.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Valid reports whether i is a known importance level.
func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// ValidationStatus records how a committed claim was approved.
type ValidationStatus string

const (
	// StatusAutoApproved means the claim cleared every gate and was
	// committed without human review.
	StatusAutoApproved ValidationStatus = "auto_approved"

	// StatusValidated means a human reviewer approved the claim.
	StatusValidated ValidationStatus = "validated"

	// StatusRejected means a human reviewer (or expiry) rejected the claim.
	StatusRejected ValidationStatus = "rejected"
)

// Provenance describes where a claim came from.
type Provenance struct {
	// SourceType is the conversation medium: call_transcript, email_reply,
	// linkedin_message, or manual_entry.
	SourceType string `json:"source_type"`

	// SourceID is the originating document ID (call ID, email ID, ...).
	SourceID string `json:"source_id"`

	// LeadID is the associated lead, if known.
	LeadID string `json:"lead_id,omitempty"`

	// CompanyName is the prospect company, if known.
	CompanyName string `json:"company_name,omitempty"`

	// Context is free-text conversational context around the claim.
	Context string `json:"context,omitempty"`
}

// Claim is one candidate fact extracted from a sales conversation.
//
// Claims are immutable once produced by extraction; the gate evaluator,
// review queue, and knowledge store only ever read them.
type Claim struct {
	// ID is the unique claim identifier (UUID).
	ID string `json:"id"`

	// TenantID scopes the claim to one tenant brain.
	TenantID string `json:"tenant_id"`

	// Category classifies the insight.
	Category Category `json:"category"`

	// Content is the free-text claim body.
	Content string `json:"content"`

	// Quote is an optional verbatim quote backing the claim.
	Quote string `json:"quote,omitempty"`

	// Importance ranks the claim low, medium, or high.
	Importance Importance `json:"importance"`

	// Actionable marks claims a seller can act on directly.
	Actionable bool `json:"actionable"`

	// Confidence is the extraction confidence score in [0, 1].
	Confidence float64 `json:"confidence"`

	// Source records provenance.
	Source Provenance `json:"source"`

	// CreatedAt is when the claim was extracted.
	CreatedAt time.Time `json:"created_at"`
}

// NewClaim creates a claim with a generated UUID and validates its fields.
func NewClaim(tenantID string, category Category, content string, importance Importance, confidence float64, source Provenance) (*Claim, error) {
	c := &Claim{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Category:   category,
		Content:    content,
		Importance: importance,
		Confidence: confidence,
		Source:     source,
		CreatedAt:  time.Now(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks claim fields against the input contract.
func (c *Claim) Validate() error {
	if c.TenantID == "" {
		return ErrEmptyTenantID
	}
	content := strings.TrimSpace(c.Content)
	if content == "" {
		return ErrEmptyContent
	}
	if n := utf8.RuneCountInString(content); n < ContentMinLen || n > ContentMaxLen {
		return ErrContentLength
	}
	if !c.Category.Valid() {
		return ErrInvalidCategory
	}
	if !c.Importance.Valid() {
		return ErrInvalidImportance
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}

// Summary returns a short display string for review messages.
func (c *Claim) Summary() string {
	const maxLen = 200
	content := strings.TrimSpace(c.Content)
	if runes := []rune(content); len(runes) > maxLen {
		content = string(runes[:maxLen]) + "..."
	}
	return string(c.Category) + ": " + content
}

// CandidateClaim is the raw extractor output before a Claim is minted.
//
// Confidence may be zero when the extractor does not score; callers fall
// back to ScoreConfidence over the provenance metadata.
type CandidateClaim struct {
	Category   Category   `json:"category"`
	Content    string     `json:"content"`
	Quote      string     `json:"quote,omitempty"`
	Importance Importance `json:"importance"`
	Actionable bool       `json:"actionable"`
	Confidence float64    `json:"confidence"`
}
