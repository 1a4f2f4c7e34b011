// Package decision turns a complete validation finding set into a structured,
// auditable adjudication decision. The guardrail layer runs first and its
// verdicts cannot be overridden by anything downstream, including the
// optional LLM enrichment strategy.
package decision

import (
	"time"

	"claimflow/validation"
)

// Type enumerates adjudication outcomes.
type Type string

const (
	Approved     Type = "APPROVED"
	Rejected     Type = "REJECTED"
	Partial      Type = "PARTIAL"
	ManualReview Type = "MANUAL_REVIEW"
)

// Valid reports whether t is a known outcome. Used to reject malformed
// enrichment output.
func (t Type) Valid() bool {
	switch t {
	case Approved, Rejected, Partial, ManualReview:
		return true
	}
	return false
}

// ReviewReason records why a claim was routed to a human.
type ReviewReason string

const (
	ReviewFraudSuspected ReviewReason = "fraud_suspected"
	ReviewHighValue      ReviewReason = "high_value"
	ReviewLowConfidence  ReviewReason = "low_confidence"
)

// Decision is the adjudication record persisted for a claim. Exactly one
// current decision exists per claim; re-adjudication replaces it.
type Decision struct {
	ID               string
	ClaimID          string
	Decision         Type
	ClaimedAmount    float64
	EligibleAmount   float64
	ApprovedAmount   float64
	CoPaymentAmount  float64
	CoPayPercent     float64
	NetworkDiscount  float64
	SubLimitApplied  string
	AnnualRemaining  float64
	RejectionReasons []validation.ReasonCode
	ConfidenceScore  float64
	Notes            string
	NextSteps        string
	ReviewReason     ReviewReason
	EligibilityOK    bool
	DocumentsOK      bool
	CoverageOK       bool
	LimitsOK         bool
	FraudIndicators  []validation.ReasonCode
	AdjudicatedBy    string
	ProcessedAt      time.Time
}

// Draft is the synthesizer's intermediate output, before confidence scoring
// and persistence details are attached. The enrichment strategy returns the
// same shape.
type Draft struct {
	Decision       Type
	ApprovedAmount float64
	Reasons        []validation.ReasonCode
	Notes          string
	NextSteps      string
	ReviewReason   ReviewReason
}
