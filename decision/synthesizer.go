package decision

import (
	"fmt"
	"strings"
	"time"

	"claimflow/claim"
	"claimflow/validation"
)

// SynthesizerConfig holds the decision-policy thresholds used by the
// deterministic algorithm.
type SynthesizerConfig struct {
	ManualReviewThreshold float64
	HighValueAmount       float64
}

// Synthesize produces the deterministic decision draft from the complete
// finding set. Order of precedence:
//
//  1. any remaining hard_fail finding rejects, reasons = union of hard_fail codes
//  2. a capped amount below the claimed amount takes the partial path
//  3. fraud flags, low confidence, or high claim value route to manual review
//  4. otherwise approve
func Synthesize(c claim.Claim, findings []validation.Finding, confidence float64, cfg SynthesizerConfig) Draft {
	amounts := limitAmounts(findings)

	var hardCodes []validation.ReasonCode
	var fraudCodes []validation.ReasonCode
	for _, f := range findings {
		if f.Severity == validation.SeverityHardFail && !f.Passed {
			hardCodes = append(hardCodes, f.ReasonCodes...)
		}
		for _, flag := range f.FraudFlags {
			fraudCodes = append(fraudCodes, flag.Code)
		}
	}

	if len(hardCodes) > 0 {
		return Draft{
			Decision:       Rejected,
			ApprovedAmount: 0,
			Reasons:        hardCodes,
			Notes:          "Claim rejected: " + joinCodes(hardCodes),
			NextSteps:      "Please review the rejection reasons and submit corrected documents if applicable.",
		}
	}

	if amounts != nil && amounts.CappedAmount < c.ClaimedAmount {
		approved := payable(amounts.CappedAmount, amounts)
		var limitCodes []validation.ReasonCode
		for _, f := range findings {
			if f.Validator == "limits" {
				limitCodes = f.ReasonCodes
			}
		}
		return Draft{
			Decision:       Partial,
			ApprovedAmount: approved,
			Reasons:        limitCodes,
			Notes: fmt.Sprintf("Claim partially approved: %.2f of %.2f claimed is payable under the applicable limits.",
				approved, c.ClaimedAmount),
			NextSteps: "The remaining balance is not payable under your plan limits.",
		}
	}

	if reason, ok := reviewReason(c, fraudCodes, confidence, cfg); ok {
		return Draft{
			Decision:       ManualReview,
			ApprovedAmount: 0,
			Notes:          "Claim routed to manual review: " + string(reason),
			NextSteps:      "Your claim is under review. You will be notified within 2-3 business days.",
			ReviewReason:   reason,
		}
	}

	approved := c.ClaimedAmount
	if amounts != nil {
		approved = payable(amounts.CappedAmount, amounts)
	}
	return Draft{
		Decision:       Approved,
		ApprovedAmount: approved,
		Notes:          fmt.Sprintf("Claim approved for %.2f.", approved),
		NextSteps:      "The approved amount will be reimbursed to your registered account.",
	}
}

// reviewReason picks the manual-review trigger, fraud first since it carries
// the most operational urgency.
func reviewReason(c claim.Claim, fraudCodes []validation.ReasonCode, confidence float64, cfg SynthesizerConfig) (ReviewReason, bool) {
	switch {
	case len(fraudCodes) > 0:
		return ReviewFraudSuspected, true
	case cfg.HighValueAmount > 0 && c.ClaimedAmount > cfg.HighValueAmount:
		return ReviewHighValue, true
	case confidence < cfg.ManualReviewThreshold:
		return ReviewLowConfidence, true
	}
	return "", false
}

func payable(capped float64, amounts *validation.LimitAmounts) float64 {
	v := capped - amounts.NetworkDiscount - amounts.CoPayment
	if v < 0 {
		return 0
	}
	return v
}

func limitAmounts(findings []validation.Finding) *validation.LimitAmounts {
	for _, f := range findings {
		if f.Amounts != nil {
			return f.Amounts
		}
	}
	return nil
}

func joinCodes(codes []validation.ReasonCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// Assemble builds the persistable decision record from the draft, findings,
// and score. All fields are populated here so the record is written
// atomically or not at all.
func Assemble(id string, c claim.Claim, findings []validation.Finding, draft Draft, confidence float64, at time.Time) Decision {
	d := Decision{
		ID:              id,
		ClaimID:         c.ID,
		Decision:        draft.Decision,
		ClaimedAmount:   c.ClaimedAmount,
		ApprovedAmount:  draft.ApprovedAmount,
		ConfidenceScore: confidence,
		Notes:           draft.Notes,
		NextSteps:       draft.NextSteps,
		ReviewReason:    draft.ReviewReason,
		AdjudicatedBy:   "SYSTEM",
		ProcessedAt:     at,
	}

	// rejection_reasons are only meaningful on the rejected and partial paths
	if draft.Decision == Rejected || draft.Decision == Partial {
		d.RejectionReasons = draft.Reasons
	}

	for _, f := range findings {
		switch f.Validator {
		case "eligibility":
			d.EligibilityOK = f.Passed
		case "coverage":
			d.CoverageOK = f.Passed
		case "limits":
			d.LimitsOK = f.Passed
		case "documents":
			d.DocumentsOK = f.Passed
		case "fraud":
			for _, flag := range f.FraudFlags {
				d.FraudIndicators = append(d.FraudIndicators, flag.Code)
			}
		}
	}

	if amounts := limitAmounts(findings); amounts != nil {
		d.EligibleAmount = amounts.CappedAmount
		d.CoPaymentAmount = amounts.CoPayment
		d.CoPayPercent = amounts.CoPayPercent
		d.NetworkDiscount = amounts.NetworkDiscount
		d.SubLimitApplied = amounts.SubLimitApplied
		d.AnnualRemaining = amounts.AnnualRemaining
	}

	return d
}

// FromVerdict builds the decision record for a kill-switch rejection.
// Confidence is 1.0: the rule is deterministic.
func FromVerdict(id string, c claim.Claim, findings []validation.Finding, v *Verdict, at time.Time) Decision {
	d := Assemble(id, c, findings, verdictDraft(v), 1.0, at)
	return d
}
