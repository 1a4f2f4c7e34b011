package decision

import (
	"context"

	"claimflow/claim"
	"claimflow/policy"
	"claimflow/validation"
)

// Strategy is a pluggable enrichment step. It receives the same structured
// findings as the deterministic synthesizer and must return a draft
// conforming to the same schema. Its output is a recommendation, not an
// authority: Reconcile enforces that deterministic verdicts win every tie.
type Strategy interface {
	Name() string
	Enrich(ctx context.Context, in EnrichmentInput) (Draft, error)
}

// EnrichmentInput is the full evidence bundle handed to a strategy.
type EnrichmentInput struct {
	Claim       claim.Claim
	Term        policy.Term
	Findings    []validation.Finding
	Preliminary Draft
	Confidence  float64
}

// Reconcile merges an enrichment draft into the deterministic one under the
// guardrail-precedence policy. Narrative fields (notes, next steps) are
// always adopted when present. The decision itself may only move toward
// caution: enrichment can escalate an approval or partial to manual review,
// but can never overturn a rejection, convert a manual review into a payout,
// or raise the approved amount. Returns the merged draft and whether any part
// of the enrichment was discarded.
func Reconcile(det, enriched Draft) (Draft, bool) {
	merged := det
	discarded := false

	if enriched.Notes != "" {
		merged.Notes = enriched.Notes
	}
	if enriched.NextSteps != "" {
		merged.NextSteps = enriched.NextSteps
	}

	if !enriched.Decision.Valid() {
		return merged, true
	}

	switch {
	case enriched.Decision == det.Decision:
		// agreement; amounts still clamped below
	case (det.Decision == Approved || det.Decision == Partial) && enriched.Decision == ManualReview:
		merged.Decision = ManualReview
		merged.ApprovedAmount = 0
		if enriched.ReviewReason != "" {
			merged.ReviewReason = enriched.ReviewReason
		} else {
			merged.ReviewReason = ReviewLowConfidence
		}
		return merged, discarded
	default:
		// conflicting verdict discarded; deterministic rules win
		return merged, true
	}

	if enriched.ApprovedAmount < merged.ApprovedAmount && merged.Decision != Rejected {
		merged.ApprovedAmount = enriched.ApprovedAmount
	} else if enriched.ApprovedAmount > merged.ApprovedAmount {
		discarded = true
	}

	return merged, discarded
}
