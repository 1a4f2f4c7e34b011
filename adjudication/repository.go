package adjudication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"claimflow/claim"
	"claimflow/decision"
	"claimflow/policy"
)

// OutboxTopicDecision is the outbox topic for completed adjudications.
const OutboxTopicDecision = "claim.decision"

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository persists adjudication outcomes. Everything a run produces lands
// in one transaction: the decision row, the claim status, the holder's annual
// limit usage, the audit trail, and the outbox message.
type Repository struct {
	pool TxBeginner
}

func NewRepository(pool TxBeginner) *Repository {
	return &Repository{pool: pool}
}

// Persist writes the adjudication outcome atomically. Re-adjudication is
// idempotent: the prior decision row is locked, the new decision replaces it,
// and the holder's annual usage moves by the approved-amount delta rather than
// the full amount, so running the same claim twice cannot double-consume the
// limit.
func (r *Repository) Persist(ctx context.Context, params PersistParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("adjudication: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	prior, err := r.lockPriorApproved(ctx, tx, params.Claim.ID)
	if err != nil {
		return err
	}

	if err := r.upsertDecision(ctx, tx, params.Decision); err != nil {
		return err
	}

	delta := params.Decision.ApprovedAmount - prior
	if err := policy.ApplyLimitDelta(ctx, tx, params.Claim.PolicyHolderID, delta); err != nil {
		return err
	}

	if err := r.updateClaimStatus(ctx, tx, params.Claim.ID, params.Decision.Decision); err != nil {
		return err
	}

	if err := r.appendAuditEvents(ctx, tx, params, prior); err != nil {
		return err
	}

	if err := r.enqueueOutbox(ctx, tx, params.Decision); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("adjudication: commit tx: %w", err)
	}
	return nil
}

// lockPriorApproved reads the previous decision's approved amount under a row
// lock. Zero when the claim has never been adjudicated.
func (r *Repository) lockPriorApproved(ctx context.Context, tx pgx.Tx, claimID string) (float64, error) {
	var prior float64
	err := tx.QueryRow(ctx, `
		SELECT approved_amount FROM claim_decisions
		WHERE claim_id = $1
		FOR UPDATE
	`, claimID).Scan(&prior)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("adjudication: lock prior decision: %w", err)
	}
	return prior, nil
}

func (r *Repository) upsertDecision(ctx context.Context, tx pgx.Tx, d decision.Decision) error {
	const insertSQL = `
		INSERT INTO claim_decisions (
			decision_id, claim_id, decision, claimed_amount, eligible_amount,
			approved_amount, copayment_amount, copay_percent, network_discount,
			sub_limit_applied, annual_remaining, rejection_reasons,
			confidence_score, notes, next_steps, review_reason,
			eligibility_ok, documents_ok, coverage_ok, limits_ok,
			fraud_indicators, adjudicated_by, processed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		ON CONFLICT (claim_id) DO UPDATE SET
			decision_id = EXCLUDED.decision_id,
			decision = EXCLUDED.decision,
			claimed_amount = EXCLUDED.claimed_amount,
			eligible_amount = EXCLUDED.eligible_amount,
			approved_amount = EXCLUDED.approved_amount,
			copayment_amount = EXCLUDED.copayment_amount,
			copay_percent = EXCLUDED.copay_percent,
			network_discount = EXCLUDED.network_discount,
			sub_limit_applied = EXCLUDED.sub_limit_applied,
			annual_remaining = EXCLUDED.annual_remaining,
			rejection_reasons = EXCLUDED.rejection_reasons,
			confidence_score = EXCLUDED.confidence_score,
			notes = EXCLUDED.notes,
			next_steps = EXCLUDED.next_steps,
			review_reason = EXCLUDED.review_reason,
			eligibility_ok = EXCLUDED.eligibility_ok,
			documents_ok = EXCLUDED.documents_ok,
			coverage_ok = EXCLUDED.coverage_ok,
			limits_ok = EXCLUDED.limits_ok,
			fraud_indicators = EXCLUDED.fraud_indicators,
			adjudicated_by = EXCLUDED.adjudicated_by,
			processed_at = EXCLUDED.processed_at
	`

	rejection, err := json.Marshal(d.RejectionReasons)
	if err != nil {
		return fmt.Errorf("adjudication: marshal rejection reasons: %w", err)
	}
	fraud, err := json.Marshal(d.FraudIndicators)
	if err != nil {
		return fmt.Errorf("adjudication: marshal fraud indicators: %w", err)
	}

	_, err = tx.Exec(ctx, insertSQL,
		d.ID, d.ClaimID, string(d.Decision), d.ClaimedAmount, d.EligibleAmount,
		d.ApprovedAmount, d.CoPaymentAmount, d.CoPayPercent, d.NetworkDiscount,
		d.SubLimitApplied, d.AnnualRemaining, rejection,
		d.ConfidenceScore, d.Notes, d.NextSteps, string(d.ReviewReason),
		d.EligibilityOK, d.DocumentsOK, d.CoverageOK, d.LimitsOK,
		fraud, d.AdjudicatedBy, d.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("adjudication: upsert decision: %w", err)
	}
	return nil
}

// statusFor maps the decision outcome onto the claim state machine.
func statusFor(t decision.Type) claim.Status {
	if t == decision.ManualReview {
		return claim.StatusManualReview
	}
	return claim.StatusAdjudicated
}

func (r *Repository) updateClaimStatus(ctx context.Context, tx pgx.Tx, claimID string, t decision.Type) error {
	tag, err := tx.Exec(ctx, `
		UPDATE claims
		SET status = $2, retry_eligible = false, updated_at = now()
		WHERE claim_id = $1 AND status = 'adjudicating'
	`, claimID, string(statusFor(t)))
	if err != nil {
		return fmt.Errorf("adjudication: update claim status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("adjudication: claim %s not adjudicating", claimID)
	}
	return nil
}

func (r *Repository) appendAuditEvents(ctx context.Context, tx pgx.Tx, params PersistParams, prior float64) error {
	d := params.Decision
	events := []struct {
		eventType string
		payload   map[string]any
	}{
		{
			eventType: "DECISION_RECORDED",
			payload: map[string]any{
				"decision_id":     d.ID,
				"decision":        string(d.Decision),
				"approved_amount": d.ApprovedAmount,
				"confidence":      d.ConfidenceScore,
				"prior_approved":  prior,
			},
		},
	}
	if params.EnrichmentDiscarded {
		events = append(events, struct {
			eventType string
			payload   map[string]any
		}{
			eventType: "ENRICHMENT_DISCARDED",
			payload: map[string]any{
				"decision_id": d.ID,
				"strategy":    params.StrategyName,
			},
		})
	}

	for _, ev := range events {
		payloadBytes, err := json.Marshal(ev.payload)
		if err != nil {
			return fmt.Errorf("adjudication: marshal audit payload: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO audit_events (claim_id, event_type, payload)
			VALUES ($1, $2, $3)
		`, d.ClaimID, ev.eventType, payloadBytes)
		if err != nil {
			return fmt.Errorf("adjudication: insert audit event: %w", err)
		}
	}
	return nil
}

func (r *Repository) enqueueOutbox(ctx context.Context, tx pgx.Tx, d decision.Decision) error {
	payload, err := json.Marshal(map[string]any{
		"type":            "claim_decision",
		"claim_id":        d.ClaimID,
		"decision":        string(d.Decision),
		"approved_amount": d.ApprovedAmount,
		"timestamp":       d.ProcessedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("adjudication: marshal outbox payload: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox (topic, payload)
		VALUES ($1, $2)
	`, OutboxTopicDecision, payload); err != nil {
		return fmt.Errorf("adjudication: insert outbox message: %w", err)
	}
	return nil
}
