package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrClaimNotFound is returned when no claim row exists for the identifier.
	ErrClaimNotFound = errors.New("claim: not found")
	// ErrNotReady signals the claim is not in a status eligible for adjudication.
	ErrNotReady = errors.New("claim: not ready for adjudication")
	// ErrAdjudicationInProgress signals another adjudication run holds the claim.
	ErrAdjudicationInProgress = errors.New("claim: adjudication already in progress")
	// ErrDocumentsPending signals at least one document has not reached a terminal status.
	ErrDocumentsPending = errors.New("claim: documents still processing")
)

// Repository provides Postgres access to claims and their documents.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const claimColumns = `
	claim_id, policy_holder_id, claimed_amount, COALESCE(treatment_type,''),
	treatment_date, COALESCE(diagnosis,''), COALESCE(provider_name,''),
	provider_network, COALESCE(pre_auth_number,''), submission_date,
	status, retry_eligible, created_at
`

func scanClaim(row pgx.Row) (Claim, error) {
	var c Claim
	err := row.Scan(
		&c.ID, &c.PolicyHolderID, &c.ClaimedAmount, &c.TreatmentType,
		&c.TreatmentDate, &c.Diagnosis, &c.ProviderName,
		&c.ProviderNetwork, &c.PreAuthNumber, &c.SubmissionDate,
		&c.Status, &c.RetryEligible, &c.CreatedAt,
	)
	return c, err
}

// GetByID loads a claim by identifier.
func (r *Repository) GetByID(ctx context.Context, claimID string) (Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE claim_id = $1`
	c, err := scanClaim(r.pool.QueryRow(ctx, query, claimID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrClaimNotFound
		}
		return Claim{}, fmt.Errorf("claim: get %s: %w", claimID, err)
	}
	return c, nil
}

// BeginAdjudication performs the compare-and-set that guarantees at most one
// concurrent adjudication run per claim: only a claim in processing (or a
// retry-eligible failed claim) moves to adjudicating, and the single UPDATE
// means competing triggers see zero rows and back off.
func (r *Repository) BeginAdjudication(ctx context.Context, claimID string) (Claim, error) {
	query := `
		UPDATE claims
		SET status = 'adjudicating', updated_at = now()
		WHERE claim_id = $1
		  AND (status = 'processing' OR (status = 'failed' AND retry_eligible))
		RETURNING ` + claimColumns

	c, err := scanClaim(r.pool.QueryRow(ctx, query, claimID))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Claim{}, fmt.Errorf("claim: begin adjudication: %w", err)
	}

	// Zero rows: distinguish missing, busy, and wrong-status claims.
	var status Status
	if err := r.pool.QueryRow(ctx, `SELECT status FROM claims WHERE claim_id = $1`, claimID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrClaimNotFound
		}
		return Claim{}, fmt.Errorf("claim: begin adjudication status check: %w", err)
	}
	if status == StatusAdjudicating {
		return Claim{}, ErrAdjudicationInProgress
	}
	return Claim{}, fmt.Errorf("%w (status=%s)", ErrNotReady, status)
}

// ListDocuments returns all documents attached to the claim. It fails with
// ErrDocumentsPending when any document has not reached a terminal status,
// since validators need the complete extraction output.
func (r *Repository) ListDocuments(ctx context.Context, claimID string) ([]Document, error) {
	const query = `
		SELECT document_id, claim_id, document_type, extracted_data,
		       COALESCE(confidence_score, 0), status, processed_at
		FROM documents
		WHERE claim_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("claim: list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0, 4)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ClaimID, &d.Type, &d.ExtractedData, &d.Confidence, &d.Status, &d.ProcessedAt); err != nil {
			return nil, fmt.Errorf("claim: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: iterate documents: %w", err)
	}

	for _, d := range docs {
		if !d.Status.Terminal() {
			return nil, ErrDocumentsPending
		}
	}
	return docs, nil
}

// ListRecentByHolder returns prior claims of the policy holder submitted since
// the cutoff, excluding the claim under adjudication. Input for the fraud
// detector's duplicate and frequency checks.
func (r *Repository) ListRecentByHolder(ctx context.Context, holderID string, since time.Time, excludeClaimID string) ([]HistoryEntry, error) {
	const query = `
		SELECT claim_id, COALESCE(provider_name,''), COALESCE(treatment_type,''),
		       treatment_date, submission_date, claimed_amount
		FROM claims
		WHERE policy_holder_id = $1
		  AND submission_date >= $2
		  AND claim_id <> $3
		ORDER BY submission_date DESC
	`

	rows, err := r.pool.Query(ctx, query, holderID, since, excludeClaimID)
	if err != nil {
		return nil, fmt.Errorf("claim: list history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, 8)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ClaimID, &e.ProviderName, &e.TreatmentType, &e.TreatmentDate, &e.SubmissionDate, &e.ClaimedAmount); err != nil {
			return nil, fmt.Errorf("claim: scan history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: iterate history: %w", err)
	}
	return entries, nil
}

// MarkFailed transitions an adjudicating claim to failed after retries are
// exhausted, recording whether operators may re-trigger it.
func (r *Repository) MarkFailed(ctx context.Context, claimID string, retryEligible bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE claims
		SET status = 'failed', retry_eligible = $2, updated_at = now()
		WHERE claim_id = $1 AND status = 'adjudicating'
	`, claimID, retryEligible)
	if err != nil {
		return fmt.Errorf("claim: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: claim %s not adjudicating", ErrNotReady, claimID)
	}
	return nil
}
