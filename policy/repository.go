package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrHolderNotFound is returned when no policy holder row exists for the identifier.
	ErrHolderNotFound = errors.New("policy: holder not found")
	// ErrTermNotFound is returned when no policy term row exists for the plan identifier.
	ErrTermNotFound = errors.New("policy: term not found")
	// ErrLimitExceeded signals a limit mutation that would push usage past the annual limit.
	ErrLimitExceeded = errors.New("policy: annual limit exceeded")
)

// TermStore looks up plan rules by plan identifier.
type TermStore interface {
	Lookup(ctx context.Context, termID string) (Term, error)
}

// Repository provides Postgres access to policy holders and terms.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetHolder loads the policy holder for the given identifier.
func (r *Repository) GetHolder(ctx context.Context, holderID string) (Holder, error) {
	const query = `
		SELECT holder_id, name, COALESCE(email,''), COALESCE(phone,''),
		       COALESCE(term_id,''), status, policy_start_date,
		       annual_limit, annual_limit_used, COALESCE(pre_existing,'{}'), created_at
		FROM policy_holders
		WHERE holder_id = $1
	`

	var h Holder
	err := r.pool.QueryRow(ctx, query, holderID).Scan(
		&h.ID, &h.Name, &h.Email, &h.Phone,
		&h.TermID, &h.Status, &h.PolicyStartDate,
		&h.AnnualLimit, &h.AnnualLimitUsed, &h.PreExisting, &h.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Holder{}, ErrHolderNotFound
		}
		return Holder{}, fmt.Errorf("policy: get holder: %w", err)
	}
	return h, nil
}

// Lookup loads the policy term for the given plan identifier.
func (r *Repository) Lookup(ctx context.Context, termID string) (Term, error) {
	const query = `
		SELECT term_id, name, annual_limit, per_claim_limit,
		       sub_limits, copay_percents, network_discount_percent,
		       covered_services, exclusions, pre_auth_required,
		       initial_waiting_days, ailment_waiting_days,
		       COALESCE(network_providers,'{}'), effective_date
		FROM policy_terms
		WHERE term_id = $1
	`

	var t Term
	err := r.pool.QueryRow(ctx, query, termID).Scan(
		&t.ID, &t.Name, &t.AnnualLimit, &t.PerClaimLimit,
		&t.SubLimits, &t.CoPayPercents, &t.NetworkDiscountPercent,
		&t.CoveredServices, &t.Exclusions, &t.PreAuthRequired,
		&t.InitialWaitingDays, &t.AilmentWaitingDays,
		&t.NetworkProviders, &t.EffectiveDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Term{}, ErrTermNotFound
		}
		return Term{}, fmt.Errorf("policy: lookup term %s: %w", termID, err)
	}
	return t, nil
}

// ApplyLimitDelta adjusts annual_limit_used by delta inside the caller's
// transaction. The UPDATE takes the row lock, so concurrent adjudications for
// the same holder serialize here. A delta that would push usage past the
// annual limit or below zero returns ErrLimitExceeded without writing.
func ApplyLimitDelta(ctx context.Context, tx pgx.Tx, holderID string, delta float64) error {
	if delta == 0 {
		return nil
	}

	const query = `
		UPDATE policy_holders
		SET annual_limit_used = annual_limit_used + $2
		WHERE holder_id = $1
		  AND annual_limit_used + $2 >= 0
		  AND annual_limit_used + $2 <= annual_limit
		RETURNING annual_limit_used
	`

	var used float64
	if err := tx.QueryRow(ctx, query, holderID, delta).Scan(&used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLimitExceeded
		}
		return fmt.Errorf("policy: apply limit delta: %w", err)
	}
	return nil
}
