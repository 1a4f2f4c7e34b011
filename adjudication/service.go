// Package adjudication orchestrates a full adjudication run: it claims the
// work via a status compare-and-set, gathers the evidence snapshot, runs the
// validators, applies guardrails, synthesizes the decision, and persists the
// outcome atomically.
package adjudication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"claimflow/claim"
	"claimflow/config"
	"claimflow/decision"
	"claimflow/policy"
	"claimflow/validation"
)

// ErrParked reports that a run gave up and the claim was moved to failed with
// the retry-eligible flag set. Parked claims are re-triggered by operators,
// not by redelivering the original message.
var ErrParked = errors.New("claim parked")

// ClaimStore is the claim-side data access the orchestrator needs.
type ClaimStore interface {
	BeginAdjudication(ctx context.Context, claimID string) (claim.Claim, error)
	ListDocuments(ctx context.Context, claimID string) ([]claim.Document, error)
	ListRecentByHolder(ctx context.Context, holderID string, since time.Time, excludeClaimID string) ([]claim.HistoryEntry, error)
	MarkFailed(ctx context.Context, claimID string, retryEligible bool) error
}

// HolderStore loads policy holders.
type HolderStore interface {
	GetHolder(ctx context.Context, holderID string) (policy.Holder, error)
}

// Persister writes the decision, claim status, limit usage, audit trail, and
// outbox message in one transaction.
type Persister interface {
	Persist(ctx context.Context, params PersistParams) error
}

// PersistParams is everything the persistence transaction needs.
type PersistParams struct {
	Claim               claim.Claim
	Decision            decision.Decision
	StrategyName        string
	EnrichmentDiscarded bool
}

// Service runs adjudications end to end.
type Service struct {
	claims      ClaimStore
	holders     HolderStore
	terms       policy.TermStore
	store       Persister
	strategy    decision.Strategy // nil disables enrichment
	validators  []validation.Validator
	cfg         config.Adjudication
	retry       config.Retry
	log         *slog.Logger
	idGenerator func() string
	now         func() time.Time
}

func NewService(claims ClaimStore, holders HolderStore, terms policy.TermStore, store Persister, strategy decision.Strategy, cfg config.Adjudication, retry config.Retry, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		claims:   claims,
		holders:  holders,
		terms:    terms,
		store:    store,
		strategy: strategy,
		validators: validation.DefaultSet(validation.FraudConfig{
			WindowDays:        cfg.FraudWindowDays,
			MaxClaimsInWindow: cfg.FraudMaxClaims,
			AnomalyFactor:     cfg.AmountAnomalyFactor,
		}),
		cfg:         cfg,
		retry:       retry,
		log:         log,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Adjudicate runs one adjudication for the claim. The initial compare-and-set
// guarantees at most one run holds the claim; callers racing on the same claim
// get claim.ErrAdjudicationInProgress. Transient failures inside the run are
// retried with exponential backoff, and on exhaustion the claim is parked as
// failed with the retry-eligible flag set so operators can re-trigger it.
func (s *Service) Adjudicate(ctx context.Context, claimID string) (decision.Decision, error) {
	c, err := s.claims.BeginAdjudication(ctx, claimID)
	if err != nil {
		return decision.Decision{}, err
	}

	log := s.log.With("claim_id", c.ID, "holder_id", c.PolicyHolderID)
	log.InfoContext(ctx, "adjudication started", "claimed_amount", c.ClaimedAmount)

	var d decision.Decision
	operation := func() error {
		var runErr error
		d, runErr = s.run(ctx, log, c)
		return runErr
	}

	attempts := s.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retry.InitialInterval
	bo.MaxInterval = s.retry.MaxInterval

	err = backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
	if err != nil {
		log.ErrorContext(ctx, "adjudication failed", "error", err)
		if failErr := s.claims.MarkFailed(ctx, c.ID, true); failErr != nil {
			log.ErrorContext(ctx, "mark failed", "error", failErr)
			return decision.Decision{}, fmt.Errorf("adjudication: claim %s: %w", c.ID, err)
		}
		return decision.Decision{}, fmt.Errorf("adjudication: claim %s: %w: %w", c.ID, ErrParked, err)
	}

	log.InfoContext(ctx, "adjudication complete",
		"decision", d.Decision,
		"approved_amount", d.ApprovedAmount,
		"confidence", d.ConfidenceScore)
	return d, nil
}

// run executes a single attempt: snapshot, validate, decide, persist.
func (s *Service) run(ctx context.Context, log *slog.Logger, c claim.Claim) (decision.Decision, error) {
	in, err := s.snapshot(ctx, c)
	if err != nil {
		return decision.Decision{}, err
	}

	findings := validation.Run(ctx, in, s.validators)

	if verdict := decision.ApplyGuardrails(c, findings, decision.GuardrailConfig{
		MinimumClaimAmount:     s.cfg.MinimumClaimAmount,
		SubmissionDeadlineDays: s.cfg.SubmissionDeadlineDays,
	}); verdict != nil {
		log.InfoContext(ctx, "kill switch fired", "rule", verdict.Rule)
		d := decision.FromVerdict(s.idGenerator(), c, findings, verdict, s.now())
		if err := s.persist(ctx, c, d, "", false); err != nil {
			return decision.Decision{}, err
		}
		return d, nil
	}

	confidence := decision.Score(findings)
	draft := decision.Synthesize(c, findings, confidence, decision.SynthesizerConfig{
		ManualReviewThreshold: s.cfg.ManualReviewThreshold,
		HighValueAmount:       s.cfg.HighValueAmount,
	})

	strategyName := ""
	discarded := false
	if s.strategy != nil {
		strategyName = s.strategy.Name()
		enriched, enrichErr := s.strategy.Enrich(ctx, decision.EnrichmentInput{
			Claim:       c,
			Term:        in.Term,
			Findings:    findings,
			Preliminary: draft,
			Confidence:  confidence,
		})
		if enrichErr != nil {
			// the deterministic draft stands on its own
			log.WarnContext(ctx, "enrichment unavailable", "strategy", strategyName, "error", enrichErr)
		} else {
			draft, discarded = decision.Reconcile(draft, enriched)
			if discarded {
				log.WarnContext(ctx, "enrichment output discarded",
					"strategy", strategyName, "enriched_decision", enriched.Decision)
			}
		}
	}

	d := decision.Assemble(s.idGenerator(), c, findings, draft, confidence, s.now())
	if err := s.persist(ctx, c, d, strategyName, discarded); err != nil {
		return decision.Decision{}, err
	}
	return d, nil
}

// snapshot gathers the full read-only evidence bundle for the validators.
// Missing holder or term rows are represented as zero values; the eligibility
// validator turns those into MEMBER_NOT_COVERED instead of the run aborting.
func (s *Service) snapshot(ctx context.Context, c claim.Claim) (validation.Input, error) {
	fetchCtx := ctx
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	docs, err := s.claims.ListDocuments(fetchCtx, c.ID)
	if err != nil {
		if errors.Is(err, claim.ErrDocumentsPending) {
			return validation.Input{}, backoff.Permanent(err)
		}
		return validation.Input{}, err
	}

	var holder policy.Holder
	var term policy.Term
	h, err := s.holders.GetHolder(fetchCtx, c.PolicyHolderID)
	switch {
	case err == nil:
		holder = h
		t, termErr := s.terms.Lookup(fetchCtx, h.TermID)
		if termErr != nil && !errors.Is(termErr, policy.ErrTermNotFound) {
			return validation.Input{}, termErr
		}
		term = t
	case errors.Is(err, policy.ErrHolderNotFound):
		// zero-value holder; eligibility rejects it
	default:
		return validation.Input{}, err
	}

	now := s.now()
	since := now.AddDate(0, 0, -s.cfg.FraudWindowDays)
	history, err := s.claims.ListRecentByHolder(fetchCtx, c.PolicyHolderID, since, c.ID)
	if err != nil {
		return validation.Input{}, err
	}

	return validation.Input{
		Claim:     c,
		Documents: docs,
		Holder:    holder,
		Term:      term,
		History:   history,
		Now:       now,
	}, nil
}

// persist is retryable end to end: losing a concurrent-approval race on the
// annual limit surfaces as policy.ErrLimitExceeded here, and the next attempt
// re-snapshots the holder and reaches the partial or rejected outcome.
func (s *Service) persist(ctx context.Context, c claim.Claim, d decision.Decision, strategyName string, discarded bool) error {
	return s.store.Persist(ctx, PersistParams{
		Claim:               c,
		Decision:            d,
		StrategyName:        strategyName,
		EnrichmentDiscarded: discarded,
	})
}
