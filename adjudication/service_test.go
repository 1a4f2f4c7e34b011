package adjudication

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"claimflow/claim"
	"claimflow/config"
	"claimflow/decision"
	"claimflow/policy"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testAdjCfg() config.Adjudication {
	return config.Adjudication{
		ManualReviewThreshold:  0.70,
		HighValueAmount:        25000,
		MinimumClaimAmount:     500,
		SubmissionDeadlineDays: 30,
		FraudWindowDays:        30,
		FraudMaxClaims:         5,
		AmountAnomalyFactor:    3.0,
		FetchTimeout:           time.Second,
	}
}

func testRetryCfg() config.Retry {
	return config.Retry{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func testClaim() claim.Claim {
	treated := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return claim.Claim{
		ID:             "CLM001",
		PolicyHolderID: "PH001",
		ClaimedAmount:  5000,
		TreatmentType:  "consultation",
		TreatmentDate:  treated,
		SubmissionDate: treated.AddDate(0, 0, 10),
		Status:         claim.StatusProcessing,
	}
}

func testHolder() policy.Holder {
	return policy.Holder{
		ID:              "PH001",
		Name:            "Asha Verma",
		TermID:          "OPD-STD",
		Status:          policy.HolderActive,
		PolicyStartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		AnnualLimit:     50000,
	}
}

func testTerm() policy.Term {
	return policy.Term{
		ID:                 "OPD-STD",
		Name:               "Standard OPD",
		AnnualLimit:        50000,
		PerClaimLimit:      50000,
		CoveredServices:    map[string]bool{"consultation": true, "pharmacy": true, "diagnostic": true},
		InitialWaitingDays: 30,
	}
}

func testDocs() []claim.Document {
	return []claim.Document{{
		ID:      "DOC001",
		ClaimID: "CLM001",
		Type:    claim.DocBill,
		ExtractedData: map[string]any{
			"patient_name":   "Asha Verma",
			"total_amount":   5000.0,
			"treatment_date": "2024-06-01",
		},
		Confidence: 0.93,
		Status:     claim.DocProcessed,
	}}
}

type fakeClaims struct {
	claim     claim.Claim
	beginErr  error
	docs      []claim.Document
	docsErr   error
	docsFails int // transient failures before ListDocuments succeeds
	history   []claim.HistoryEntry

	beginCalls int
	failedWith *bool // retry-eligible flag passed to MarkFailed
}

func (f *fakeClaims) BeginAdjudication(ctx context.Context, claimID string) (claim.Claim, error) {
	f.beginCalls++
	if f.beginErr != nil {
		return claim.Claim{}, f.beginErr
	}
	return f.claim, nil
}

func (f *fakeClaims) ListDocuments(ctx context.Context, claimID string) ([]claim.Document, error) {
	if f.docsFails > 0 {
		f.docsFails--
		return nil, errors.New("claim: list documents: connection reset")
	}
	if f.docsErr != nil {
		return nil, f.docsErr
	}
	return f.docs, nil
}

func (f *fakeClaims) ListRecentByHolder(ctx context.Context, holderID string, since time.Time, excludeClaimID string) ([]claim.HistoryEntry, error) {
	return f.history, nil
}

func (f *fakeClaims) MarkFailed(ctx context.Context, claimID string, retryEligible bool) error {
	f.failedWith = &retryEligible
	return nil
}

type fakeHolders struct {
	holder policy.Holder
	err    error
	calls  int
}

func (f *fakeHolders) GetHolder(ctx context.Context, holderID string) (policy.Holder, error) {
	f.calls++
	if f.err != nil {
		return policy.Holder{}, f.err
	}
	return f.holder, nil
}

type fakeTerms struct {
	term policy.Term
	err  error
}

func (f *fakeTerms) Lookup(ctx context.Context, termID string) (policy.Term, error) {
	if f.err != nil {
		return policy.Term{}, f.err
	}
	return f.term, nil
}

type fakeStore struct {
	params  []PersistParams
	err     error
	fails   int   // failures served before Persist succeeds
	failErr error // error returned while fails > 0
}

func (f *fakeStore) Persist(ctx context.Context, params PersistParams) error {
	if f.fails > 0 {
		f.fails--
		return f.failErr
	}
	if f.err != nil {
		return f.err
	}
	f.params = append(f.params, params)
	return nil
}

type fakeStrategy struct {
	draft decision.Draft
	err   error
	calls int
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Enrich(ctx context.Context, in decision.EnrichmentInput) (decision.Draft, error) {
	f.calls++
	if f.err != nil {
		return decision.Draft{}, f.err
	}
	return f.draft, nil
}

func newTestService(claims *fakeClaims, holders *fakeHolders, terms *fakeTerms, store *fakeStore, strategy decision.Strategy) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(claims, holders, terms, store, strategy, testAdjCfg(), testRetryCfg(), log)
	seq := 0
	svc.WithIDGenerator(func() string { seq++; return "D" + string(rune('0'+seq)) })
	svc.WithClock(func() time.Time { return testNow })
	return svc
}

func TestAdjudicate_CleanClaimApproved(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docs: testDocs()}
	store := &fakeStore{}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, nil)

	d, err := svc.Adjudicate(context.Background(), "CLM001")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d.Decision != decision.Approved {
		t.Fatalf("expected APPROVED, got %s", d.Decision)
	}
	if d.ApprovedAmount != 5000 {
		t.Errorf("expected approved amount 5000, got %v", d.ApprovedAmount)
	}
	if d.ConfidenceScore != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", d.ConfidenceScore)
	}
	if len(store.params) != 1 {
		t.Fatalf("expected one persist call, got %d", len(store.params))
	}
	if store.params[0].Decision.ProcessedAt != testNow {
		t.Errorf("expected injected clock on the record, got %v", store.params[0].Decision.ProcessedAt)
	}
}

func TestAdjudicate_GuardrailRejectsBelowMinimum(t *testing.T) {
	c := testClaim()
	c.ClaimedAmount = 300
	claims := &fakeClaims{claim: c, docs: testDocs()}
	store := &fakeStore{}
	strategy := &fakeStrategy{}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, strategy)

	d, err := svc.Adjudicate(context.Background(), "CLM001")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d.Decision != decision.Rejected {
		t.Fatalf("expected REJECTED, got %s", d.Decision)
	}
	if d.ConfidenceScore != 1.0 {
		t.Errorf("kill-switch rejections carry confidence 1.0, got %v", d.ConfidenceScore)
	}
	if strategy.calls != 0 {
		t.Errorf("guardrail verdicts must bypass enrichment, got %d calls", strategy.calls)
	}
}

func TestAdjudicate_InProgressPropagates(t *testing.T) {
	claims := &fakeClaims{beginErr: claim.ErrAdjudicationInProgress}
	store := &fakeStore{}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, nil)

	_, err := svc.Adjudicate(context.Background(), "CLM001")
	if !errors.Is(err, claim.ErrAdjudicationInProgress) {
		t.Fatalf("expected ErrAdjudicationInProgress, got %v", err)
	}
	if len(store.params) != 0 {
		t.Errorf("expected no persist call, got %d", len(store.params))
	}
}

func TestAdjudicate_DocumentsPendingFailsWithoutRetry(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docsErr: claim.ErrDocumentsPending}
	store := &fakeStore{}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, nil)

	_, err := svc.Adjudicate(context.Background(), "CLM001")
	if !errors.Is(err, claim.ErrDocumentsPending) {
		t.Fatalf("expected ErrDocumentsPending, got %v", err)
	}
	if !errors.Is(err, ErrParked) {
		t.Fatalf("expected the parked marker on the error, got %v", err)
	}
	if claims.failedWith == nil || !*claims.failedWith {
		t.Error("expected the claim marked failed and retry eligible")
	}
}

func TestAdjudicate_TransientFetchErrorRetried(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docs: testDocs(), docsFails: 2}
	store := &fakeStore{}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, nil)

	d, err := svc.Adjudicate(context.Background(), "CLM001")
	if err != nil {
		t.Fatalf("expected retries to absorb the transient failures, got %v", err)
	}
	if d.Decision != decision.Approved {
		t.Fatalf("expected APPROVED after retry, got %s", d.Decision)
	}
	if claims.failedWith != nil {
		t.Error("a successful run must not mark the claim failed")
	}
}

func TestAdjudicate_RetriesExhaustedMarksFailed(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docsFails: 10}
	store := &fakeStore{}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, nil)

	_, err := svc.Adjudicate(context.Background(), "CLM001")
	if err == nil {
		t.Fatal("expected an error after retry exhaustion")
	}
	if !errors.Is(err, ErrParked) {
		t.Fatalf("expected the parked marker on the error, got %v", err)
	}
	if claims.failedWith == nil || !*claims.failedWith {
		t.Error("expected the claim marked failed and retry eligible")
	}
	if len(store.params) != 0 {
		t.Errorf("expected no persist call, got %d", len(store.params))
	}
}

func TestAdjudicate_MissingHolderRejectsMemberNotCovered(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docs: testDocs()}
	store := &fakeStore{}
	svc := newTestService(claims, &fakeHolders{err: policy.ErrHolderNotFound}, &fakeTerms{term: testTerm()}, store, nil)

	d, err := svc.Adjudicate(context.Background(), "CLM001")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d.Decision != decision.Rejected {
		t.Fatalf("expected REJECTED, got %s", d.Decision)
	}
	found := false
	for _, code := range d.RejectionReasons {
		if code == "MEMBER_NOT_COVERED" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected MEMBER_NOT_COVERED in rejection reasons, got %v", d.RejectionReasons)
	}
}

func TestAdjudicate_EnrichmentErrorKeepsDeterministicDraft(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docs: testDocs()}
	store := &fakeStore{}
	strategy := &fakeStrategy{err: errors.New("decision: llm enrichment: rate limited")}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, strategy)

	d, err := svc.Adjudicate(context.Background(), "CLM001")
	if err != nil {
		t.Fatalf("expected the run to survive enrichment failure, got %v", err)
	}
	if d.Decision != decision.Approved || d.ApprovedAmount != 5000 {
		t.Fatalf("expected the deterministic draft to stand, got %+v", d)
	}
	if strategy.calls != 1 {
		t.Errorf("expected one enrichment attempt, got %d", strategy.calls)
	}
}

func TestAdjudicate_ConflictingEnrichmentDiscardedAndAudited(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docs: testDocs()}
	store := &fakeStore{}
	strategy := &fakeStrategy{draft: decision.Draft{Decision: decision.Rejected, Notes: "model disagrees"}}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, strategy)

	d, err := svc.Adjudicate(context.Background(), "CLM001")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d.Decision != decision.Approved {
		t.Fatalf("deterministic approval must stand, got %s", d.Decision)
	}
	if d.Notes != "model disagrees" {
		t.Errorf("narrative fields are still adopted, got %q", d.Notes)
	}
	if len(store.params) != 1 || !store.params[0].EnrichmentDiscarded {
		t.Error("the discard must be recorded for the audit trail")
	}
}

func TestAdjudicate_EnrichmentEscalationToManualReview(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docs: testDocs()}
	store := &fakeStore{}
	strategy := &fakeStrategy{draft: decision.Draft{Decision: decision.ManualReview, Notes: "inconsistent evidence"}}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, strategy)

	d, err := svc.Adjudicate(context.Background(), "CLM001")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d.Decision != decision.ManualReview || d.ApprovedAmount != 0 {
		t.Fatalf("expected escalation to MANUAL_REVIEW with zero amount, got %+v", d)
	}
}

func TestAdjudicate_LimitRaceRetriedWithFreshSnapshot(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docs: testDocs()}
	holders := &fakeHolders{holder: testHolder()}
	store := &fakeStore{fails: 1, failErr: policy.ErrLimitExceeded}
	svc := newTestService(claims, holders, &fakeTerms{term: testTerm()}, store, nil)

	d, err := svc.Adjudicate(context.Background(), "CLM001")
	if err != nil {
		t.Fatalf("expected the retry to absorb the limit race, got %v", err)
	}
	if d.Decision != decision.Approved {
		t.Fatalf("expected APPROVED on the second attempt, got %s", d.Decision)
	}
	if len(store.params) != 1 {
		t.Fatalf("expected the decision persisted once, got %d", len(store.params))
	}
	if holders.calls < 2 {
		t.Errorf("expected the holder re-read on retry, got %d reads", holders.calls)
	}
	if claims.failedWith != nil {
		t.Error("a recovered run must not mark the claim failed")
	}
}

func TestAdjudicate_LimitExceededExhaustionParksClaim(t *testing.T) {
	claims := &fakeClaims{claim: testClaim(), docs: testDocs()}
	store := &fakeStore{err: policy.ErrLimitExceeded}
	svc := newTestService(claims, &fakeHolders{holder: testHolder()}, &fakeTerms{term: testTerm()}, store, nil)

	_, err := svc.Adjudicate(context.Background(), "CLM001")
	if !errors.Is(err, policy.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if !errors.Is(err, ErrParked) {
		t.Fatalf("expected the parked marker on the error, got %v", err)
	}
	if claims.failedWith == nil || !*claims.failedWith {
		t.Error("expected the claim marked failed and retry eligible")
	}
}
