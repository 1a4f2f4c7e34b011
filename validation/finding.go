// Package validation implements the rule checkers that inspect a claim, its
// extracted documents, the policy holder, and the plan terms. Each validator
// is a pure function of its Input; validators never mutate shared state and
// run concurrently under the runner.
package validation

import (
	"time"

	"claimflow/claim"
	"claimflow/policy"
)

// ReasonCode is a fixed-taxonomy code attached to findings and decisions.
type ReasonCode string

const (
	// eligibility
	CodePolicyInactive   ReasonCode = "POLICY_INACTIVE"
	CodeWaitingPeriod    ReasonCode = "WAITING_PERIOD"
	CodeMemberNotCovered ReasonCode = "MEMBER_NOT_COVERED"

	// coverage
	CodeServiceNotCovered ReasonCode = "SERVICE_NOT_COVERED"
	CodeExcludedCondition ReasonCode = "EXCLUDED_CONDITION"
	CodePreAuthMissing    ReasonCode = "PRE_AUTH_MISSING"

	// limits
	CodeAnnualLimitExceeded ReasonCode = "ANNUAL_LIMIT_EXCEEDED"
	CodeSubLimitExceeded    ReasonCode = "SUB_LIMIT_EXCEEDED"
	CodePerClaimExceeded    ReasonCode = "PER_CLAIM_EXCEEDED"

	// documents
	CodeMissingDocuments    ReasonCode = "MISSING_DOCUMENTS"
	CodeIllegibleDocuments  ReasonCode = "ILLEGIBLE_DOCUMENTS"
	CodeInvalidPrescription ReasonCode = "INVALID_PRESCRIPTION"
	CodeDoctorRegInvalid    ReasonCode = "DOCTOR_REG_INVALID"
	CodeDateMismatch        ReasonCode = "DATE_MISMATCH"
	CodePatientMismatch     ReasonCode = "PATIENT_MISMATCH"

	// fraud
	CodeDuplicateClaim    ReasonCode = "DUPLICATE_CLAIM"
	CodeAbnormalFrequency ReasonCode = "ABNORMAL_FREQUENCY"
	CodeAmountAnomaly     ReasonCode = "AMOUNT_ANOMALY"

	// guardrails
	CodeBelowMinAmount ReasonCode = "BELOW_MIN_AMOUNT"
	CodeLateSubmission ReasonCode = "LATE_SUBMISSION"
)

// Severity classifies how a finding feeds synthesis.
type Severity string

const (
	// SeverityInformational findings never force rejection on their own;
	// they feed confidence scoring and the partial/manual-review paths.
	SeverityInformational Severity = "informational"
	// SeverityHardFail findings force rejection unless the limit validator
	// computed a positive partial remainder.
	SeverityHardFail Severity = "hard_fail"
)

// FraudFlag is one fraud indicator. High-confidence duplicate flags feed the
// kill-switch layer; the rest route to manual review.
type FraudFlag struct {
	Code           ReasonCode
	HighConfidence bool
}

// LimitAmounts carries the limit validator's computed amounts for the
// synthesizer. CappedAmount is the maximum approvable before co-pay; when it
// is below the claimed amount the partial path applies.
type LimitAmounts struct {
	EligibleAmount  float64
	CappedAmount    float64
	CoPayment       float64
	CoPayPercent    float64
	NetworkDiscount float64
	SubLimitApplied string
	AnnualRemaining float64
}

// Finding is the structured result of one validator run. Ephemeral: produced
// and consumed within a single adjudication run.
type Finding struct {
	Validator   string
	Passed      bool
	ReasonCodes []ReasonCode
	Severity    Severity
	Amounts     *LimitAmounts // set by the limit validator only
	FraudFlags  []FraudFlag   // set by the fraud detector only
}

func passed(name string) Finding {
	return Finding{Validator: name, Passed: true, Severity: SeverityInformational}
}

func hardFail(name string, codes ...ReasonCode) Finding {
	return Finding{Validator: name, Passed: false, ReasonCodes: codes, Severity: SeverityHardFail}
}

// Input is the complete read-only snapshot a validator may inspect.
type Input struct {
	Claim     claim.Claim
	Documents []claim.Document
	Holder    policy.Holder
	Term      policy.Term
	History   []claim.HistoryEntry
	Now       time.Time
}

// Validator produces a finding for one policy dimension.
type Validator interface {
	Name() string
	Validate(in Input) Finding
}
