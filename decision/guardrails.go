package decision

import (
	"claimflow/claim"
	"claimflow/validation"
)

// GuardrailConfig holds the thresholds for the deterministic kill switches.
type GuardrailConfig struct {
	MinimumClaimAmount     float64
	SubmissionDeadlineDays int
}

// Verdict is a kill-switch result: a forced rejection that bypasses synthesis
// entirely. Confidence is 1.0 because the rule is deterministic.
type Verdict struct {
	Rule    string
	Reasons []validation.ReasonCode
}

type killSwitch struct {
	rule  string
	check func(c claim.Claim, findings []validation.Finding, cfg GuardrailConfig) []validation.ReasonCode
}

// The ordered kill-switch list. First match wins; none matching hands control
// to the synthesizer.
var killSwitches = []killSwitch{
	{
		rule: "below_minimum_amount",
		check: func(c claim.Claim, _ []validation.Finding, cfg GuardrailConfig) []validation.ReasonCode {
			if cfg.MinimumClaimAmount > 0 && c.ClaimedAmount < cfg.MinimumClaimAmount {
				return []validation.ReasonCode{validation.CodeBelowMinAmount}
			}
			return nil
		},
	},
	{
		rule: "late_submission",
		check: func(c claim.Claim, _ []validation.Finding, cfg GuardrailConfig) []validation.ReasonCode {
			if cfg.SubmissionDeadlineDays <= 0 {
				return nil
			}
			deadline := c.TreatmentDate.AddDate(0, 0, cfg.SubmissionDeadlineDays)
			if c.SubmissionDate.After(deadline) {
				return []validation.ReasonCode{validation.CodeLateSubmission}
			}
			return nil
		},
	},
	{
		rule: "policy_inactive",
		check: func(_ claim.Claim, findings []validation.Finding, _ GuardrailConfig) []validation.ReasonCode {
			for _, f := range findings {
				if f.Severity == validation.SeverityHardFail && hasCode(f, validation.CodePolicyInactive) {
					return []validation.ReasonCode{validation.CodePolicyInactive}
				}
			}
			return nil
		},
	},
	{
		rule: "annual_limit_exhausted",
		check: func(_ claim.Claim, findings []validation.Finding, _ GuardrailConfig) []validation.ReasonCode {
			for _, f := range findings {
				if hasCode(f, validation.CodeAnnualLimitExceeded) && f.Amounts != nil && f.Amounts.AnnualRemaining == 0 {
					return []validation.ReasonCode{validation.CodeAnnualLimitExceeded}
				}
			}
			return nil
		},
	},
	{
		rule: "duplicate_claim",
		check: func(_ claim.Claim, findings []validation.Finding, _ GuardrailConfig) []validation.ReasonCode {
			for _, f := range findings {
				for _, flag := range f.FraudFlags {
					if flag.Code == validation.CodeDuplicateClaim && flag.HighConfidence {
						return []validation.ReasonCode{validation.CodeDuplicateClaim}
					}
				}
			}
			return nil
		},
	},
}

// ApplyGuardrails evaluates the ordered kill-switch list. A nil return means
// no hard rule fired and synthesis may proceed.
func ApplyGuardrails(c claim.Claim, findings []validation.Finding, cfg GuardrailConfig) *Verdict {
	for _, ks := range killSwitches {
		if reasons := ks.check(c, findings, cfg); len(reasons) > 0 {
			return &Verdict{Rule: ks.rule, Reasons: reasons}
		}
	}
	return nil
}

func hasCode(f validation.Finding, code validation.ReasonCode) bool {
	for _, c := range f.ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}

// guardrail rejections are deterministic, so ProcessedAt aside they are
// reproducible across runs
func verdictDraft(v *Verdict) Draft {
	return Draft{
		Decision:       Rejected,
		ApprovedAmount: 0,
		Reasons:        v.Reasons,
		Notes:          "Claim rejected by hard policy rule: " + v.Rule,
		NextSteps:      "Please contact support if you believe this is an error.",
	}
}
