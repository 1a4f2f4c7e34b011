package validation

import (
	"strings"

	"claimflow/policy"
)

// Eligibility checks the policy holder's cover against the treatment date:
// active status, the policy window, and waiting periods.
type Eligibility struct{}

func (Eligibility) Name() string { return "eligibility" }

func (v Eligibility) Validate(in Input) Finding {
	codes := make([]ReasonCode, 0, 2)

	if in.Holder.ID == "" || in.Holder.TermID == "" {
		return hardFail(v.Name(), CodeMemberNotCovered)
	}
	if in.Holder.Status != policy.HolderActive {
		codes = append(codes, CodePolicyInactive)
	}

	if in.Claim.TreatmentDate.Before(in.Holder.PolicyStartDate) {
		codes = append(codes, CodePolicyInactive)
	} else {
		waitingEnd := in.Holder.PolicyStartDate.AddDate(0, 0, in.Term.InitialWaitingDays)
		if in.Claim.TreatmentDate.Before(waitingEnd) {
			codes = append(codes, CodeWaitingPeriod)
		} else if days, ok := ailmentWaiting(in.Term, in.Claim.Diagnosis); ok {
			if in.Claim.TreatmentDate.Before(in.Holder.PolicyStartDate.AddDate(0, 0, days)) {
				codes = append(codes, CodeWaitingPeriod)
			}
		}
	}

	if len(codes) > 0 {
		return hardFail(v.Name(), dedupe(codes)...)
	}
	return passed(v.Name())
}

// ailmentWaiting returns the extra waiting period configured for the
// diagnosis, matched by keyword.
func ailmentWaiting(term policy.Term, diagnosis string) (int, bool) {
	if diagnosis == "" {
		return 0, false
	}
	d := strings.ToLower(diagnosis)
	for keyword, days := range term.AilmentWaitingDays {
		if strings.Contains(d, strings.ToLower(keyword)) {
			return days, true
		}
	}
	return 0, false
}

func dedupe(codes []ReasonCode) []ReasonCode {
	seen := make(map[ReasonCode]bool, len(codes))
	out := codes[:0]
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
