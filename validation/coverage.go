package validation

import "strings"

// Coverage checks that the treatment is a covered service, not excluded, and
// pre-authorized where the plan requires it.
type Coverage struct{}

func (Coverage) Name() string { return "coverage" }

func (v Coverage) Validate(in Input) Finding {
	codes := make([]ReasonCode, 0, 2)

	if covered, ok := in.Term.CoveredServices[in.Claim.TreatmentType]; !ok || !covered {
		codes = append(codes, CodeServiceNotCovered)
	}

	subject := strings.ToLower(in.Claim.Diagnosis + " " + in.Claim.TreatmentType)
	for _, exclusion := range in.Term.Exclusions {
		if exclusion == "" {
			continue
		}
		if strings.Contains(subject, strings.ToLower(exclusion)) {
			codes = append(codes, CodeExcludedCondition)
			break
		}
	}

	for _, svc := range in.Term.PreAuthRequired {
		if svc == in.Claim.TreatmentType && in.Claim.PreAuthNumber == "" {
			codes = append(codes, CodePreAuthMissing)
			break
		}
	}

	if len(codes) > 0 {
		return hardFail(v.Name(), codes...)
	}
	return passed(v.Name())
}
