package decision

import (
	"testing"

	"claimflow/validation"
)

func findingsWithFailures(n int) []validation.Finding {
	names := []string{"eligibility", "coverage", "limits", "documents", "fraud"}
	findings := make([]validation.Finding, len(names))
	for i, name := range names {
		findings[i] = validation.Finding{Validator: name, Passed: i >= n, Severity: validation.SeverityHardFail}
	}
	return findings
}

func TestScore_Bands(t *testing.T) {
	if got := Score(findingsWithFailures(0)); got != 0.95 {
		t.Errorf("all passing: expected 0.95, got %v", got)
	}
	if got := Score(findingsWithFailures(1)); got < 0.75 || got > 0.85 {
		t.Errorf("one failure: expected score in [0.75, 0.85], got %v", got)
	}
	if got := Score(findingsWithFailures(2)); got >= 0.70 {
		t.Errorf("two failures: expected score below 0.70, got %v", got)
	}
}

func TestScore_MonotonicallyNonIncreasing(t *testing.T) {
	prev := 1.0
	for n := 0; n <= 5; n++ {
		got := Score(findingsWithFailures(n))
		if got > prev {
			t.Fatalf("score increased from %v to %v at %d failures", prev, got, n)
		}
		if got < 0 || got > 1 {
			t.Fatalf("score out of [0,1]: %v at %d failures", got, n)
		}
		prev = got
	}
}

func TestScore_HighSeverityFraudCaps(t *testing.T) {
	findings := findingsWithFailures(0)
	findings[4] = validation.Finding{
		Validator:  "fraud",
		Passed:     false,
		Severity:   validation.SeverityInformational,
		FraudFlags: []validation.FraudFlag{{Code: validation.CodeDuplicateClaim, HighConfidence: true}},
	}

	if got := Score(findings); got >= 0.70 {
		t.Errorf("high-severity fraud flag must push confidence below 0.70, got %v", got)
	}
}
