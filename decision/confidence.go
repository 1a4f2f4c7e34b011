package decision

import "claimflow/validation"

// Score derives a confidence value from the finding set. The bands are fixed
// by policy: 0.95 when everything passes, 0.80 for exactly one failing
// validator, below 0.70 from two failures up, stepping down per extra
// failure. A high-confidence fraud flag caps the score at 0.60 regardless.
// The result is monotonically non-increasing in failure count and always in
// [0, 1]. Recomputed on every adjudication run, never cached.
func Score(findings []validation.Finding) float64 {
	failures := 0
	highSeverityFraud := false
	for _, f := range findings {
		if !f.Passed {
			failures++
		}
		for _, flag := range f.FraudFlags {
			if flag.HighConfidence {
				highSeverityFraud = true
			}
		}
	}

	var score float64
	switch {
	case failures == 0:
		score = 0.95
	case failures == 1:
		score = 0.80
	default:
		score = 0.65 - 0.05*float64(failures-2)
	}

	if highSeverityFraud && score > 0.60 {
		score = 0.60
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
