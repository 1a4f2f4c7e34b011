package validation

import (
	"time"

	"claimflow/claim"
)

// FraudConfig tunes the detector's rolling-window and anomaly checks.
type FraudConfig struct {
	WindowDays        int     // rolling window for the frequency check
	MaxClaimsInWindow int     // claims in window before the frequency flag trips
	AnomalyFactor     float64 // multiple of the category mean that flags an amount
}

// Fraud flags duplicate claims, abnormal claim frequency, and amount
// anomalies. Its findings are informational: they feed confidence scoring and
// the manual-review path rather than forcing rejection, except that a
// high-confidence duplicate is picked up by the kill-switch layer.
type Fraud struct {
	cfg FraudConfig
}

func NewFraud(cfg FraudConfig) Fraud {
	return Fraud{cfg: cfg}
}

func (Fraud) Name() string { return "fraud" }

func (v Fraud) Validate(in Input) Finding {
	flags := make([]FraudFlag, 0, 2)

	for _, prior := range in.History {
		if prior.ProviderName != "" &&
			prior.ProviderName == in.Claim.ProviderName &&
			sameDay(prior.TreatmentDate, in.Claim.TreatmentDate) {
			flags = append(flags, FraudFlag{Code: CodeDuplicateClaim, HighConfidence: true})
			break
		}
	}

	if v.cfg.MaxClaimsInWindow > 0 {
		cutoff := in.Now.AddDate(0, 0, -v.cfg.WindowDays)
		recent := 0
		for _, prior := range in.History {
			if !prior.SubmissionDate.Before(cutoff) {
				recent++
			}
		}
		// the claim under adjudication counts toward the window
		if recent+1 > v.cfg.MaxClaimsInWindow {
			flags = append(flags, FraudFlag{Code: CodeAbnormalFrequency})
		}
	}

	if v.cfg.AnomalyFactor > 0 {
		if mean, ok := categoryMean(in.History, in.Claim.TreatmentType); ok {
			if in.Claim.ClaimedAmount > mean*v.cfg.AnomalyFactor {
				flags = append(flags, FraudFlag{Code: CodeAmountAnomaly})
			}
		}
	}

	if len(flags) == 0 {
		return passed(v.Name())
	}

	codes := make([]ReasonCode, len(flags))
	for i, f := range flags {
		codes[i] = f.Code
	}
	return Finding{
		Validator:   v.Name(),
		Passed:      false,
		ReasonCodes: codes,
		Severity:    SeverityInformational,
		FraudFlags:  flags,
	}
}

func sameDay(a, b time.Time) bool {
	return a.Unix()/86400 == b.Unix()/86400
}

// categoryMean averages prior claimed amounts in the treatment category.
// Fewer than three samples is too thin a baseline to call anything anomalous.
func categoryMean(history []claim.HistoryEntry, category string) (float64, bool) {
	var sum float64
	n := 0
	for _, e := range history {
		if e.TreatmentType == category {
			sum += e.ClaimedAmount
			n++
		}
	}
	if n < 3 {
		return 0, false
	}
	return sum / float64(n), true
}
