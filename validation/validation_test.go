package validation

import (
	"time"

	"claimflow/claim"
	"claimflow/policy"
)

// Shared fixtures: an active holder on a standard OPD plan with a clean,
// covered consultation claim. Individual tests mutate copies.

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func baseTerm() policy.Term {
	return policy.Term{
		ID:            "OPD_2024",
		Name:          "OPD Advantage",
		AnnualLimit:   50000,
		PerClaimLimit: 50000,
		SubLimits: map[string]float64{
			"consultation": 20000,
			"diagnostic":   10000,
			"pharmacy":     15000,
		},
		CoPayPercents:          map[string]float64{},
		NetworkDiscountPercent: 0,
		CoveredServices: map[string]bool{
			"consultation": true,
			"diagnostic":   true,
			"pharmacy":     true,
			"dental":       true,
		},
		Exclusions:         []string{"cosmetic", "infertility"},
		PreAuthRequired:    []string{"dental"},
		InitialWaitingDays: 30,
		AilmentWaitingDays: map[string]int{"diabetes": 90},
		EffectiveDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func baseHolder() policy.Holder {
	return policy.Holder{
		ID:              "PH001",
		Name:            "Asha Verma",
		TermID:          "OPD_2024",
		Status:          policy.HolderActive,
		PolicyStartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		AnnualLimit:     50000,
		AnnualLimitUsed: 0,
	}
}

func baseClaim() claim.Claim {
	return claim.Claim{
		ID:             "CLM001",
		PolicyHolderID: "PH001",
		ClaimedAmount:  5000,
		TreatmentType:  "consultation",
		TreatmentDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ProviderName:   "City Clinic",
		SubmissionDate: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Status:         claim.StatusAdjudicating,
	}
}

func baseBill() claim.Document {
	return claim.Document{
		ID:      "DOC001",
		ClaimID: "CLM001",
		Type:    claim.DocBill,
		ExtractedData: map[string]any{
			"patient_name": "Asha Verma",
			"bill_date":    "2024-06-01",
			"total_amount": float64(5000),
		},
		Confidence: 0.93,
		Status:     claim.DocProcessed,
	}
}

func baseInput() Input {
	return Input{
		Claim:     baseClaim(),
		Documents: []claim.Document{baseBill()},
		Holder:    baseHolder(),
		Term:      baseTerm(),
		Now:       testNow,
	}
}

func hasCode(f Finding, code ReasonCode) bool {
	for _, c := range f.ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}
