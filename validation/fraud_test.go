package validation

import (
	"testing"

	"claimflow/claim"
)

func fraudCfg() FraudConfig {
	return FraudConfig{WindowDays: 30, MaxClaimsInWindow: 3, AnomalyFactor: 3}
}

func TestFraud_NoHistoryPasses(t *testing.T) {
	f := NewFraud(fraudCfg()).Validate(baseInput())
	if !f.Passed {
		t.Fatalf("expected pass, got %+v", f)
	}
}

func TestFraud_DuplicateClaimIsHighConfidence(t *testing.T) {
	in := baseInput()
	in.History = []claim.HistoryEntry{{
		ClaimID:        "CLM000",
		ProviderName:   in.Claim.ProviderName,
		TreatmentType:  in.Claim.TreatmentType,
		TreatmentDate:  in.Claim.TreatmentDate,
		SubmissionDate: in.Now.AddDate(0, 0, -3),
		ClaimedAmount:  5000,
	}}

	f := NewFraud(fraudCfg()).Validate(in)
	if f.Passed || !hasCode(f, CodeDuplicateClaim) {
		t.Fatalf("expected DUPLICATE_CLAIM, got %+v", f)
	}
	if f.Severity != SeverityInformational {
		t.Errorf("fraud findings stay informational, got %s", f.Severity)
	}
	var high bool
	for _, flag := range f.FraudFlags {
		if flag.Code == CodeDuplicateClaim && flag.HighConfidence {
			high = true
		}
	}
	if !high {
		t.Error("duplicate flag must be high confidence for the kill switch")
	}
}

func TestFraud_AbnormalFrequency(t *testing.T) {
	in := baseInput()
	for i := 0; i < 3; i++ {
		in.History = append(in.History, claim.HistoryEntry{
			ClaimID:        "CLM-H" + string(rune('0'+i)),
			ProviderName:   "Other Clinic",
			TreatmentType:  "consultation",
			TreatmentDate:  in.Now.AddDate(0, 0, -5-i),
			SubmissionDate: in.Now.AddDate(0, 0, -5-i),
			ClaimedAmount:  1000,
		})
	}

	f := NewFraud(fraudCfg()).Validate(in)
	if f.Passed || !hasCode(f, CodeAbnormalFrequency) {
		t.Fatalf("expected ABNORMAL_FREQUENCY with 4 claims in a 3-claim window, got %+v", f)
	}
}

func TestFraud_OldClaimsOutsideWindowIgnored(t *testing.T) {
	in := baseInput()
	for i := 0; i < 5; i++ {
		in.History = append(in.History, claim.HistoryEntry{
			ClaimID:        "CLM-O" + string(rune('0'+i)),
			ProviderName:   "Other Clinic",
			TreatmentType:  "diagnostic",
			TreatmentDate:  in.Now.AddDate(0, 0, -90-i),
			SubmissionDate: in.Now.AddDate(0, 0, -90-i),
			ClaimedAmount:  1000,
		})
	}

	f := NewFraud(fraudCfg()).Validate(in)
	if hasCode(f, CodeAbnormalFrequency) {
		t.Fatalf("claims outside the rolling window must not count, got %+v", f)
	}
}

func TestFraud_AmountAnomaly(t *testing.T) {
	in := baseInput()
	in.Claim.ClaimedAmount = 20000
	for i := 0; i < 3; i++ {
		in.History = append(in.History, claim.HistoryEntry{
			ClaimID:        "CLM-A" + string(rune('0'+i)),
			ProviderName:   "Other Clinic",
			TreatmentType:  "consultation",
			TreatmentDate:  in.Now.AddDate(0, 0, -60-i),
			SubmissionDate: in.Now.AddDate(0, 0, -60-i),
			ClaimedAmount:  1500, // mean 1500; 20000 > 3x
		})
	}

	f := NewFraud(fraudCfg()).Validate(in)
	if f.Passed || !hasCode(f, CodeAmountAnomaly) {
		t.Fatalf("expected AMOUNT_ANOMALY, got %+v", f)
	}
}

func TestFraud_ThinBaselineSkipsAnomalyCheck(t *testing.T) {
	in := baseInput()
	in.Claim.ClaimedAmount = 20000
	in.History = []claim.HistoryEntry{{
		ClaimID:        "CLM-T1",
		ProviderName:   "Other Clinic",
		TreatmentType:  "consultation",
		TreatmentDate:  in.Now.AddDate(0, 0, -60),
		SubmissionDate: in.Now.AddDate(0, 0, -60),
		ClaimedAmount:  100,
	}}

	f := NewFraud(fraudCfg()).Validate(in)
	if hasCode(f, CodeAmountAnomaly) {
		t.Fatalf("fewer than 3 samples must skip the anomaly check, got %+v", f)
	}
}
