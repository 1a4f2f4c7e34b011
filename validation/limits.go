package validation

// Limits checks the claim against per-claim, category, and annual limits, and
// computes the approvable amount, network discount, and co-payment. Limit
// breaches with a positive remainder stay informational so the synthesizer
// can take the partial path; a per-claim breach or an exhausted annual limit
// is a hard fail.
type Limits struct{}

func (Limits) Name() string { return "limits" }

func (v Limits) Validate(in Input) Finding {
	claimed := in.Claim.ClaimedAmount
	term := in.Term

	codes := make([]ReasonCode, 0, 2)
	hard := false

	amounts := &LimitAmounts{EligibleAmount: claimed, CappedAmount: claimed}

	if term.PerClaimLimit > 0 && claimed > term.PerClaimLimit {
		codes = append(codes, CodePerClaimExceeded)
		hard = true
	}

	if sub, ok := term.SubLimit(in.Claim.TreatmentType); ok && claimed > sub {
		codes = append(codes, CodeSubLimitExceeded)
		amounts.SubLimitApplied = in.Claim.TreatmentType
		if sub < amounts.CappedAmount {
			amounts.CappedAmount = sub
		}
	}

	// A zero annual limit means no limit data (e.g. an unknown member);
	// eligibility already hard-fails that case, so the annual check only
	// runs against a configured limit.
	annualLimit := in.Holder.AnnualLimit
	if annualLimit == 0 {
		annualLimit = term.AnnualLimit
	}
	if annualLimit > 0 {
		remaining := annualLimit - in.Holder.AnnualLimitUsed
		if remaining < 0 {
			remaining = 0
		}
		amounts.AnnualRemaining = remaining

		if in.Holder.AnnualLimitUsed+claimed > annualLimit {
			codes = append(codes, CodeAnnualLimitExceeded)
			if remaining == 0 {
				hard = true
			}
			if remaining < amounts.CappedAmount {
				amounts.CappedAmount = remaining
			}
		}
	}

	// Payable amounts are computed on the capped figure: the network
	// discount first when the provider is in-network, then the co-pay.
	inNetwork := in.Claim.ProviderNetwork || term.InNetwork(in.Claim.ProviderName)
	base := amounts.CappedAmount
	if inNetwork && term.NetworkDiscountPercent > 0 {
		amounts.NetworkDiscount = base * term.NetworkDiscountPercent / 100
		base -= amounts.NetworkDiscount
	}
	amounts.CoPayPercent = term.CoPayPercent(in.Claim.TreatmentType)
	amounts.CoPayment = base * amounts.CoPayPercent / 100

	f := Finding{
		Validator:   v.Name(),
		Passed:      len(codes) == 0,
		ReasonCodes: codes,
		Severity:    SeverityInformational,
		Amounts:     amounts,
	}
	if hard {
		f.Severity = SeverityHardFail
	}
	return f
}
