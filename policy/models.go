package policy

import "time"

// HolderStatus enumerates the lifecycle of a policy holder's cover.
type HolderStatus string

const (
	HolderActive    HolderStatus = "ACTIVE"
	HolderInactive  HolderStatus = "INACTIVE"
	HolderSuspended HolderStatus = "SUSPENDED"
)

// Holder mirrors the policy_holders table columns touched by adjudication.
// AnnualLimitUsed is a single-writer counter: it is only mutated inside the
// decision-persistence transaction under a row lock.
type Holder struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	TermID          string
	Status          HolderStatus
	PolicyStartDate time.Time
	AnnualLimit     float64
	AnnualLimitUsed float64
	PreExisting     []string
	CreatedAt       time.Time
}

// Term holds the plan-scoped rules validators evaluate against. Read-only
// reference data; loaded through the cached store.
type Term struct {
	ID                     string
	Name                   string
	AnnualLimit            float64
	PerClaimLimit          float64
	SubLimits              map[string]float64 // treatment category -> cap
	CoPayPercents          map[string]float64 // treatment category -> co-pay %
	NetworkDiscountPercent float64
	CoveredServices        map[string]bool
	Exclusions             []string
	PreAuthRequired        []string
	InitialWaitingDays     int
	AilmentWaitingDays     map[string]int // diagnosis keyword -> extra waiting days
	NetworkProviders       []string
	EffectiveDate          time.Time
}

// CoPayPercent returns the co-pay percentage for the treatment category,
// falling back to the consultation rate when the category has no entry.
func (t Term) CoPayPercent(category string) float64 {
	if pct, ok := t.CoPayPercents[category]; ok {
		return pct
	}
	return t.CoPayPercents["consultation"]
}

// SubLimit returns the category cap and whether one is configured.
func (t Term) SubLimit(category string) (float64, bool) {
	limit, ok := t.SubLimits[category]
	return limit, ok
}

// InNetwork reports whether the provider participates in the plan network.
func (t Term) InNetwork(provider string) bool {
	for _, p := range t.NetworkProviders {
		if p == provider {
			return true
		}
	}
	return false
}
