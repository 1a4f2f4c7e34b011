package validation

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultSet returns the full validator set in its canonical order. The
// fraud detector carries its own configuration; the rest read everything
// from the Input.
func DefaultSet(fraudCfg FraudConfig) []Validator {
	return []Validator{
		Eligibility{},
		Coverage{},
		Limits{},
		Documents{},
		NewFraud(fraudCfg),
	}
}

// Run executes every validator against the input concurrently and returns
// findings in validator order. This is a scatter/gather join: validators are
// pure and share no write access, and all of them run regardless of failures
// elsewhere because synthesis needs the complete finding set.
func Run(ctx context.Context, in Input, validators []Validator) []Finding {
	findings := make([]Finding, len(validators))

	g, _ := errgroup.WithContext(ctx)
	for i, v := range validators {
		g.Go(func() error {
			findings[i] = v.Validate(in)
			return nil
		})
	}
	// validators never return errors; input problems surface as findings
	_ = g.Wait()

	return findings
}
