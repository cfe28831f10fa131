package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Tier is one balance band of a progressive interest table. Upper is the
// exclusive upper bound of the band; a zero Upper means unbounded.
type Tier struct {
	Lower      decimal.Decimal
	Upper      decimal.Decimal // zero = no upper bound
	AnnualRate decimal.Decimal // e.g. 0.20 for 20% p.a.
}

// Unbounded reports whether the tier has no upper bound.
func (t Tier) Unbounded() bool {
	return t.Upper.IsZero()
}

// TierTable is an ordered list of contiguous, non-overlapping tiers.
// The same table must be used for previews and for actual accrual,
// otherwise the two diverge.
type TierTable []Tier

// Validate ensures the table starts at zero, is contiguous, and has
// positive-width bounded tiers with only the last tier unbounded.
func (tt TierTable) Validate() error {
	if len(tt) == 0 {
		return errors.New("tier table must not be empty")
	}
	if !tt[0].Lower.IsZero() {
		return errors.New("first tier must start at zero")
	}
	for i, tier := range tt {
		if tier.AnnualRate.IsNegative() {
			return errors.New("tier rate must not be negative")
		}
		last := i == len(tt)-1
		if tier.Unbounded() {
			if !last {
				return errors.New("only the last tier may be unbounded")
			}
			continue
		}
		if tier.Upper.LessThanOrEqual(tier.Lower) {
			return errors.New("tier upper bound must exceed lower bound")
		}
		if !last && !tt[i+1].Lower.Equal(tier.Upper) {
			return errors.New("tiers must be contiguous")
		}
	}
	return nil
}

// DefaultSavingsTiers is the canonical progressive table applied to wallet,
// XySave, and spend-and-save balances:
//
//	first 10,000 NGN at 20% p.a.
//	10,000 - 100,000 NGN at 16% p.a.
//	above 100,000 NGN at 8% p.a.
func DefaultSavingsTiers() TierTable {
	return TierTable{
		{Lower: decimal.Zero, Upper: decimal.NewFromInt(10000), AnnualRate: decimal.RequireFromString("0.20")},
		{Lower: decimal.NewFromInt(10000), Upper: decimal.NewFromInt(100000), AnnualRate: decimal.RequireFromString("0.16")},
		{Lower: decimal.NewFromInt(100000), AnnualRate: decimal.RequireFromString("0.08")},
	}
}
