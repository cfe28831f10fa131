package interest

import (
	"github.com/shopspring/decimal"

	"github.com/xybank/savings-core/internal/domain"
)

var (
	daysPerYear = decimal.NewFromInt(365)
	daysPerWeek = decimal.NewFromInt(7)
	daysPer30   = decimal.NewFromInt(30)
)

// TierShare is one tier's contribution to a computed interest amount,
// reported for auditability.
type TierShare struct {
	Tier          int
	AnnualRate    decimal.Decimal
	BalanceInTier domain.Money
	Interest      domain.Money
}

// Result is the outcome of a tiered interest computation. TotalInterest is
// deliberately unrounded: rounding happens exactly once, at ledger-write
// time, so repeated previews and the actual accrual cannot diverge.
type Result struct {
	TotalInterest       domain.Money
	Breakdown           []TierShare
	EffectiveAnnualRate decimal.Decimal
	PeriodDays          int
}

// Compute calculates progressive tiered interest on a balance over a period.
// Each tier earns balance-in-tier * rate * days / 365, with the division
// last to keep the arithmetic exact for terminating cases.
//
// A zero or negative balance is a valid boundary, not an error: it yields a
// zero result with an empty breakdown. periodDays must be positive.
func Compute(balance domain.Money, periodDays int, tiers domain.TierTable) (Result, error) {
	if periodDays <= 0 {
		return Result{}, domain.ErrInvalidPeriod
	}
	if err := tiers.Validate(); err != nil {
		return Result{}, err
	}

	zero := Result{
		TotalInterest:       domain.ZeroMoney(balance.Currency),
		EffectiveAnnualRate: decimal.Zero,
		PeriodDays:          periodDays,
	}
	if !balance.IsPositive() {
		return zero, nil
	}

	days := decimal.NewFromInt(int64(periodDays))
	remaining := balance.Amount
	total := decimal.Zero
	breakdown := make([]TierShare, 0, len(tiers))

	for i, tier := range tiers {
		if !remaining.IsPositive() {
			break
		}
		portion := remaining
		if !tier.Unbounded() {
			width := tier.Upper.Sub(tier.Lower)
			if portion.GreaterThan(width) {
				portion = width
			}
		}
		tierInterest := portion.Mul(tier.AnnualRate).Mul(days).Div(daysPerYear)
		total = total.Add(tierInterest)
		breakdown = append(breakdown, TierShare{
			Tier:          i + 1,
			AnnualRate:    tier.AnnualRate,
			BalanceInTier: domain.NewMoney(portion, balance.Currency),
			Interest:      domain.NewMoney(tierInterest, balance.Currency),
		})
		remaining = remaining.Sub(portion)
	}

	effective := total.Div(balance.Amount).Mul(daysPerYear).Div(days)

	return Result{
		TotalInterest:       domain.NewMoney(total, balance.Currency),
		Breakdown:           breakdown,
		EffectiveAnnualRate: effective,
		PeriodDays:          periodDays,
	}, nil
}

// Forecast projects interest earnings for a balance over standard horizons,
// using the one-day computation as the base so the projection matches what
// the daily accrual job would actually credit.
type ForecastResult struct {
	Daily   domain.Money
	Weekly  domain.Money
	Monthly domain.Money
	Yearly  domain.Money

	EffectiveAnnualRate decimal.Decimal
	CurrentBalance      domain.Money
}

// Forecast computes the daily interest for the balance and scales it
// linearly (simple, non-compounding rate).
func Forecast(balance domain.Money, tiers domain.TierTable) (ForecastResult, error) {
	daily, err := Compute(balance, 1, tiers)
	if err != nil {
		return ForecastResult{}, err
	}
	return ForecastResult{
		Daily:   daily.TotalInterest.Round(),
		Weekly:  daily.TotalInterest.MulDecimal(daysPerWeek).Round(),
		Monthly: daily.TotalInterest.MulDecimal(daysPer30).Round(),
		Yearly:  daily.TotalInterest.MulDecimal(daysPerYear).Round(),

		EffectiveAnnualRate: daily.EffectiveAnnualRate,
		CurrentBalance:      balance,
	}, nil
}
