package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FixedSavingsStatus is the lifecycle state of a fixed-term savings contract.
type FixedSavingsStatus string

const (
	FixedSavingsPending FixedSavingsStatus = "pending"
	FixedSavingsActive  FixedSavingsStatus = "active"
	FixedSavingsMatured FixedSavingsStatus = "matured"
	FixedSavingsPaidOut FixedSavingsStatus = "paid_out"
)

// FixedSavingsSource identifies where the principal is drawn from at creation.
type FixedSavingsSource string

const (
	FixedSavingsSourceWallet FixedSavingsSource = "wallet"
	FixedSavingsSourceXySave FixedSavingsSource = "xysave"
	FixedSavingsSourceBoth   FixedSavingsSource = "both"
)

// Duration bounds and product minimum for fixed savings.
const (
	FixedSavingsMinDays = 7
	FixedSavingsMaxDays = 1000
)

// FixedSavingsMinAmount is the smallest principal accepted.
var FixedSavingsMinAmount = Money{Amount: decimal.NewFromInt(1000), Currency: DefaultCurrency}

// fixedSavingsRateTiers maps contract duration to the locked annual rate.
// The rate is contractual: computed once at creation and never recomputed,
// even if this table changes later.
var fixedSavingsRateTiers = []struct {
	minDays int
	maxDays int
	rate    decimal.Decimal
}{
	{7, 29, decimal.RequireFromString("0.10")},
	{30, 59, decimal.RequireFromString("0.10")},
	{60, 89, decimal.RequireFromString("0.12")},
	{90, 179, decimal.RequireFromString("0.15")},
	{180, 364, decimal.RequireFromString("0.18")},
	{365, 1000, decimal.RequireFromString("0.20")},
}

// FixedSavingsRateForDuration returns the annual rate locked in for a
// contract of the given duration, or an error if the duration is outside
// the product range.
func FixedSavingsRateForDuration(durationDays int) (decimal.Decimal, error) {
	for _, tier := range fixedSavingsRateTiers {
		if durationDays >= tier.minDays && durationDays <= tier.maxDays {
			return tier.rate, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %d days", ErrInvalidDuration, durationDays)
}

// FixedSavingsAccount is a fixed-term savings contract. Interest terms are
// locked at issuance: InterestRate and MaturityAmount are computed once at
// creation and never change.
type FixedSavingsAccount struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Number  string

	Amount             Money
	Source             FixedSavingsSource
	Purpose            string
	PurposeDescription string

	StartDate   time.Time
	PaybackDate time.Time

	InterestRate        decimal.Decimal // annual rate, e.g. 0.15
	MaturityAmount      Money
	TotalInterestEarned Money

	Status             FixedSavingsStatus
	AutoRenewalEnabled bool

	// Renewed guards against a rerun of the maturity job spawning a second
	// renewal cycle from the same contract.
	Renewed bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	MaturedAt  *time.Time
	PaidOutAt  *time.Time
	RenewedAt  *time.Time
	RenewedGen int
}

// NewFixedSavingsAccount validates the terms and builds a contract with the
// rate and maturity amount locked in. No funds move here; funding is a
// separate, atomic persistence step.
func NewFixedSavingsAccount(ownerID uuid.UUID, amount Money, source FixedSavingsSource, purpose, purposeDescription string, startDate, paybackDate time.Time, autoRenewal bool, now time.Time) (*FixedSavingsAccount, error) {
	if !paybackDate.After(startDate) {
		return nil, fmt.Errorf("%w: payback date must be after start date", ErrInvalidDuration)
	}
	durationDays := DaysBetween(startDate, paybackDate)
	if durationDays < FixedSavingsMinDays || durationDays > FixedSavingsMaxDays {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidDuration, durationDays)
	}
	ok, err := amount.GreaterThanOrEqual(FixedSavingsMinAmount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s below %s", ErrBelowMinimumAmount, amount, FixedSavingsMinAmount)
	}

	rate, err := FixedSavingsRateForDuration(durationDays)
	if err != nil {
		return nil, err
	}

	fs := &FixedSavingsAccount{
		ID:                  uuid.New(),
		OwnerID:             ownerID,
		Amount:              amount.Round(),
		Source:              source,
		Purpose:             purpose,
		PurposeDescription:  purposeDescription,
		StartDate:           startDate,
		PaybackDate:         paybackDate,
		InterestRate:        rate,
		Status:              FixedSavingsActive,
		AutoRenewalEnabled:  autoRenewal,
		TotalInterestEarned: ZeroMoney(amount.Currency),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if startDate.After(now) {
		fs.Status = FixedSavingsPending
	}
	fs.Number = fmt.Sprintf("FS%s", fs.ID.String()[:18])
	fs.MaturityAmount = fs.computeMaturityAmount()
	interest, err := fs.MaturityAmount.Sub(fs.Amount)
	if err != nil {
		return nil, err
	}
	fs.TotalInterestEarned = interest
	return fs, nil
}

// computeMaturityAmount applies simple interest over the full duration:
// principal + principal * rate * days / 365, rounded to minor units.
func (fs *FixedSavingsAccount) computeMaturityAmount() Money {
	days := decimal.NewFromInt(int64(fs.DurationDays()))
	interest := fs.Amount.Amount.Mul(fs.InterestRate).Mul(days).Div(decimal.NewFromInt(365))
	return Money{Amount: fs.Amount.Amount.Add(interest), Currency: fs.Amount.Currency}.Round()
}

// DurationDays is the contract length in whole days.
func (fs *FixedSavingsAccount) DurationDays() int {
	return DaysBetween(fs.StartDate, fs.PaybackDate)
}

// DaysRemaining is the number of days until maturity, floored at zero.
func (fs *FixedSavingsAccount) DaysRemaining(now time.Time) int {
	remaining := DaysBetween(now, fs.PaybackDate)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsMature reports whether the payback date has been reached.
func (fs *FixedSavingsAccount) IsMature(now time.Time) bool {
	return !now.Before(fs.PaybackDate)
}

// CanBePaidOut reports whether the contract is eligible for payout:
// mature, not yet paid out, and not in a terminal state.
func (fs *FixedSavingsAccount) CanBePaidOut(now time.Time) bool {
	return fs.IsMature(now) && fs.Status != FixedSavingsPaidOut
}

// MarkMatured transitions the contract to matured. It is a no-op on a
// contract that is already matured or paid out.
func (fs *FixedSavingsAccount) MarkMatured(now time.Time) error {
	switch fs.Status {
	case FixedSavingsMatured, FixedSavingsPaidOut:
		return nil
	}
	if !fs.IsMature(now) {
		return ErrNotMatured
	}
	fs.Status = FixedSavingsMatured
	fs.MaturedAt = &now
	fs.UpdatedAt = now
	return nil
}

// MarkPaidOut transitions the contract to paid out. Paying out twice
// returns ErrAlreadyPaidOut, which callers treat as a benign no-op.
func (fs *FixedSavingsAccount) MarkPaidOut(now time.Time) error {
	if fs.Status == FixedSavingsPaidOut {
		return ErrAlreadyPaidOut
	}
	if fs.Status != FixedSavingsMatured {
		return ErrNotMatured
	}
	fs.Status = FixedSavingsPaidOut
	fs.PaidOutAt = &now
	fs.UpdatedAt = now
	return nil
}

// MarkRenewed records that a renewal cycle was spawned from this contract.
func (fs *FixedSavingsAccount) MarkRenewed(now time.Time) error {
	if fs.Renewed {
		return ErrAlreadyRenewed
	}
	fs.Renewed = true
	fs.RenewedAt = &now
	fs.UpdatedAt = now
	return nil
}

// Renew builds the successor contract: it starts at the old payback date,
// runs for the original duration, and uses the maturity amount as principal.
// The old contract is not modified here; callers pair this with MarkRenewed
// inside one atomic persistence step.
func (fs *FixedSavingsAccount) Renew(now time.Time) (*FixedSavingsAccount, error) {
	if !fs.AutoRenewalEnabled {
		return nil, fmt.Errorf("auto renewal not enabled for %s", fs.Number)
	}
	if !fs.IsMature(now) {
		return nil, ErrNotMatured
	}
	if fs.Renewed {
		return nil, ErrAlreadyRenewed
	}
	newStart := fs.PaybackDate
	newPayback := newStart.AddDate(0, 0, fs.DurationDays())
	desc := fs.PurposeDescription
	if desc == "" {
		desc = fs.Purpose
	}
	next, err := NewFixedSavingsAccount(
		fs.OwnerID,
		fs.MaturityAmount,
		FixedSavingsSourceXySave, // payout lands in xysave, so renewal draws from there
		fs.Purpose,
		fmt.Sprintf("Auto-renewal of %s", desc),
		newStart,
		newPayback,
		fs.AutoRenewalEnabled,
		now,
	)
	if err != nil {
		return nil, err
	}
	next.RenewedGen = fs.RenewedGen + 1
	return next, nil
}

// DaysBetween returns the whole days from a to b, truncating both to UTC
// midnight first.
func DaysBetween(a, b time.Time) int {
	au := time.Date(a.UTC().Year(), a.UTC().Month(), a.UTC().Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.UTC().Year(), b.UTC().Month(), b.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
