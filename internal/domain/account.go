package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType distinguishes the parallel account variants that share the
// balance-plus-ledger shape.
type AccountType string

const (
	AccountTypeWallet       AccountType = "wallet"
	AccountTypeXySave       AccountType = "xysave"
	AccountTypeSpendAndSave AccountType = "spend_and_save"
)

// Account is a balance-bearing account. The balance is only ever mutated by
// an operation that also writes a ledger entry; it never changes silently.
type Account struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Number  string
	Type    AccountType
	Balance Money

	IsActive bool

	// SavingsPercentage is the sweep percentage for spend-and-save accounts
	// (ignored for other types).
	SavingsPercentage decimal.Decimal

	// MinSpendAmount is the spend threshold below which no sweep happens
	// (spend-and-save only).
	MinSpendAmount Money

	// WithdrawalDestination is the default destination account type for
	// spend-and-save withdrawals: wallet or xysave.
	WithdrawalDestination AccountType

	TotalInterestEarned Money

	// LastInterestCredit records the most recent interest credit. The daily
	// accrual job uses it to skip accounts already credited for the current
	// day, so re-running the job cannot double-credit.
	LastInterestCredit *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanWithdraw reports whether the account is active and holds at least amount.
func (a *Account) CanWithdraw(amount Money) (bool, error) {
	if !a.IsActive {
		return false, nil
	}
	return a.Balance.GreaterThanOrEqual(amount)
}

// InterestCreditedOn reports whether interest was already credited on the
// given UTC calendar day.
func (a *Account) InterestCreditedOn(day time.Time) bool {
	if a.LastInterestCredit == nil {
		return false
	}
	y1, m1, d1 := a.LastInterestCredit.UTC().Date()
	y2, m2, d2 := day.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
