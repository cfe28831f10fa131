package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntryType classifies a ledger entry. Credit-like types increase the
// balance, debit-like types decrease it.
type EntryType string

const (
	EntryTypeDeposit         EntryType = "deposit"
	EntryTypeWithdrawal      EntryType = "withdrawal"
	EntryTypeInterestCredit  EntryType = "interest_credit"
	EntryTypeTransferIn      EntryType = "transfer_in"
	EntryTypeTransferOut     EntryType = "transfer_out"
	EntryTypeAutoSave        EntryType = "auto_save"
	EntryTypeInitialDeposit  EntryType = "initial_deposit"
	EntryTypeMaturityPayout  EntryType = "maturity_payout"
	EntryTypeAutoRenewal     EntryType = "auto_renewal"
	EntryTypeEarlyWithdrawal EntryType = "early_withdrawal"
	EntryTypeFee             EntryType = "fee"
)

// IsDebit reports whether the entry type decreases the account balance.
func (t EntryType) IsDebit() bool {
	switch t {
	case EntryTypeWithdrawal, EntryTypeTransferOut, EntryTypeEarlyWithdrawal, EntryTypeFee:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of one balance change with before/after
// snapshots. Once created it is never updated; created-at order defines the
// canonical history of an account.
type LedgerEntry struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	AccountType   AccountType
	Type          EntryType
	Amount        Money
	BalanceBefore Money
	BalanceAfter  Money
	Reference     string
	Description   string
	Metadata      map[string]string
	CreatedAt     time.Time
}

// Validate checks the conservation invariant:
// BalanceAfter - BalanceBefore == signed(Amount) exactly.
func (e *LedgerEntry) Validate() error {
	if e.Reference == "" {
		return errors.New("ledger entry reference must not be empty")
	}
	if !e.Amount.IsPositive() {
		return errors.New("ledger entry amount must be positive")
	}
	delta, err := e.BalanceAfter.Sub(e.BalanceBefore)
	if err != nil {
		return err
	}
	want := e.Amount
	if e.Type.IsDebit() {
		want = want.MulDecimal(minusOne)
	}
	if !delta.Equal(want) {
		return fmt.Errorf("ledger entry %s violates conservation: before %s, after %s, amount %s",
			e.Reference, e.BalanceBefore, e.BalanceAfter, e.Amount)
	}
	return nil
}

// NewLedgerEntry builds a validated entry against the account's current
// balance and returns the entry together with the resulting balance.
func NewLedgerEntry(account *Account, entryType EntryType, amount Money, reference, description string, now time.Time) (*LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, errors.New("ledger entry amount must be positive")
	}
	amount = amount.Round()
	before := account.Balance
	var after Money
	var err error
	if entryType.IsDebit() {
		ok, cErr := before.GreaterThanOrEqual(amount)
		if cErr != nil {
			return nil, cErr
		}
		if !ok {
			return nil, fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientFunds, before, amount)
		}
		after, err = before.Sub(amount)
	} else {
		after, err = before.Add(amount)
	}
	if err != nil {
		return nil, err
	}
	entry := &LedgerEntry{
		ID:            uuid.New(),
		AccountID:     account.ID,
		AccountType:   account.Type,
		Type:          entryType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reference:     reference,
		Description:   description,
		CreatedAt:     now,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}
