package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(balance string) *Account {
	return &Account{
		ID:       uuid.New(),
		OwnerID:  uuid.New(),
		Number:   "ACC001",
		Type:     AccountTypeWallet,
		Balance:  NewMoney(decimal.RequireFromString(balance), "NGN"),
		IsActive: true,
	}
}

func TestNewLedgerEntry_CreditAndDebit(t *testing.T) {
	now := time.Now()
	account := testAccount("100.00")

	credit, err := NewLedgerEntry(account, EntryTypeDeposit,
		NewMoney(decimal.RequireFromString("50.25"), "NGN"), "REF1", "in", now)
	require.NoError(t, err)
	assert.True(t, credit.BalanceBefore.Amount.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, credit.BalanceAfter.Amount.Equal(decimal.RequireFromString("150.25")))

	debit, err := NewLedgerEntry(account, EntryTypeWithdrawal,
		NewMoney(decimal.RequireFromString("40"), "NGN"), "REF2", "out", now)
	require.NoError(t, err)
	assert.True(t, debit.BalanceAfter.Amount.Equal(decimal.RequireFromString("60.00")))
}

func TestNewLedgerEntry_RoundsAmount(t *testing.T) {
	account := testAccount("0")
	entry, err := NewLedgerEntry(account, EntryTypeInterestCredit,
		NewMoney(decimal.RequireFromString("2.7397260273972603"), "NGN"), "REF1", "interest", time.Now())
	require.NoError(t, err)
	assert.True(t, entry.Amount.Amount.Equal(decimal.RequireFromString("2.74")),
		"amount is rounded once, at write time")
	assert.True(t, entry.BalanceAfter.Amount.Equal(decimal.RequireFromString("2.74")))
}

func TestNewLedgerEntry_InsufficientFunds(t *testing.T) {
	account := testAccount("10")
	_, err := NewLedgerEntry(account, EntryTypeTransferOut,
		NewMoney(decimal.RequireFromString("10.01"), "NGN"), "REF1", "out", time.Now())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestNewLedgerEntry_RejectsNonPositiveAmount(t *testing.T) {
	account := testAccount("100")
	for _, amount := range []string{"0", "-5"} {
		_, err := NewLedgerEntry(account, EntryTypeDeposit,
			NewMoney(decimal.RequireFromString(amount), "NGN"), "REF1", "bad", time.Now())
		assert.Error(t, err, "amount %s", amount)
	}
}

func TestLedgerEntry_ValidateConservation(t *testing.T) {
	entry := &LedgerEntry{
		Reference:     "REF1",
		Type:          EntryTypeDeposit,
		Amount:        NewMoney(decimal.NewFromInt(100), "NGN"),
		BalanceBefore: NewMoney(decimal.NewFromInt(50), "NGN"),
		BalanceAfter:  NewMoney(decimal.NewFromInt(150), "NGN"),
	}
	require.NoError(t, entry.Validate())

	// A tampered after-balance breaks conservation.
	entry.BalanceAfter = NewMoney(decimal.NewFromInt(151), "NGN")
	assert.Error(t, entry.Validate())

	entry.BalanceAfter = NewMoney(decimal.NewFromInt(150), "NGN")
	entry.Reference = ""
	assert.Error(t, entry.Validate())
}

func TestEntryType_IsDebit(t *testing.T) {
	debits := []EntryType{EntryTypeWithdrawal, EntryTypeTransferOut, EntryTypeEarlyWithdrawal, EntryTypeFee}
	credits := []EntryType{EntryTypeDeposit, EntryTypeInterestCredit, EntryTypeTransferIn, EntryTypeAutoSave, EntryTypeMaturityPayout}
	for _, et := range debits {
		assert.True(t, et.IsDebit(), string(et))
	}
	for _, et := range credits {
		assert.False(t, et.IsDebit(), string(et))
	}
}

func TestAccount_InterestCreditedOn(t *testing.T) {
	account := testAccount("100")
	day := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	assert.False(t, account.InterestCreditedOn(day), "never credited")

	stamp := time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)
	account.LastInterestCredit = &stamp
	assert.True(t, account.InterestCreditedOn(day), "same UTC day")
	assert.False(t, account.InterestCreditedOn(day.AddDate(0, 0, 1)))
}

func TestTierTable_Validate(t *testing.T) {
	require.NoError(t, DefaultSavingsTiers().Validate())

	gap := TierTable{
		{Lower: decimal.Zero, Upper: decimal.NewFromInt(100), AnnualRate: decimal.RequireFromString("0.1")},
		{Lower: decimal.NewFromInt(200), AnnualRate: decimal.RequireFromString("0.1")},
	}
	assert.Error(t, gap.Validate())

	nonZeroStart := TierTable{
		{Lower: decimal.NewFromInt(10), AnnualRate: decimal.RequireFromString("0.1")},
	}
	assert.Error(t, nonZeroStart.Validate())

	assert.Error(t, TierTable{}.Validate())
}
