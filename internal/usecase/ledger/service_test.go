package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xybank/savings-core/internal/adapter/repository/memory"
	"github.com/xybank/savings-core/internal/domain"
)

type recordingNotifier struct {
	events []domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event domain.Event) {
	n.events = append(n.events, event)
}

func newTestAccount(t *testing.T, store *memory.Store, accountType domain.AccountType, balance string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		ID:                  uuid.New(),
		OwnerID:             uuid.New(),
		Number:              "ACC" + uuid.NewString()[:8],
		Type:                accountType,
		Balance:             domain.NewMoney(decimal.RequireFromString(balance), "NGN"),
		IsActive:            true,
		TotalInterestEarned: domain.ZeroMoney("NGN"),
		CreatedAt:           time.Now(),
	}
	require.NoError(t, store.Accounts().Create(context.Background(), account))
	return account
}

func newTestService(store *memory.Store, notifier domain.Notifier) *Service {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return NewService(store.Ledger(), store.Accounts(), notifier, zap.NewNop())
}

func TestDeposit_WritesEntryAndMutatesBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	account := newTestAccount(t, store, domain.AccountTypeWallet, "100.00")
	service := newTestService(store, nil)

	entry, err := service.Deposit(ctx, account.ID, domain.NewMoney(decimal.RequireFromString("250.50"), "NGN"), "Card funding")
	require.NoError(t, err)

	assert.Equal(t, domain.EntryTypeDeposit, entry.Type)
	assert.True(t, entry.BalanceBefore.Amount.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, entry.BalanceAfter.Amount.Equal(decimal.RequireFromString("350.50")))
	assert.NotEmpty(t, entry.Reference)

	updated, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(entry.BalanceAfter),
		"account balance must equal the entry's balance_after")
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	account := newTestAccount(t, store, domain.AccountTypeWallet, "50.00")
	service := newTestService(store, nil)

	_, err := service.Withdraw(ctx, account.ID, domain.NewMoney(decimal.RequireFromString("50.01"), "NGN"), "Cash out")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// No mutation precedes a validation failure.
	unchanged, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.Balance.Amount.Equal(decimal.RequireFromString("50.00")))
	entries, err := store.Ledger().ListByAccount(ctx, account.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithdraw_ExactBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	account := newTestAccount(t, store, domain.AccountTypeXySave, "75.25")
	service := newTestService(store, nil)

	entry, err := service.Withdraw(ctx, account.ID, domain.NewMoney(decimal.RequireFromString("75.25"), "NGN"), "Full withdrawal")
	require.NoError(t, err)
	assert.True(t, entry.BalanceAfter.IsZero())
}

func TestCreditInterest_StampsAccrualTime(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	account := newTestAccount(t, store, domain.AccountTypeXySave, "10000")
	notifier := &recordingNotifier{}
	service := newTestService(store, notifier)

	_, err := service.CreditInterest(ctx, account.ID, domain.NewMoney(decimal.RequireFromString("5.48"), "NGN"), "Daily interest credit")
	require.NoError(t, err)

	updated, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastInterestCredit)
	assert.True(t, updated.TotalInterestEarned.Amount.Equal(decimal.RequireFromString("5.48")))

	require.Len(t, notifier.events, 1)
	assert.Equal(t, domain.EventInterestCredited, notifier.events[0].Type)
	assert.Equal(t, account.OwnerID, notifier.events[0].OwnerID)
}

func TestTransfer_MovesFundsAtomically(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	wallet := newTestAccount(t, store, domain.AccountTypeWallet, "1000")
	xysave := newTestAccount(t, store, domain.AccountTypeXySave, "0")
	service := newTestService(store, nil)

	out, in, err := service.Transfer(ctx, wallet.ID, xysave.ID, domain.NewMoney(decimal.RequireFromString("400"), "NGN"), "Move to savings")
	require.NoError(t, err)

	assert.Equal(t, domain.EntryTypeTransferOut, out.Type)
	assert.Equal(t, domain.EntryTypeTransferIn, in.Type)
	assert.Equal(t, out.Reference, in.Reference, "both legs share one reference")

	fromAfter, _ := store.Accounts().GetByID(ctx, wallet.ID)
	toAfter, _ := store.Accounts().GetByID(ctx, xysave.ID)
	assert.True(t, fromAfter.Balance.Amount.Equal(decimal.NewFromInt(600)))
	assert.True(t, toAfter.Balance.Amount.Equal(decimal.NewFromInt(400)))
}

func TestTransfer_FailureRollsBackBothLegs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	wallet := newTestAccount(t, store, domain.AccountTypeWallet, "1000")
	xysave := newTestAccount(t, store, domain.AccountTypeXySave, "200")
	service := newTestService(store, nil)

	// Insufficient source funds: neither account may change.
	_, _, err := service.Transfer(ctx, wallet.ID, xysave.ID, domain.NewMoney(decimal.RequireFromString("1000.01"), "NGN"), "Too much")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	fromAfter, _ := store.Accounts().GetByID(ctx, wallet.ID)
	toAfter, _ := store.Accounts().GetByID(ctx, xysave.ID)
	assert.True(t, fromAfter.Balance.Amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, toAfter.Balance.Amount.Equal(decimal.NewFromInt(200)))
}

func TestTransfer_SelfTransferRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	wallet := newTestAccount(t, store, domain.AccountTypeWallet, "1000")
	service := newTestService(store, nil)

	_, _, err := service.Transfer(ctx, wallet.ID, wallet.ID, domain.NewMoney(decimal.NewFromInt(10), "NGN"), "loop")
	assert.Error(t, err)
}

func TestApply_InactiveAccount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	account := &domain.Account{
		ID:                  uuid.New(),
		OwnerID:             uuid.New(),
		Number:              "ACCINACT",
		Type:                domain.AccountTypeWallet,
		Balance:             domain.NewMoney(decimal.NewFromInt(100), "NGN"),
		IsActive:            false,
		TotalInterestEarned: domain.ZeroMoney("NGN"),
	}
	require.NoError(t, store.Accounts().Create(ctx, account))
	service := newTestService(store, nil)

	_, err := service.Deposit(ctx, account.ID, domain.NewMoney(decimal.NewFromInt(10), "NGN"), "blocked")
	assert.ErrorIs(t, err, domain.ErrAccountInactive)
}

func TestLedgerConservation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	account := newTestAccount(t, store, domain.AccountTypeWallet, "0")
	service := newTestService(store, nil)

	amounts := []string{"100.00", "33.33", "0.01", "999.99"}
	for _, a := range amounts {
		_, err := service.Deposit(ctx, account.ID, domain.NewMoney(decimal.RequireFromString(a), "NGN"), "in")
		require.NoError(t, err)
	}
	_, err := service.Withdraw(ctx, account.ID, domain.NewMoney(decimal.RequireFromString("133.33"), "NGN"), "out")
	require.NoError(t, err)

	entries, err := store.Ledger().ListByAccount(ctx, account.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for _, entry := range entries {
		require.NoError(t, entry.Validate(), "entry %s", entry.Reference)
	}

	final, err := store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, final.Balance.Amount.Equal(decimal.RequireFromString("1000.00")),
		"expected 1000.00, got %s", final.Balance.Amount)
}

func TestReferencesAreUnique(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	account := newTestAccount(t, store, domain.AccountTypeWallet, "0")
	service := newTestService(store, nil)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		entry, err := service.Deposit(ctx, account.ID, domain.NewMoney(decimal.NewFromInt(1), "NGN"), "in")
		require.NoError(t, err)
		assert.False(t, seen[entry.Reference], "duplicate reference %s", entry.Reference)
		seen[entry.Reference] = true
	}
}
