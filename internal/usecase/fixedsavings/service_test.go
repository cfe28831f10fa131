package fixedsavings

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

type fixture struct {
	store   *memory.Store
	service *Service
	ownerID uuid.UUID
	wallet  *domain.Account
	xysave  *domain.Account
	clock   time.Time
}

func newFixture(t *testing.T, walletBalance, xysaveBalance string) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		ownerID: uuid.New(),
		clock:   time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	f.wallet = f.addAccount(t, domain.AccountTypeWallet, "WAL001", walletBalance)
	f.xysave = f.addAccount(t, domain.AccountTypeXySave, "XS001", xysaveBalance)
	f.service = NewService(f.store.FixedSavings(), f.store.Accounts(), domain.NopNotifier{}, zap.NewNop())
	f.service.WithClock(func() time.Time { return f.clock })
	return f
}

func (f *fixture) addAccount(t *testing.T, accountType domain.AccountType, number, balance string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		ID:                  uuid.New(),
		OwnerID:             f.ownerID,
		Number:              number,
		Type:                accountType,
		Balance:             domain.NewMoney(decimal.RequireFromString(balance), "NGN"),
		IsActive:            true,
		TotalInterestEarned: domain.ZeroMoney("NGN"),
	}
	require.NoError(t, f.store.Accounts().Create(context.Background(), account))
	return account
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	account, err := f.store.Accounts().GetByID(context.Background(), id)
	require.NoError(t, err)
	return account.Balance.Amount
}

func ngn(s string) domain.Money {
	return domain.NewMoney(decimal.RequireFromString(s), "NGN")
}

func (f *fixture) createInput(amount string, source domain.FixedSavingsSource, days int, autoRenew bool) CreateInput {
	return CreateInput{
		OwnerID:            f.ownerID,
		Amount:             ngn(amount),
		Source:             source,
		Purpose:            "Rent",
		StartDate:          f.clock,
		PaybackDate:        f.clock.AddDate(0, 0, days),
		AutoRenewalEnabled: autoRenew,
	}
}

func TestCreate_WalletSourceLocksTerms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "200000", "0")

	fs, err := f.service.Create(ctx, f.createInput("100000", domain.FixedSavingsSourceWallet, 180, false))
	require.NoError(t, err)

	assert.Equal(t, domain.FixedSavingsActive, fs.Status)
	assert.True(t, fs.InterestRate.Equal(decimal.RequireFromString("0.18")),
		"180 days locks the 18%% tier, got %s", fs.InterestRate)
	// 100000 * 0.18 * 180 / 365 = 8876.712... -> maturity 108876.71
	assert.True(t, fs.MaturityAmount.Amount.Equal(decimal.RequireFromString("108876.71")),
		"expected 108876.71, got %s", fs.MaturityAmount.Amount)

	assert.True(t, f.balance(t, f.wallet.ID).Equal(decimal.RequireFromString("100000")))

	entries, err := f.store.Ledger().ListByAccount(ctx, f.wallet.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryTypeTransferOut, entries[0].Type)
}

func TestCreate_SplitFundingDrawsWalletFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "30000", "50000")

	_, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceBoth, 90, false))
	require.NoError(t, err)

	assert.True(t, f.balance(t, f.wallet.ID).IsZero(), "wallet drained first")
	assert.True(t, f.balance(t, f.xysave.ID).Equal(decimal.NewFromInt(30000)),
		"xysave covers only the remainder")
}

func TestCreate_SplitFundingCoveredByWalletAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "80000", "50000")

	_, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceBoth, 90, false))
	require.NoError(t, err)

	assert.True(t, f.balance(t, f.wallet.ID).Equal(decimal.NewFromInt(30000)))
	assert.True(t, f.balance(t, f.xysave.ID).Equal(decimal.NewFromInt(50000)), "xysave untouched")

	entries, err := f.store.Ledger().ListByAccount(ctx, f.xysave.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreate_ValidationFailuresLeaveNoTrace(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   func(f *fixture) CreateInput
		wantErr error
	}{
		{
			name:    "below minimum amount",
			input:   func(f *fixture) CreateInput { return f.createInput("999.99", domain.FixedSavingsSourceWallet, 90, false) },
			wantErr: domain.ErrBelowMinimumAmount,
		},
		{
			name:    "duration too short",
			input:   func(f *fixture) CreateInput { return f.createInput("5000", domain.FixedSavingsSourceWallet, 6, false) },
			wantErr: domain.ErrInvalidDuration,
		},
		{
			name:    "duration too long",
			input:   func(f *fixture) CreateInput { return f.createInput("5000", domain.FixedSavingsSourceWallet, 1001, false) },
			wantErr: domain.ErrInvalidDuration,
		},
		{
			name:    "insufficient wallet funds",
			input:   func(f *fixture) CreateInput { return f.createInput("20001", domain.FixedSavingsSourceWallet, 90, false) },
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name:    "insufficient combined funds",
			input:   func(f *fixture) CreateInput { return f.createInput("30001", domain.FixedSavingsSourceBoth, 90, false) },
			wantErr: domain.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "20000", "10000")
			_, err := f.service.Create(ctx, tt.input(f))
			assert.ErrorIs(t, err, tt.wantErr)

			assert.True(t, f.balance(t, f.wallet.ID).Equal(decimal.NewFromInt(20000)))
			assert.True(t, f.balance(t, f.xysave.ID).Equal(decimal.NewFromInt(10000)))
		})
	}
}

func TestCreate_FutureStartDateIsPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "50000", "0")

	input := f.createInput("10000", domain.FixedSavingsSourceWallet, 30, false)
	input.StartDate = f.clock.AddDate(0, 0, 5)
	input.PaybackDate = input.StartDate.AddDate(0, 0, 30)

	fs, err := f.service.Create(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, domain.FixedSavingsPending, fs.Status)
	// Principal is still reserved up front.
	assert.True(t, f.balance(t, f.wallet.ID).Equal(decimal.NewFromInt(40000)))
}

func TestProcessMaturityPayout_CreditsXySaveOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "100000", "0")

	// 50000 for 90 days @ 15%: interest 1849.315... -> maturity 51849.32
	fs, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceWallet, 90, false))
	require.NoError(t, err)

	f.clock = fs.PaybackDate.Add(2 * time.Hour)
	paid, err := f.service.ProcessMaturityPayout(ctx, fs.ID)
	require.NoError(t, err)
	assert.True(t, paid)

	assert.True(t, f.balance(t, f.xysave.ID).Equal(decimal.RequireFromString("51849.32")),
		"expected 51849.32, got %s", f.balance(t, f.xysave.ID))

	stored, err := f.store.FixedSavings().GetByID(ctx, fs.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FixedSavingsPaidOut, stored.Status)
	require.NotNil(t, stored.PaidOutAt)

	// Second call is a benign no-op: no error, no second credit.
	paid, err = f.service.ProcessMaturityPayout(ctx, fs.ID)
	require.NoError(t, err)
	assert.False(t, paid)

	entries, err := f.store.Ledger().ListByAccount(ctx, f.xysave.ID, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, domain.EntryTypeMaturityPayout, entries[0].Type)
}

func TestProcessMaturityPayout_BeforeMaturity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "100000", "0")

	fs, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceWallet, 90, false))
	require.NoError(t, err)

	f.clock = fs.PaybackDate.AddDate(0, 0, -1)
	_, err = f.service.ProcessMaturityPayout(ctx, fs.ID)
	assert.ErrorIs(t, err, domain.ErrNotMatured)
	assert.True(t, f.balance(t, f.xysave.ID).IsZero())
}

func TestProcessAutoRenewal_SpawnsSuccessorCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "100000", "0")

	fs, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceWallet, 90, true))
	require.NoError(t, err)

	f.clock = fs.PaybackDate.Add(time.Hour)
	paid, err := f.service.ProcessMaturityPayout(ctx, fs.ID)
	require.NoError(t, err)
	require.True(t, paid)

	next, err := f.service.ProcessAutoRenewal(ctx, fs.ID)
	require.NoError(t, err)
	require.NotNil(t, next)

	// The new cycle compounds the old maturity amount over the same duration.
	assert.True(t, next.Amount.Amount.Equal(decimal.RequireFromString("51849.32")))
	assert.Equal(t, fs.DurationDays(), next.DurationDays())
	assert.True(t, next.StartDate.Equal(fs.PaybackDate))
	assert.Equal(t, 1, next.RenewedGen)

	// Payout landed in xysave and the renewal drew it straight back out.
	assert.True(t, f.balance(t, f.xysave.ID).IsZero())

	old, err := f.store.FixedSavings().GetByID(ctx, fs.ID)
	require.NoError(t, err)
	assert.True(t, old.Renewed)

	// A rerun must not spawn a second cycle.
	again, err := f.service.ProcessAutoRenewal(ctx, fs.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestProcessAutoRenewal_DisabledOrImmature(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "100000", "0")

	noRenew, err := f.service.Create(ctx, f.createInput("10000", domain.FixedSavingsSourceWallet, 90, false))
	require.NoError(t, err)
	immature, err := f.service.Create(ctx, f.createInput("10000", domain.FixedSavingsSourceWallet, 180, true))
	require.NoError(t, err)

	f.clock = noRenew.PaybackDate.Add(time.Hour)
	next, err := f.service.ProcessAutoRenewal(ctx, noRenew.ID)
	require.NoError(t, err)
	assert.Nil(t, next, "renewal disabled")

	next, err = f.service.ProcessAutoRenewal(ctx, immature.ID)
	require.NoError(t, err)
	assert.Nil(t, next, "not yet mature")
}

func TestRunMaturityJob_ProcessesDueContracts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "300000", "0")

	plain, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceWallet, 90, false))
	require.NoError(t, err)
	renewing, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceWallet, 90, true))
	require.NoError(t, err)
	notDue, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceWallet, 365, false))
	require.NoError(t, err)

	f.clock = plain.PaybackDate.Add(time.Hour)
	summary, err := f.service.RunMaturityJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PaidOut)
	assert.Equal(t, 1, summary.Renewed)
	assert.Equal(t, 0, summary.Failed)

	for id, want := range map[uuid.UUID]domain.FixedSavingsStatus{
		plain.ID:    domain.FixedSavingsPaidOut,
		renewing.ID: domain.FixedSavingsPaidOut,
		notDue.ID:   domain.FixedSavingsActive,
	} {
		stored, err := f.store.FixedSavings().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, stored.Status)
	}

	// Only the plain contract's payout stays in xysave; the renewing one was
	// immediately reinvested.
	assert.True(t, f.balance(t, f.xysave.ID).Equal(decimal.RequireFromString("51849.32")))

	// Rerunning the job changes nothing.
	rerun, err := f.service.RunMaturityJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rerun.PaidOut)
	assert.Equal(t, 0, rerun.Renewed)
	assert.Equal(t, 0, rerun.Failed)
}

func TestRunMaturityJob_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "300000", "0")

	good, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceWallet, 90, false))
	require.NoError(t, err)
	_, err = f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceWallet, 90, false))
	require.NoError(t, err)

	// Payouts credit the xysave account; poisoning it after creation makes
	// every payout fail.
	f.clock = good.PaybackDate.Add(time.Hour)
	f.store.FailOn(f.xysave.ID, assert.AnError)

	summary, err := f.service.RunMaturityJob(ctx)
	require.NoError(t, err, "individual failures must not abort the batch")
	assert.Equal(t, 0, summary.PaidOut)
	assert.Equal(t, 2, summary.Failed)
	assert.Len(t, summary.Errors, 2)
}

func TestSummary_AggregatesOwnerPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "300000", "0")

	first, err := f.service.Create(ctx, f.createInput("50000", domain.FixedSavingsSourceWallet, 90, false))
	require.NoError(t, err)
	_, err = f.service.Create(ctx, f.createInput("100000", domain.FixedSavingsSourceWallet, 180, false))
	require.NoError(t, err)

	summary, err := f.service.Summary(ctx, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ActiveCount)
	assert.True(t, summary.TotalActiveAmount.Amount.Equal(decimal.NewFromInt(150000)))
	// 51849.32 + 108876.71
	assert.True(t, summary.TotalMaturityAmount.Amount.Equal(decimal.RequireFromString("160726.03")),
		"expected 160726.03, got %s", summary.TotalMaturityAmount.Amount)
	assert.Equal(t, 0, summary.MaturedUnpaidCount)

	// After the first contract matures and is paid out, it drops from the
	// aggregates entirely.
	f.clock = first.PaybackDate.Add(time.Hour)
	_, err = f.service.ProcessMaturityPayout(ctx, first.ID)
	require.NoError(t, err)

	after, err := f.service.Summary(ctx, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.ActiveCount)
	assert.True(t, after.TotalActiveAmount.Amount.Equal(decimal.NewFromInt(100000)))
}
