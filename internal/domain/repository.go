package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountRepository defines read access to accounts. All balance writes go
// through LedgerRepository so that a balance can never change without a
// ledger row.
type AccountRepository interface {
	// GetByID retrieves an account by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByOwnerAndType retrieves the owner's account of the given type.
	GetByOwnerAndType(ctx context.Context, ownerID uuid.UUID, accountType AccountType) (*Account, error)

	// Create creates a new account.
	Create(ctx context.Context, account *Account) error

	// ListActiveWithBalance lists active accounts of the given type whose
	// balance is strictly positive, the accrual job's working set.
	ListActiveWithBalance(ctx context.Context, accountType AccountType) ([]*Account, error)
}

// LedgerMutation is the pure build step of a ledger write. It receives the
// account as freshly read inside the atomic scope (row-locked in the
// Postgres implementation) and returns the entry to append. Returning an
// error aborts the whole unit with no state change.
type LedgerMutation func(account *Account) (*LedgerEntry, error)

// LedgerRepository appends immutable ledger entries and applies the matching
// balance updates. Each Apply* call is one atomic unit: the balance update
// and the entry insert commit together or not at all, and the account is
// read under a lock inside that same unit so read-modify-write cannot race.
type LedgerRepository interface {
	// Apply mutates one account.
	Apply(ctx context.Context, accountID uuid.UUID, mutate LedgerMutation) (*LedgerEntry, error)

	// ApplyPair mutates two accounts in a single atomic unit, locking them
	// in a deterministic order. Used for transfers and sweeps.
	ApplyPair(ctx context.Context, firstID, secondID uuid.UUID, mutateFirst, mutateSecond LedgerMutation) (*LedgerEntry, *LedgerEntry, error)

	// MarkInterestCredited records the accrual timestamp used by the daily
	// job's idempotency guard.
	MarkInterestCredited(ctx context.Context, accountID uuid.UUID, at time.Time) error

	// ReferenceExists reports whether a ledger reference is already taken.
	ReferenceExists(ctx context.Context, reference string) (bool, error)

	// ListByAccount returns entries for an account, newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*LedgerEntry, error)
}

// FixedSavingsRepository persists fixed-term savings contracts. The funded
// create, payout, and renewal operations each span multiple rows and must be
// single atomic units.
type FixedSavingsRepository interface {
	// GetByID retrieves a contract by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*FixedSavingsAccount, error)

	// CreateFunded inserts the contract, debits the source account(s) per
	// the funding legs, and appends those entries, all in one unit.
	CreateFunded(ctx context.Context, fs *FixedSavingsAccount, funding []FundingLeg) error

	// Update persists status/flag transitions on an existing contract.
	Update(ctx context.Context, fs *FixedSavingsAccount) error

	// RecordPayout marks the contract paid out and credits the destination
	// account with the maturity amount in one unit. The returned entry is
	// the destination credit.
	RecordPayout(ctx context.Context, fs *FixedSavingsAccount, destinationID uuid.UUID, mutate LedgerMutation) (*LedgerEntry, error)

	// RecordRenewal marks the old contract renewed, inserts the successor,
	// and debits the funding account for the new principal in one unit.
	RecordRenewal(ctx context.Context, old, next *FixedSavingsAccount, fundingAccountID uuid.UUID, mutate LedgerMutation) error

	// ListDue lists active, unpaid contracts whose payback date has passed.
	ListDue(ctx context.Context, asOf time.Time) ([]*FixedSavingsAccount, error)

	// ListByOwner lists the owner's contracts, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*FixedSavingsAccount, error)
}

// FundingLeg is one source-account debit of a (possibly split) funding plan.
type FundingLeg struct {
	AccountID uuid.UUID
	Mutate    LedgerMutation
}
