// Package memory provides in-memory implementations of the domain
// repositories. They honor the same atomicity contract as the Postgres
// adapter (all-or-nothing Apply units) and back the unit tests and local
// development mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xybank/savings-core/internal/domain"
)

// Store holds all state behind one mutex so every repository operation is a
// single atomic unit, mirroring the per-operation database transaction of
// the Postgres adapter.
type Store struct {
	mu sync.Mutex

	accounts     map[uuid.UUID]*domain.Account
	entries      []*domain.LedgerEntry
	references   map[string]bool
	fixedSavings map[uuid.UUID]*domain.FixedSavingsAccount

	// failures injects an error for an account ID, used by tests to verify
	// batch failure isolation.
	failures map[uuid.UUID]error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]*domain.Account),
		references:   make(map[string]bool),
		fixedSavings: make(map[uuid.UUID]*domain.FixedSavingsAccount),
		failures:     make(map[uuid.UUID]error),
	}
}

// FailOn makes every mutation of the given account fail with err.
func (s *Store) FailOn(accountID uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[accountID] = err
}

// Accounts returns the AccountRepository view of the store.
func (s *Store) Accounts() domain.AccountRepository { return (*accountRepo)(s) }

// Ledger returns the LedgerRepository view of the store.
func (s *Store) Ledger() domain.LedgerRepository { return (*ledgerRepo)(s) }

// FixedSavings returns the FixedSavingsRepository view of the store.
func (s *Store) FixedSavings() domain.FixedSavingsRepository { return (*fixedSavingsRepo)(s) }

func (s *Store) account(id uuid.UUID) (*domain.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return account, nil
}

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func copyFixedSavings(fs *domain.FixedSavingsAccount) *domain.FixedSavingsAccount {
	c := *fs
	return &c
}

// applyOne runs one mutation against the live account. Caller holds the lock.
func (s *Store) applyOne(accountID uuid.UUID, mutate domain.LedgerMutation) (*domain.LedgerEntry, error) {
	if err, ok := s.failures[accountID]; ok {
		return nil, err
	}
	account, err := s.account(accountID)
	if err != nil {
		return nil, err
	}
	entry, err := mutate(copyAccount(account))
	if err != nil {
		return nil, err
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	account.Balance = entry.BalanceAfter
	account.UpdatedAt = entry.CreatedAt
	if entry.Type == domain.EntryTypeInterestCredit {
		earned, err := account.TotalInterestEarned.Add(entry.Amount)
		if err == nil {
			account.TotalInterestEarned = earned
		}
	}
	s.entries = append(s.entries, entry)
	s.references[entry.Reference] = true
	return entry, nil
}

type accountRepo Store

func (r *accountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.account(id)
	if err != nil {
		return nil, err
	}
	return copyAccount(account), nil
}

func (r *accountRepo) GetByOwnerAndType(_ context.Context, ownerID uuid.UUID, accountType domain.AccountType) (*domain.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.OwnerID == ownerID && account.Type == accountType {
			return copyAccount(account), nil
		}
	}
	return nil, fmt.Errorf("%w: owner %s type %s", domain.ErrAccountNotFound, ownerID, accountType)
}

func (r *accountRepo) Create(_ context.Context, account *domain.Account) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (r *accountRepo) ListActiveWithBalance(_ context.Context, accountType domain.AccountType) ([]*domain.Account, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Account
	for _, account := range s.accounts {
		if account.Type == accountType && account.IsActive && account.Balance.IsPositive() {
			out = append(out, copyAccount(account))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

type ledgerRepo Store

func (r *ledgerRepo) Apply(_ context.Context, accountID uuid.UUID, mutate domain.LedgerMutation) (*domain.LedgerEntry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyOne(accountID, mutate)
}

func (r *ledgerRepo) ApplyPair(_ context.Context, firstID, secondID uuid.UUID, mutateFirst, mutateSecond domain.LedgerMutation) (*domain.LedgerEntry, *domain.LedgerEntry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage both mutations before touching live state so a failure on the
	// second leaves the first untouched.
	if err, ok := s.failures[firstID]; ok {
		return nil, nil, err
	}
	if err, ok := s.failures[secondID]; ok {
		return nil, nil, err
	}
	first, err := s.account(firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := s.account(secondID)
	if err != nil {
		return nil, nil, err
	}
	firstEntry, err := mutateFirst(copyAccount(first))
	if err != nil {
		return nil, nil, err
	}
	secondEntry, err := mutateSecond(copyAccount(second))
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range []*domain.LedgerEntry{firstEntry, secondEntry} {
		if err := entry.Validate(); err != nil {
			return nil, nil, err
		}
	}

	first.Balance = firstEntry.BalanceAfter
	first.UpdatedAt = firstEntry.CreatedAt
	second.Balance = secondEntry.BalanceAfter
	second.UpdatedAt = secondEntry.CreatedAt
	s.entries = append(s.entries, firstEntry, secondEntry)
	s.references[firstEntry.Reference] = true
	s.references[secondEntry.Reference] = true
	return firstEntry, secondEntry, nil
}

func (r *ledgerRepo) MarkInterestCredited(_ context.Context, accountID uuid.UUID, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	account, err := s.account(accountID)
	if err != nil {
		return err
	}
	stamp := at
	account.LastInterestCredit = &stamp
	return nil
}

func (r *ledgerRepo) ReferenceExists(_ context.Context, reference string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.references[reference], nil
}

func (r *ledgerRepo) ListByAccount(_ context.Context, accountID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.LedgerEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].AccountID != accountID {
			continue
		}
		entry := *s.entries[i]
		out = append(out, &entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fixedSavingsRepo Store

func (r *fixedSavingsRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.FixedSavingsAccount, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	fs, ok := s.fixedSavings[id]
	if !ok {
		return nil, fmt.Errorf("%w: fixed savings %s", domain.ErrAccountNotFound, id)
	}
	return copyFixedSavings(fs), nil
}

func (r *fixedSavingsRepo) CreateFunded(_ context.Context, fs *domain.FixedSavingsAccount, funding []domain.FundingLeg) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.fixedSavings[fs.ID]; exists {
		return fmt.Errorf("fixed savings %s already exists", fs.ID)
	}

	// Stage all funding legs first; nothing is applied if any leg fails.
	type staged struct {
		account *domain.Account
		entry   *domain.LedgerEntry
	}
	var stagedLegs []staged
	for _, leg := range funding {
		if err, ok := s.failures[leg.AccountID]; ok {
			return err
		}
		account, err := s.account(leg.AccountID)
		if err != nil {
			return err
		}
		entry, err := leg.Mutate(copyAccount(account))
		if err != nil {
			return err
		}
		if err := entry.Validate(); err != nil {
			return err
		}
		stagedLegs = append(stagedLegs, staged{account: account, entry: entry})
	}
	for _, leg := range stagedLegs {
		leg.account.Balance = leg.entry.BalanceAfter
		leg.account.UpdatedAt = leg.entry.CreatedAt
		s.entries = append(s.entries, leg.entry)
		s.references[leg.entry.Reference] = true
	}
	s.fixedSavings[fs.ID] = copyFixedSavings(fs)
	return nil
}

func (r *fixedSavingsRepo) Update(_ context.Context, fs *domain.FixedSavingsAccount) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fixedSavings[fs.ID]; !ok {
		return fmt.Errorf("%w: fixed savings %s", domain.ErrAccountNotFound, fs.ID)
	}
	s.fixedSavings[fs.ID] = copyFixedSavings(fs)
	return nil
}

func (r *fixedSavingsRepo) RecordPayout(_ context.Context, fs *domain.FixedSavingsAccount, destinationID uuid.UUID, mutate domain.LedgerMutation) (*domain.LedgerEntry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.fixedSavings[fs.ID]
	if !ok {
		return nil, fmt.Errorf("%w: fixed savings %s", domain.ErrAccountNotFound, fs.ID)
	}
	// Re-check under the lock so a concurrent rerun cannot pay out twice.
	if stored.Status == domain.FixedSavingsPaidOut {
		return nil, domain.ErrAlreadyPaidOut
	}
	entry, err := s.applyOne(destinationID, mutate)
	if err != nil {
		return nil, err
	}
	s.fixedSavings[fs.ID] = copyFixedSavings(fs)
	return entry, nil
}

func (r *fixedSavingsRepo) RecordRenewal(_ context.Context, old, next *domain.FixedSavingsAccount, fundingAccountID uuid.UUID, mutate domain.LedgerMutation) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.fixedSavings[old.ID]
	if !ok {
		return fmt.Errorf("%w: fixed savings %s", domain.ErrAccountNotFound, old.ID)
	}
	if stored.Renewed {
		return domain.ErrAlreadyRenewed
	}
	if _, err := s.applyOne(fundingAccountID, mutate); err != nil {
		return err
	}
	s.fixedSavings[old.ID] = copyFixedSavings(old)
	s.fixedSavings[next.ID] = copyFixedSavings(next)
	return nil
}

func (r *fixedSavingsRepo) ListDue(_ context.Context, asOf time.Time) ([]*domain.FixedSavingsAccount, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.FixedSavingsAccount
	for _, fs := range s.fixedSavings {
		if fs.Status == domain.FixedSavingsPaidOut {
			continue
		}
		if fs.IsMature(asOf) {
			out = append(out, copyFixedSavings(fs))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *fixedSavingsRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.FixedSavingsAccount, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.FixedSavingsAccount
	for _, fs := range s.fixedSavings {
		if fs.OwnerID == ownerID {
			out = append(out, copyFixedSavings(fs))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
