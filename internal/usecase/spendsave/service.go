// Package spendsave implements the spend-and-save product: a percentage of
// every qualifying wallet spend is swept into a dedicated savings account.
package spendsave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xybank/savings-core/internal/domain"
	"github.com/xybank/savings-core/internal/usecase/ledger"
)

var hundred = decimal.NewFromInt(100)

// Service drives spend-and-save sweeps and withdrawals.
type Service struct {
	accountRepo domain.AccountRepository
	ledger      *ledger.Service
	log         *zap.Logger
	now         func() time.Time
}

// NewService creates a spend-and-save service.
func NewService(accountRepo domain.AccountRepository, ledgerService *ledger.Service, log *zap.Logger) *Service {
	return &Service{
		accountRepo: accountRepo,
		ledger:      ledgerService,
		now:         time.Now,
		log:         log,
	}
}

// ProcessSpending reacts to a wallet spend: if the owner has an active
// spend-and-save account and the spend clears its minimum threshold, the
// configured percentage of the spend is swept from the wallet into savings.
// Returns the auto_save entry, or nil when no sweep applies. Sweeps ride on
// the spend notification path, so "no sweep" is a normal outcome rather
// than an error.
func (s *Service) ProcessSpending(ctx context.Context, ownerID uuid.UUID, spent domain.Money) (*domain.LedgerEntry, error) {
	if !spent.IsPositive() {
		return nil, nil
	}
	savings, err := s.accountRepo.GetByOwnerAndType(ctx, ownerID, domain.AccountTypeSpendAndSave)
	if err != nil {
		return nil, err
	}
	if !savings.IsActive || !savings.SavingsPercentage.IsPositive() {
		return nil, nil
	}
	if savings.MinSpendAmount.IsPositive() {
		clears, err := spent.GreaterThanOrEqual(savings.MinSpendAmount)
		if err != nil {
			return nil, err
		}
		if !clears {
			return nil, nil
		}
	}

	sweep := spent.MulDecimal(savings.SavingsPercentage.Div(hundred)).Round()
	if !sweep.IsPositive() {
		return nil, nil
	}

	wallet, err := s.accountRepo.GetByOwnerAndType(ctx, ownerID, domain.AccountTypeWallet)
	if err != nil {
		return nil, err
	}
	ok, err := wallet.CanWithdraw(sweep)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The spend itself already went through; skipping the sweep is the
		// only safe option when the wallet cannot cover it.
		s.log.Warn("skipping auto-save sweep, wallet cannot cover it",
			zap.String("owner_id", ownerID.String()),
			zap.String("sweep", sweep.String()),
			zap.String("wallet_balance", wallet.Balance.String()))
		return nil, nil
	}

	description := fmt.Sprintf("Auto-save %s%% of %s spend",
		savings.SavingsPercentage.String(), spent)
	_, in, err := s.ledger.Sweep(ctx, wallet.ID, savings.ID, sweep, description)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Withdraw moves amount out of the spend-and-save account into the owner's
// configured destination account (wallet unless set to xysave).
func (s *Service) Withdraw(ctx context.Context, ownerID uuid.UUID, amount domain.Money) (*domain.LedgerEntry, error) {
	savings, err := s.accountRepo.GetByOwnerAndType(ctx, ownerID, domain.AccountTypeSpendAndSave)
	if err != nil {
		return nil, err
	}

	destinationType := savings.WithdrawalDestination
	if destinationType == "" {
		destinationType = domain.AccountTypeWallet
	}
	destination, err := s.accountRepo.GetByOwnerAndType(ctx, ownerID, destinationType)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Spend-and-save withdrawal to %s", destinationType)
	out, _, err := s.ledger.Transfer(ctx, savings.ID, destination.ID, amount, description)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
