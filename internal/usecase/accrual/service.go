package accrual

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xybank/savings-core/internal/domain"
	"github.com/xybank/savings-core/internal/usecase/interest"
	"github.com/xybank/savings-core/internal/usecase/ledger"
)

var hundred = decimal.NewFromInt(100)

// Summary reports the outcome of one accrual batch.
type Summary struct {
	AccountType domain.AccountType
	Processed   int
	Skipped     int
	Failed      int
	Errors      []AccountError
}

// AccountError pairs a failed account with its error so operators can chase
// individual failures without digging through logs.
type AccountError struct {
	AccountNumber string
	Err           error
}

// Service runs the daily interest accrual over all active accounts of a
// product type. Accounts are processed independently: one failure is
// recorded and the batch moves on.
type Service struct {
	accountRepo domain.AccountRepository
	ledger      *ledger.Service
	tiers       domain.TierTable
	log         *zap.Logger
	now         func() time.Time
}

// NewService creates an accrual service over the given tier table.
func NewService(accountRepo domain.AccountRepository, ledgerService *ledger.Service, tiers domain.TierTable, log *zap.Logger) *Service {
	return &Service{
		accountRepo: accountRepo,
		ledger:      ledgerService,
		tiers:       tiers,
		log:         log,
		now:         time.Now,
	}
}

// RunDaily credits one day of tiered interest to every active account of the
// given type with a positive balance. The job may be triggered any number of
// times per day (cron plus manual reruns): accounts already credited for the
// current UTC day are skipped, so rerunning cannot double-credit.
func (s *Service) RunDaily(ctx context.Context, accountType domain.AccountType) (Summary, error) {
	summary := Summary{AccountType: accountType}

	accounts, err := s.accountRepo.ListActiveWithBalance(ctx, accountType)
	if err != nil {
		return summary, fmt.Errorf("failed to list %s accounts: %w", accountType, err)
	}

	today := s.now()
	for _, account := range accounts {
		if account.InterestCreditedOn(today) {
			summary.Skipped++
			continue
		}
		if err := s.creditOne(ctx, account); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, AccountError{AccountNumber: account.Number, Err: err})
			s.log.Error("accrual failed for account",
				zap.String("account_number", account.Number),
				zap.String("account_type", string(accountType)),
				zap.Error(err))
			continue
		}
		summary.Processed++
	}

	s.log.Info("daily accrual finished",
		zap.String("account_type", string(accountType)),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (s *Service) creditOne(ctx context.Context, account *domain.Account) error {
	result, err := interest.Compute(account.Balance, 1, s.tiers)
	if err != nil {
		return err
	}
	amount := result.TotalInterest.Round()
	if !amount.IsPositive() {
		return nil
	}
	description := fmt.Sprintf("Daily interest credit (%s%% p.a. effective)",
		result.EffectiveAnnualRate.Mul(hundred).StringFixed(2))
	_, err = s.ledger.CreditInterest(ctx, account.ID, amount, description)
	return err
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
