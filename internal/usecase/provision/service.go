// Package provision creates the standard set of product accounts for a new
// customer: wallet, XySave, and spend-and-save. Account creation happens
// once per owner at onboarding; the rest of the system assumes the three
// accounts exist.
package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xybank/savings-core/internal/domain"
)

// Defaults applied to a fresh spend-and-save account. The owner can change
// them later; sweeps stay off until a percentage is set.
var (
	defaultSavingsPercentage = decimal.Zero
	defaultMinSpendAmount    = domain.Money{Amount: decimal.NewFromInt(100), Currency: domain.DefaultCurrency}
)

// Service provisions product accounts.
type Service struct {
	accountRepo domain.AccountRepository
	log         *zap.Logger
	now         func() time.Time
}

// NewService creates a provisioning service.
func NewService(accountRepo domain.AccountRepository, log *zap.Logger) *Service {
	return &Service{
		accountRepo: accountRepo,
		log:         log,
		now:         time.Now,
	}
}

// ProvisionOwner ensures the owner has one account of each product type,
// creating any that are missing. Safe to call repeatedly.
func (s *Service) ProvisionOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Account, error) {
	types := []domain.AccountType{
		domain.AccountTypeWallet,
		domain.AccountTypeXySave,
		domain.AccountTypeSpendAndSave,
	}

	var accounts []*domain.Account
	for _, accountType := range types {
		existing, err := s.accountRepo.GetByOwnerAndType(ctx, ownerID, accountType)
		if err == nil {
			accounts = append(accounts, existing)
			continue
		}

		account := s.newAccount(ownerID, accountType)
		if err := s.accountRepo.Create(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to provision %s account: %w", accountType, err)
		}
		s.log.Info("account provisioned",
			zap.String("owner_id", ownerID.String()),
			zap.String("type", string(accountType)),
			zap.String("number", account.Number))
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (s *Service) newAccount(ownerID uuid.UUID, accountType domain.AccountType) *domain.Account {
	now := s.now()
	account := &domain.Account{
		ID:                  uuid.New(),
		OwnerID:             ownerID,
		Number:              newAccountNumber(accountType),
		Type:                accountType,
		Balance:             domain.ZeroMoney(domain.DefaultCurrency),
		IsActive:            true,
		TotalInterestEarned: domain.ZeroMoney(domain.DefaultCurrency),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if accountType == domain.AccountTypeSpendAndSave {
		account.SavingsPercentage = defaultSavingsPercentage
		account.MinSpendAmount = defaultMinSpendAmount
		account.WithdrawalDestination = domain.AccountTypeWallet
	}
	return account
}

// newAccountNumber builds a product-prefixed account number from a fresh
// UUID fragment.
func newAccountNumber(accountType domain.AccountType) string {
	prefix := map[domain.AccountType]string{
		domain.AccountTypeWallet:       "WA",
		domain.AccountTypeXySave:       "XS",
		domain.AccountTypeSpendAndSave: "SS",
	}[accountType]
	return prefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:14])
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
