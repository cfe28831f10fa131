package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xybank/savings-core/internal/domain"
)

const referenceAttempts = 5

// Service applies balance mutations through the ledger repository. Every
// mutation it performs writes exactly one immutable ledger entry per touched
// account, inside one atomic unit, and emits a domain event afterwards.
type Service struct {
	ledgerRepo  domain.LedgerRepository
	accountRepo domain.AccountRepository
	notifier    domain.Notifier
	log         *zap.Logger
	now         func() time.Time
}

// NewService creates a ledger service.
func NewService(ledgerRepo domain.LedgerRepository, accountRepo domain.AccountRepository, notifier domain.Notifier, log *zap.Logger) *Service {
	return &Service{
		ledgerRepo:  ledgerRepo,
		accountRepo: accountRepo,
		notifier:    notifier,
		log:         log,
		now:         time.Now,
	}
}

// Deposit credits amount to the account.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, amount domain.Money, description string) (*domain.LedgerEntry, error) {
	entry, err := s.apply(ctx, accountID, domain.EntryTypeDeposit, amount, description, "DEP")
	if err != nil {
		return nil, err
	}
	s.emit(ctx, domain.EventDeposit, entry)
	return entry, nil
}

// Withdraw debits amount from the account. Fails with ErrInsufficientFunds
// before any mutation if the balance does not cover the amount.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, amount domain.Money, description string) (*domain.LedgerEntry, error) {
	entry, err := s.apply(ctx, accountID, domain.EntryTypeWithdrawal, amount, description, "WTH")
	if err != nil {
		return nil, err
	}
	s.emit(ctx, domain.EventWithdrawal, entry)
	return entry, nil
}

// CreditInterest credits an interest amount and stamps the account's
// last-interest-credit marker used by the daily job's idempotency guard.
func (s *Service) CreditInterest(ctx context.Context, accountID uuid.UUID, amount domain.Money, description string) (*domain.LedgerEntry, error) {
	entry, err := s.apply(ctx, accountID, domain.EntryTypeInterestCredit, amount, description, "INT")
	if err != nil {
		return nil, err
	}
	if err := s.ledgerRepo.MarkInterestCredited(ctx, accountID, s.now()); err != nil {
		// The credit itself committed; a failed stamp only weakens the
		// skip-guard for today, so log and continue.
		s.log.Warn("failed to stamp interest credit time",
			zap.String("account_id", accountID.String()), zap.Error(err))
	}
	s.emit(ctx, domain.EventInterestCredited, entry)
	return entry, nil
}

// Transfer moves amount between two accounts in a single atomic unit: a
// transfer_out entry on the source and a transfer_in entry on the
// destination, sharing one reference. A failure on either side rolls back
// both.
func (s *Service) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount domain.Money, description string) (*domain.LedgerEntry, *domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("transfer amount must be positive, got %s", amount)
	}
	if fromID == toID {
		return nil, nil, fmt.Errorf("cannot transfer from an account to itself")
	}
	reference, err := s.newReference(ctx, "TRF")
	if err != nil {
		return nil, nil, err
	}
	now := s.now()

	out, in, err := s.ledgerRepo.ApplyPair(ctx, fromID, toID,
		func(from *domain.Account) (*domain.LedgerEntry, error) {
			if !from.IsActive {
				return nil, domain.ErrAccountInactive
			}
			return domain.NewLedgerEntry(from, domain.EntryTypeTransferOut, amount, reference, description, now)
		},
		func(to *domain.Account) (*domain.LedgerEntry, error) {
			if !to.IsActive {
				return nil, domain.ErrAccountInactive
			}
			return domain.NewLedgerEntry(to, domain.EntryTypeTransferIn, amount, reference, description, now)
		},
	)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("transfer applied",
		zap.String("reference", reference),
		zap.String("from", fromID.String()),
		zap.String("to", toID.String()),
		zap.String("amount", amount.String()))
	return out, in, nil
}

// Sweep moves an auto-save amount from a wallet into a savings account.
// Identical mechanics to Transfer but recorded as an auto_save credit so
// the savings history shows where the money came from.
func (s *Service) Sweep(ctx context.Context, walletID, savingsID uuid.UUID, amount domain.Money, description string) (*domain.LedgerEntry, *domain.LedgerEntry, error) {
	reference, err := s.newReference(ctx, "SWP")
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	out, in, err := s.ledgerRepo.ApplyPair(ctx, walletID, savingsID,
		func(wallet *domain.Account) (*domain.LedgerEntry, error) {
			if !wallet.IsActive {
				return nil, domain.ErrAccountInactive
			}
			return domain.NewLedgerEntry(wallet, domain.EntryTypeTransferOut, amount, reference, description, now)
		},
		func(savings *domain.Account) (*domain.LedgerEntry, error) {
			if !savings.IsActive {
				return nil, domain.ErrAccountInactive
			}
			return domain.NewLedgerEntry(savings, domain.EntryTypeAutoSave, amount, reference, description, now)
		},
	)
	if err != nil {
		return nil, nil, err
	}
	s.emit(ctx, domain.EventAutoSave, in)
	return out, in, nil
}

// apply runs a single-account mutation with a generated reference.
func (s *Service) apply(ctx context.Context, accountID uuid.UUID, entryType domain.EntryType, amount domain.Money, description, prefix string) (*domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%s amount must be positive, got %s", entryType, amount)
	}
	reference, err := s.newReference(ctx, prefix)
	if err != nil {
		return nil, err
	}
	now := s.now()

	entry, err := s.ledgerRepo.Apply(ctx, accountID, func(account *domain.Account) (*domain.LedgerEntry, error) {
		if !account.IsActive {
			return nil, domain.ErrAccountInactive
		}
		return domain.NewLedgerEntry(account, entryType, amount, reference, description, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("ledger entry applied",
		zap.String("reference", entry.Reference),
		zap.String("account_id", accountID.String()),
		zap.String("type", string(entryType)),
		zap.String("amount", entry.Amount.String()))
	return entry, nil
}

// newReference generates a unique reference of the form
// PREFIX_<unix-nanos>_<uuid fragment>, collision-checked against the ledger.
func (s *Service) newReference(ctx context.Context, prefix string) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		suffix := strings.ToUpper(uuid.NewString()[:8])
		reference := fmt.Sprintf("%s_%d_%s", prefix, s.now().UnixNano(), suffix)
		exists, err := s.ledgerRepo.ReferenceExists(ctx, reference)
		if err != nil {
			return "", fmt.Errorf("failed to check reference uniqueness: %w", err)
		}
		if !exists {
			return reference, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique reference after %d attempts", referenceAttempts)
}

// emit hands an event to the notifier. Notification is fire-and-forget and
// can never fail the mutation that produced it.
func (s *Service) emit(ctx context.Context, eventType domain.EventType, entry *domain.LedgerEntry) {
	account, err := s.accountRepo.GetByID(ctx, entry.AccountID)
	if err != nil {
		s.log.Warn("skipping event, account lookup failed",
			zap.String("account_id", entry.AccountID.String()), zap.Error(err))
		return
	}
	s.notifier.Notify(ctx, domain.Event{
		Type:       eventType,
		OwnerID:    account.OwnerID,
		OccurredAt: s.now(),
		Payload: map[string]string{
			"account_id":   entry.AccountID.String(),
			"account_type": string(entry.AccountType),
			"reference":    entry.Reference,
			"amount":       entry.Amount.String(),
			"balance":      entry.BalanceAfter.String(),
		},
	})
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
