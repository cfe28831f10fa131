package fixedsavings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xybank/savings-core/internal/domain"
)

// CreateInput carries the terms of a new fixed savings contract.
type CreateInput struct {
	OwnerID            uuid.UUID
	Amount             domain.Money
	Source             domain.FixedSavingsSource
	Purpose            string
	PurposeDescription string
	StartDate          time.Time
	PaybackDate        time.Time
	AutoRenewalEnabled bool
}

// Service owns the fixed savings lifecycle: funded creation, maturity
// payout, auto-renewal, and the batch job that drives both.
type Service struct {
	fsRepo      domain.FixedSavingsRepository
	accountRepo domain.AccountRepository
	notifier    domain.Notifier
	log         *zap.Logger
	now         func() time.Time
}

// NewService creates a fixed savings service.
func NewService(fsRepo domain.FixedSavingsRepository, accountRepo domain.AccountRepository, notifier domain.Notifier, log *zap.Logger) *Service {
	return &Service{
		fsRepo:      fsRepo,
		accountRepo: accountRepo,
		notifier:    notifier,
		log:         log,
		now:         time.Now,
	}
}

// Create validates the terms, locks in the interest rate and maturity
// amount, and funds the contract from the owner's source account(s). All
// validation happens before any mutation; the funding debits and the
// contract insert commit as one atomic unit.
//
// Split funding ("both") draws from the wallet first until it is exhausted,
// then from the XySave account. The draw order is deterministic, not
// proportional.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.FixedSavingsAccount, error) {
	now := s.now()
	fs, err := domain.NewFixedSavingsAccount(
		input.OwnerID, input.Amount, input.Source,
		input.Purpose, input.PurposeDescription,
		input.StartDate, input.PaybackDate,
		input.AutoRenewalEnabled, now,
	)
	if err != nil {
		return nil, err
	}

	funding, err := s.planFunding(ctx, fs, now)
	if err != nil {
		return nil, err
	}

	if err := s.fsRepo.CreateFunded(ctx, fs, funding); err != nil {
		return nil, fmt.Errorf("failed to fund fixed savings %s: %w", fs.Number, err)
	}

	s.log.Info("fixed savings created",
		zap.String("number", fs.Number),
		zap.String("amount", fs.Amount.String()),
		zap.String("rate", fs.InterestRate.String()),
		zap.String("maturity_amount", fs.MaturityAmount.String()),
		zap.Time("payback_date", fs.PaybackDate))

	s.notifier.Notify(ctx, domain.Event{
		Type:       domain.EventFixedSavingsCreated,
		OwnerID:    fs.OwnerID,
		OccurredAt: now,
		Payload: map[string]string{
			"fixed_savings_id": fs.ID.String(),
			"number":           fs.Number,
			"amount":           fs.Amount.String(),
			"interest_rate":    fs.InterestRate.String(),
			"maturity_amount":  fs.MaturityAmount.String(),
			"payback_date":     fs.PaybackDate.Format(time.RFC3339),
		},
	})
	return fs, nil
}

// planFunding resolves the source accounts and produces the debit legs.
// It checks combined funds up front so validation failures precede any
// mutation; the repository re-checks under row locks when applying.
func (s *Service) planFunding(ctx context.Context, fs *domain.FixedSavingsAccount, now time.Time) ([]domain.FundingLeg, error) {
	description := fmt.Sprintf("Fixed savings funding - %s", fs.Number)
	reference := func(leg string) string {
		return fmt.Sprintf("FS_INIT_%s_%s", leg, fs.ID.String()[:8])
	}
	debit := func(amount domain.Money, ref string) domain.LedgerMutation {
		return func(account *domain.Account) (*domain.LedgerEntry, error) {
			if !account.IsActive {
				return nil, domain.ErrAccountInactive
			}
			return domain.NewLedgerEntry(account, domain.EntryTypeTransferOut, amount, ref, description, now)
		}
	}

	switch fs.Source {
	case domain.FixedSavingsSourceWallet:
		wallet, err := s.accountRepo.GetByOwnerAndType(ctx, fs.OwnerID, domain.AccountTypeWallet)
		if err != nil {
			return nil, err
		}
		if err := requireFunds(wallet, fs.Amount); err != nil {
			return nil, err
		}
		return []domain.FundingLeg{{AccountID: wallet.ID, Mutate: debit(fs.Amount, reference("W"))}}, nil

	case domain.FixedSavingsSourceXySave:
		xysave, err := s.accountRepo.GetByOwnerAndType(ctx, fs.OwnerID, domain.AccountTypeXySave)
		if err != nil {
			return nil, err
		}
		if err := requireFunds(xysave, fs.Amount); err != nil {
			return nil, err
		}
		return []domain.FundingLeg{{AccountID: xysave.ID, Mutate: debit(fs.Amount, reference("X"))}}, nil

	case domain.FixedSavingsSourceBoth:
		wallet, err := s.accountRepo.GetByOwnerAndType(ctx, fs.OwnerID, domain.AccountTypeWallet)
		if err != nil {
			return nil, err
		}
		xysave, err := s.accountRepo.GetByOwnerAndType(ctx, fs.OwnerID, domain.AccountTypeXySave)
		if err != nil {
			return nil, err
		}
		combined, err := wallet.Balance.Add(xysave.Balance)
		if err != nil {
			return nil, err
		}
		ok, err := combined.GreaterThanOrEqual(fs.Amount)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: combined %s below %s", domain.ErrInsufficientFunds, combined, fs.Amount)
		}

		// Wallet first, then XySave for the remainder.
		walletLeg := fs.Amount
		if wallet.Balance.Amount.LessThan(fs.Amount.Amount) {
			walletLeg = wallet.Balance
		}
		var legs []domain.FundingLeg
		if walletLeg.IsPositive() {
			legs = append(legs, domain.FundingLeg{AccountID: wallet.ID, Mutate: debit(walletLeg, reference("W"))})
		}
		remainder, err := fs.Amount.Sub(walletLeg)
		if err != nil {
			return nil, err
		}
		if remainder.IsPositive() {
			legs = append(legs, domain.FundingLeg{AccountID: xysave.ID, Mutate: debit(remainder, reference("X"))})
		}
		return legs, nil
	}
	return nil, fmt.Errorf("unknown funding source %q", fs.Source)
}

// ProcessMaturityPayout pays a matured contract out to the owner's XySave
// account and marks it paid. The operation is idempotent: a second call
// returns (false, nil) without touching the ledger.
func (s *Service) ProcessMaturityPayout(ctx context.Context, fsID uuid.UUID) (bool, error) {
	now := s.now()
	fs, err := s.fsRepo.GetByID(ctx, fsID)
	if err != nil {
		return false, err
	}
	if fs.Status == domain.FixedSavingsPaidOut {
		return false, nil
	}
	if !fs.CanBePaidOut(now) {
		return false, fmt.Errorf("%w: %s matures on %s", domain.ErrNotMatured, fs.Number, fs.PaybackDate.Format("2006-01-02"))
	}

	matured := fs.Status != domain.FixedSavingsMatured
	if err := fs.MarkMatured(now); err != nil {
		return false, err
	}
	if err := fs.MarkPaidOut(now); err != nil {
		return false, err
	}

	destination, err := s.accountRepo.GetByOwnerAndType(ctx, fs.OwnerID, domain.AccountTypeXySave)
	if err != nil {
		return false, err
	}

	reference := fmt.Sprintf("FS_PAYOUT_%s", fs.ID.String()[:8])
	description := fmt.Sprintf("Fixed savings maturity payout - %s", fs.Number)
	_, err = s.fsRepo.RecordPayout(ctx, fs, destination.ID, func(account *domain.Account) (*domain.LedgerEntry, error) {
		return domain.NewLedgerEntry(account, domain.EntryTypeMaturityPayout, fs.MaturityAmount, reference, description, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyPaidOut) {
			// A concurrent rerun won the race; same benign no-op as above.
			return false, nil
		}
		return false, err
	}

	s.log.Info("fixed savings paid out",
		zap.String("number", fs.Number),
		zap.String("maturity_amount", fs.MaturityAmount.String()))

	if matured {
		s.notifier.Notify(ctx, domain.Event{
			Type:       domain.EventFixedSavingsMatured,
			OwnerID:    fs.OwnerID,
			OccurredAt: now,
			Payload:    s.eventPayload(fs),
		})
	}
	s.notifier.Notify(ctx, domain.Event{
		Type:       domain.EventFixedSavingsPaidOut,
		OwnerID:    fs.OwnerID,
		OccurredAt: now,
		Payload:    s.eventPayload(fs),
	})
	return true, nil
}

// ProcessAutoRenewal spawns the successor contract for a matured,
// auto-renewal-enabled contract: the new cycle starts at the old payback
// date, keeps the original duration, and uses the maturity amount as
// principal drawn from the XySave account where the payout landed. The old
// contract is flagged Renewed in the same atomic unit so a job rerun cannot
// renew it twice.
func (s *Service) ProcessAutoRenewal(ctx context.Context, fsID uuid.UUID) (*domain.FixedSavingsAccount, error) {
	now := s.now()
	fs, err := s.fsRepo.GetByID(ctx, fsID)
	if err != nil {
		return nil, err
	}
	if !fs.AutoRenewalEnabled || !fs.IsMature(now) {
		return nil, nil
	}
	if fs.Renewed {
		return nil, nil
	}

	next, err := fs.Renew(now)
	if err != nil {
		return nil, err
	}
	if err := fs.MarkRenewed(now); err != nil {
		return nil, err
	}

	xysave, err := s.accountRepo.GetByOwnerAndType(ctx, fs.OwnerID, domain.AccountTypeXySave)
	if err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("FS_RENEWAL_%s", next.ID.String()[:8])
	description := fmt.Sprintf("Auto-renewal of fixed savings %s", fs.Number)
	err = s.fsRepo.RecordRenewal(ctx, fs, next, xysave.ID, func(account *domain.Account) (*domain.LedgerEntry, error) {
		if !account.IsActive {
			return nil, domain.ErrAccountInactive
		}
		return domain.NewLedgerEntry(account, domain.EntryTypeTransferOut, next.Amount, reference, description, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRenewed) {
			return nil, nil
		}
		return nil, err
	}

	s.log.Info("fixed savings auto-renewed",
		zap.String("old_number", fs.Number),
		zap.String("new_number", next.Number),
		zap.String("principal", next.Amount.String()))

	s.notifier.Notify(ctx, domain.Event{
		Type:       domain.EventFixedSavingsAutoRenewed,
		OwnerID:    next.OwnerID,
		OccurredAt: now,
		Payload:    s.eventPayload(next),
	})
	return next, nil
}

// MaturitySummary reports the outcome of one maturity batch.
type MaturitySummary struct {
	PaidOut int
	Renewed int
	Failed  int
	Errors  []error
}

// RunMaturityJob scans due contracts, pays each out, and renews the ones
// with auto-renewal enabled. Contracts are processed independently so one
// failure never aborts the batch; the job is safe to rerun because payout
// and renewal are both idempotent.
func (s *Service) RunMaturityJob(ctx context.Context) (MaturitySummary, error) {
	summary := MaturitySummary{}
	due, err := s.fsRepo.ListDue(ctx, s.now())
	if err != nil {
		return summary, fmt.Errorf("failed to list due fixed savings: %w", err)
	}

	for _, fs := range due {
		paid, err := s.ProcessMaturityPayout(ctx, fs.ID)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Errorf("payout %s: %w", fs.Number, err))
			s.log.Error("maturity payout failed",
				zap.String("number", fs.Number), zap.Error(err))
			continue
		}
		if paid {
			summary.PaidOut++
		}
		if !fs.AutoRenewalEnabled {
			continue
		}
		next, err := s.ProcessAutoRenewal(ctx, fs.ID)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Errorf("renewal %s: %w", fs.Number, err))
			s.log.Error("auto-renewal failed",
				zap.String("number", fs.Number), zap.Error(err))
			continue
		}
		if next != nil {
			summary.Renewed++
		}
	}

	s.log.Info("maturity job finished",
		zap.Int("paid_out", summary.PaidOut),
		zap.Int("renewed", summary.Renewed),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// OwnerSummary aggregates an owner's fixed savings position.
type OwnerSummary struct {
	ActiveCount         int
	TotalActiveAmount   domain.Money
	TotalMaturityAmount domain.Money
	TotalInterest       domain.Money
	MaturedUnpaidCount  int
	MaturedUnpaidAmount domain.Money
}

// Summary aggregates the owner's contracts.
func (s *Service) Summary(ctx context.Context, ownerID uuid.UUID) (OwnerSummary, error) {
	contracts, err := s.fsRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return OwnerSummary{}, err
	}
	out := OwnerSummary{
		TotalActiveAmount:   domain.ZeroMoney(domain.DefaultCurrency),
		TotalMaturityAmount: domain.ZeroMoney(domain.DefaultCurrency),
		TotalInterest:       domain.ZeroMoney(domain.DefaultCurrency),
		MaturedUnpaidAmount: domain.ZeroMoney(domain.DefaultCurrency),
	}
	now := s.now()
	for _, fs := range contracts {
		switch fs.Status {
		case domain.FixedSavingsActive, domain.FixedSavingsPending, domain.FixedSavingsMatured:
			out.ActiveCount++
			if out.TotalActiveAmount, err = out.TotalActiveAmount.Add(fs.Amount); err != nil {
				return OwnerSummary{}, err
			}
			if out.TotalMaturityAmount, err = out.TotalMaturityAmount.Add(fs.MaturityAmount); err != nil {
				return OwnerSummary{}, err
			}
			if out.TotalInterest, err = out.TotalInterest.Add(fs.TotalInterestEarned); err != nil {
				return OwnerSummary{}, err
			}
		}
		if fs.Status != domain.FixedSavingsPaidOut && fs.IsMature(now) {
			out.MaturedUnpaidCount++
			if out.MaturedUnpaidAmount, err = out.MaturedUnpaidAmount.Add(fs.MaturityAmount); err != nil {
				return OwnerSummary{}, err
			}
		}
	}
	return out, nil
}

func (s *Service) eventPayload(fs *domain.FixedSavingsAccount) map[string]string {
	return map[string]string{
		"fixed_savings_id": fs.ID.String(),
		"number":           fs.Number,
		"amount":           fs.Amount.String(),
		"maturity_amount":  fs.MaturityAmount.String(),
		"interest_rate":    fs.InterestRate.String(),
		"interest_earned":  fs.TotalInterestEarned.String(),
		"status":           string(fs.Status),
	}
}

func requireFunds(account *domain.Account, amount domain.Money) error {
	ok, err := account.CanWithdraw(amount)
	if err != nil {
		return err
	}
	if !ok {
		if !account.IsActive {
			return domain.ErrAccountInactive
		}
		return fmt.Errorf("%w: %s has %s, need %s", domain.ErrInsufficientFunds, account.Number, account.Balance, amount)
	}
	return nil
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
