package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xybank/savings-core/internal/domain"
)

const fixedSavingsColumns = `
	id, owner_id, number, amount, currency, source, purpose,
	purpose_description, start_date, payback_date, interest_rate,
	maturity_amount, total_interest_earned, status, auto_renewal_enabled,
	renewed, renewed_gen, created_at, updated_at, matured_at, paid_out_at,
	renewed_at
`

// fixedSavingsRepository implements domain.FixedSavingsRepository
type fixedSavingsRepository struct {
	db *DB
}

// NewFixedSavingsRepository creates a new fixed savings repository
func NewFixedSavingsRepository(db *DB) domain.FixedSavingsRepository {
	return &fixedSavingsRepository{db: db}
}

// GetByID retrieves a fixed savings contract by its ID
func (r *fixedSavingsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FixedSavingsAccount, error) {
	query := `SELECT ` + fixedSavingsColumns + ` FROM fixed_savings WHERE id = $1`

	fs, err := scanFixedSavings(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: fixed savings %s", domain.ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("failed to get fixed savings: %w", err)
	}
	return fs, nil
}

// CreateFunded inserts the contract and applies all funding debits in one
// transaction: either the contract exists fully funded or nothing happened.
func (r *fixedSavingsRepository) CreateFunded(ctx context.Context, fs *domain.FixedSavingsAccount, funding []domain.FundingLeg) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, leg := range funding {
		if _, err := applyLocked(ctx, tx, leg.AccountID, leg.Mutate); err != nil {
			return err
		}
	}
	if err := insertFixedSavings(ctx, tx, fs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fixed savings creation: %w", err)
	}
	return nil
}

// Update persists the contract's mutable fields
func (r *fixedSavingsRepository) Update(ctx context.Context, fs *domain.FixedSavingsAccount) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateFixedSavings(ctx, tx, fs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fixed savings update: %w", err)
	}
	return nil
}

// RecordPayout applies the payout credit to the destination account and
// marks the contract paid out, atomically. The stored status is re-checked
// under a row lock so a concurrent rerun gets ErrAlreadyPaidOut instead of
// crediting twice.
func (r *fixedSavingsRepository) RecordPayout(ctx context.Context, fs *domain.FixedSavingsAccount, destinationID uuid.UUID, mutate domain.LedgerMutation) (*domain.LedgerEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, err := lockFixedSavings(ctx, tx, fs.ID)
	if err != nil {
		return nil, err
	}
	if stored.Status == domain.FixedSavingsPaidOut {
		return nil, domain.ErrAlreadyPaidOut
	}

	entry, err := applyLocked(ctx, tx, destinationID, mutate)
	if err != nil {
		return nil, err
	}
	if err := updateFixedSavings(ctx, tx, fs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payout: %w", err)
	}
	return entry, nil
}

// RecordRenewal marks the old contract renewed, inserts its successor, and
// debits the funding account, atomically. The stored renewed flag is
// re-checked under a row lock so a rerun gets ErrAlreadyRenewed.
func (r *fixedSavingsRepository) RecordRenewal(ctx context.Context, old, next *domain.FixedSavingsAccount, fundingAccountID uuid.UUID, mutate domain.LedgerMutation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, err := lockFixedSavings(ctx, tx, old.ID)
	if err != nil {
		return err
	}
	if stored.Renewed {
		return domain.ErrAlreadyRenewed
	}

	if _, err := applyLocked(ctx, tx, fundingAccountID, mutate); err != nil {
		return err
	}
	if err := updateFixedSavings(ctx, tx, old); err != nil {
		return err
	}
	if err := insertFixedSavings(ctx, tx, next); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit renewal: %w", err)
	}
	return nil
}

// ListDue returns all contracts that have reached maturity and are not yet
// paid out, ordered by number for deterministic batches
func (r *fixedSavingsRepository) ListDue(ctx context.Context, asOf time.Time) ([]*domain.FixedSavingsAccount, error) {
	query := `
		SELECT ` + fixedSavingsColumns + `
		FROM fixed_savings
		WHERE status != $1 AND payback_date <= $2
		ORDER BY number
	`
	return r.list(ctx, query, string(domain.FixedSavingsPaidOut), asOf)
}

// ListByOwner returns all of the owner's contracts, newest first
func (r *fixedSavingsRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.FixedSavingsAccount, error) {
	query := `
		SELECT ` + fixedSavingsColumns + `
		FROM fixed_savings
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, ownerID)
}

func (r *fixedSavingsRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.FixedSavingsAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixed savings: %w", err)
	}
	defer rows.Close()

	var out []*domain.FixedSavingsAccount
	for rows.Next() {
		fs, err := scanFixedSavings(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fixed savings: %w", err)
		}
		out = append(out, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fixed savings: %w", err)
	}
	return out, nil
}

func lockFixedSavings(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.FixedSavingsAccount, error) {
	query := `SELECT ` + fixedSavingsColumns + ` FROM fixed_savings WHERE id = $1 FOR UPDATE`
	fs, err := scanFixedSavings(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: fixed savings %s", domain.ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("failed to lock fixed savings: %w", err)
	}
	return fs, nil
}

func insertFixedSavings(ctx context.Context, tx *sql.Tx, fs *domain.FixedSavingsAccount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fixed_savings (
			id, owner_id, number, amount, currency, source, purpose,
			purpose_description, start_date, payback_date, interest_rate,
			maturity_amount, total_interest_earned, status,
			auto_renewal_enabled, renewed, renewed_gen, created_at,
			updated_at, matured_at, paid_out_at, renewed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, fixedSavingsArgs(fs)...)
	if err != nil {
		return fmt.Errorf("failed to insert fixed savings: %w", err)
	}
	return nil
}

func updateFixedSavings(ctx context.Context, tx *sql.Tx, fs *domain.FixedSavingsAccount) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE fixed_savings
		SET status = $1, renewed = $2, updated_at = $3,
		    matured_at = $4, paid_out_at = $5, renewed_at = $6
		WHERE id = $7
	`,
		string(fs.Status),
		fs.Renewed,
		fs.UpdatedAt,
		nullTime(fs.MaturedAt),
		nullTime(fs.PaidOutAt),
		nullTime(fs.RenewedAt),
		fs.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fixed savings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: fixed savings %s", domain.ErrAccountNotFound, fs.ID)
	}
	return nil
}

func fixedSavingsArgs(fs *domain.FixedSavingsAccount) []interface{} {
	return []interface{}{
		fs.ID,
		fs.OwnerID,
		fs.Number,
		fs.Amount.Amount.String(),
		fs.Amount.Currency,
		string(fs.Source),
		fs.Purpose,
		fs.PurposeDescription,
		fs.StartDate,
		fs.PaybackDate,
		fs.InterestRate.String(),
		fs.MaturityAmount.Amount.String(),
		fs.TotalInterestEarned.Amount.String(),
		string(fs.Status),
		fs.AutoRenewalEnabled,
		fs.Renewed,
		fs.RenewedGen,
		fs.CreatedAt,
		fs.UpdatedAt,
		nullTime(fs.MaturedAt),
		nullTime(fs.PaidOutAt),
		nullTime(fs.RenewedAt),
	}
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func scanFixedSavings(row scanner) (*domain.FixedSavingsAccount, error) {
	var (
		fs          domain.FixedSavingsAccount
		amountStr   string
		currency    string
		rateStr     string
		maturityStr string
		interestStr string
		maturedAt   sql.NullTime
		paidOutAt   sql.NullTime
		renewedAt   sql.NullTime
	)

	err := row.Scan(
		&fs.ID,
		&fs.OwnerID,
		&fs.Number,
		&amountStr,
		&currency,
		&fs.Source,
		&fs.Purpose,
		&fs.PurposeDescription,
		&fs.StartDate,
		&fs.PaybackDate,
		&rateStr,
		&maturityStr,
		&interestStr,
		&fs.Status,
		&fs.AutoRenewalEnabled,
		&fs.Renewed,
		&fs.RenewedGen,
		&fs.CreatedAt,
		&fs.UpdatedAt,
		&maturedAt,
		&paidOutAt,
		&renewedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	fs.Amount = domain.NewMoney(amount, currency)

	if fs.InterestRate, err = decimal.NewFromString(rateStr); err != nil {
		return nil, fmt.Errorf("failed to parse interest_rate: %w", err)
	}
	maturity, err := decimal.NewFromString(maturityStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse maturity_amount: %w", err)
	}
	fs.MaturityAmount = domain.NewMoney(maturity, currency)

	interest, err := decimal.NewFromString(interestStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_interest_earned: %w", err)
	}
	fs.TotalInterestEarned = domain.NewMoney(interest, currency)

	if maturedAt.Valid {
		t := maturedAt.Time
		fs.MaturedAt = &t
	}
	if paidOutAt.Valid {
		t := paidOutAt.Time
		fs.PaidOutAt = &t
	}
	if renewedAt.Valid {
		t := renewedAt.Time
		fs.RenewedAt = &t
	}
	return &fs, nil
}
