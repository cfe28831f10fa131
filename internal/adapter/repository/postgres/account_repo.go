package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xybank/savings-core/internal/domain"
)

const accountColumns = `
	id, owner_id, number, type, balance, currency, is_active,
	savings_percentage, min_spend_amount, withdrawal_destination,
	total_interest_earned, last_interest_credit, created_at, updated_at
`

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return account, nil
}

// GetByOwnerAndType retrieves the owner's account of the given product type
func (r *accountRepository) GetByOwnerAndType(ctx context.Context, ownerID uuid.UUID, accountType domain.AccountType) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 AND type = $2`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, ownerID, string(accountType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: owner %s type %s", domain.ErrAccountNotFound, ownerID, accountType)
		}
		return nil, fmt.Errorf("failed to get account by owner and type: %w", err)
	}
	return account, nil
}

// Create inserts a new account
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (
			id, owner_id, number, type, balance, currency, is_active,
			savings_percentage, min_spend_amount, withdrawal_destination,
			total_interest_earned, last_interest_credit, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	var lastCredit interface{}
	if account.LastInterestCredit != nil {
		lastCredit = *account.LastInterestCredit
	}

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.OwnerID,
		account.Number,
		string(account.Type),
		account.Balance.Amount.String(),
		account.Balance.Currency,
		account.IsActive,
		account.SavingsPercentage.String(),
		account.MinSpendAmount.Amount.String(),
		string(account.WithdrawalDestination),
		account.TotalInterestEarned.Amount.String(),
		lastCredit,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// ListActiveWithBalance returns all active accounts of the given type holding
// a positive balance, ordered by account number for deterministic batches
func (r *accountRepository) ListActiveWithBalance(ctx context.Context, accountType domain.AccountType) ([]*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE type = $1 AND is_active = TRUE AND balance > 0
		ORDER BY number
	`

	rows, err := r.db.QueryContext(ctx, query, string(accountType))
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner) (*domain.Account, error) {
	var (
		account          domain.Account
		balanceStr       string
		currency         string
		savingsPctStr    string
		minSpendStr      string
		withdrawDest     sql.NullString
		totalInterestStr string
		lastCredit       sql.NullTime
	)

	err := row.Scan(
		&account.ID,
		&account.OwnerID,
		&account.Number,
		&account.Type,
		&balanceStr,
		&currency,
		&account.IsActive,
		&savingsPctStr,
		&minSpendStr,
		&withdrawDest,
		&totalInterestStr,
		&lastCredit,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	account.Balance = domain.NewMoney(balance, currency)

	if account.SavingsPercentage, err = decimal.NewFromString(savingsPctStr); err != nil {
		return nil, fmt.Errorf("failed to parse savings_percentage: %w", err)
	}
	minSpend, err := decimal.NewFromString(minSpendStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse min_spend_amount: %w", err)
	}
	account.MinSpendAmount = domain.NewMoney(minSpend, currency)

	if withdrawDest.Valid {
		account.WithdrawalDestination = domain.AccountType(withdrawDest.String)
	}

	totalInterest, err := decimal.NewFromString(totalInterestStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_interest_earned: %w", err)
	}
	account.TotalInterestEarned = domain.NewMoney(totalInterest, currency)

	if lastCredit.Valid {
		t := lastCredit.Time
		account.LastInterestCredit = &t
	}
	return &account, nil
}
