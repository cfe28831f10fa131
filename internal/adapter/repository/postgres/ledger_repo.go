package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xybank/savings-core/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository. Every Apply runs
// inside one transaction with the account row locked, so the mutation
// closure always sees the committed balance and concurrent writers
// serialize instead of clobbering each other.
type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

// Apply locks the account row, runs the mutation against the locked state,
// and commits the balance update together with the new ledger entry.
func (r *ledgerRepository) Apply(ctx context.Context, accountID uuid.UUID, mutate domain.LedgerMutation) (*domain.LedgerEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := applyLocked(ctx, tx, accountID, mutate)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ledger apply: %w", err)
	}
	return entry, nil
}

// ApplyPair applies two mutations in one transaction. Rows are locked in
// UUID order regardless of argument order, so two concurrent transfers
// between the same accounts cannot deadlock.
func (r *ledgerRepository) ApplyPair(ctx context.Context, firstID, secondID uuid.UUID, mutateFirst, mutateSecond domain.LedgerMutation) (*domain.LedgerEntry, *domain.LedgerEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lockFirst, lockSecond := firstID, secondID
	if lockSecond.String() < lockFirst.String() {
		lockFirst, lockSecond = lockSecond, lockFirst
	}
	if _, err := lockAccount(ctx, tx, lockFirst); err != nil {
		return nil, nil, err
	}
	if _, err := lockAccount(ctx, tx, lockSecond); err != nil {
		return nil, nil, err
	}

	firstEntry, err := applyLocked(ctx, tx, firstID, mutateFirst)
	if err != nil {
		return nil, nil, err
	}
	secondEntry, err := applyLocked(ctx, tx, secondID, mutateSecond)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit ledger pair: %w", err)
	}
	return firstEntry, secondEntry, nil
}

// MarkInterestCredited stamps the account's last interest credit time
func (r *ledgerRepository) MarkInterestCredited(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_interest_credit = $1, updated_at = $1 WHERE id = $2`,
		at, accountID)
	if err != nil {
		return fmt.Errorf("failed to stamp interest credit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check stamp result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
	}
	return nil
}

// ReferenceExists reports whether a ledger entry with the reference exists
func (r *ledgerRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE reference = $1)`,
		reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return exists, nil
}

// ListByAccount returns the account's entries, newest first. A limit of 0
// means no limit.
func (r *ledgerRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	query := `
		SELECT id, account_id, account_type, entry_type, amount,
		       balance_before, balance_after, currency, reference,
		       description, metadata, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

// lockAccount selects the account row FOR UPDATE and returns its state.
func lockAccount(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	account, err := scanAccount(tx.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return account, nil
}

// applyLocked runs a mutation against the row-locked account state and
// persists the balance update and ledger entry. Caller owns the transaction.
func applyLocked(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, mutate domain.LedgerMutation) (*domain.LedgerEntry, error) {
	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	entry, err := mutate(account)
	if err != nil {
		return nil, err
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	totalInterest := account.TotalInterestEarned
	if entry.Type == domain.EntryTypeInterestCredit {
		if totalInterest, err = totalInterest.Add(entry.Amount); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, total_interest_earned = $2, updated_at = $3 WHERE id = $4`,
		entry.BalanceAfter.Amount.String(),
		totalInterest.Amount.String(),
		entry.CreatedAt,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to update account balance: %w", err)
	}

	if err := insertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	var metadata interface{}
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode entry metadata: %w", err)
		}
		metadata = raw
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, account_id, account_type, entry_type, amount,
			balance_before, balance_after, currency, reference,
			description, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		entry.ID,
		entry.AccountID,
		string(entry.AccountType),
		string(entry.Type),
		entry.Amount.Amount.String(),
		entry.BalanceBefore.Amount.String(),
		entry.BalanceAfter.Amount.String(),
		entry.Amount.Currency,
		entry.Reference,
		entry.Description,
		metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func scanEntry(row scanner) (*domain.LedgerEntry, error) {
	var (
		entry     domain.LedgerEntry
		amountStr string
		beforeStr string
		afterStr  string
		currency  string
		metadata  []byte
	)

	err := row.Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.AccountType,
		&entry.Type,
		&amountStr,
		&beforeStr,
		&afterStr,
		&currency,
		&entry.Reference,
		&entry.Description,
		&metadata,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	before, err := decimal.NewFromString(beforeStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance_before: %w", err)
	}
	after, err := decimal.NewFromString(afterStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance_after: %w", err)
	}
	entry.Amount = domain.NewMoney(amount, currency)
	entry.BalanceBefore = domain.NewMoney(before, currency)
	entry.BalanceAfter = domain.NewMoney(after, currency)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode entry metadata: %w", err)
		}
	}
	return &entry, nil
}
