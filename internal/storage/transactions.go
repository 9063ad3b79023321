package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lukewarren/ledgerflow/internal/model"
	"github.com/lukewarren/ledgerflow/internal/service"
)

const transactionColumns = `id, hash, date, description, counterparty, display_name,
	account_id, dest_account_id, account_iban, category_override, auto_category,
	notes, amount, type`

// SaveTransactions saves multiple transactions to the database,
// skipping duplicates by hash.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveTransactions(ctx, tx, transactions); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveTransactions(ctx context.Context, db dbtx, transactions []model.Transaction) error {
	query := `
		INSERT OR IGNORE INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i := range transactions {
		txn := &transactions[i]
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		if txn.Type == "" {
			txn.Type = model.TypeUnknown
		}

		if _, err := db.ExecContext(ctx, query,
			txn.ID, txn.Hash, txn.Date, txn.Description, txn.Counterparty,
			txn.DisplayName, txn.AccountID, txn.DestAccountID, txn.AccountIBAN,
			txn.CategoryOverride, txn.AutoCategory, txn.Notes,
			txn.Amount.String(), string(txn.Type),
		); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	slog.Debug("saved transactions", "count", len(transactions))
	return nil
}

// GetTransactionByID returns a single transaction, or nil if absent.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionByID(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionByID(ctx context.Context, db dbtx, id string) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	txn, err := scanTransaction(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions returns transactions matching the filter, ordered by
// date then id so offset pagination is stable.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactions(ctx, s.db, filter)
}

func (s *SQLiteStorage) getTransactions(ctx context.Context, db dbtx, filter service.TransactionFilter) ([]model.Transaction, error) {
	where, args := buildTransactionFilter(filter)

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY date, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// CountTransactions returns the number of transactions the filter
// selects, ignoring limit and offset.
func (s *SQLiteStorage) CountTransactions(ctx context.Context, filter service.TransactionFilter) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.countTransactions(ctx, s.db, filter)
}

func (s *SQLiteStorage) countTransactions(ctx context.Context, db dbtx, filter service.TransactionFilter) (int, error) {
	where, args := buildTransactionFilter(filter)

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// UpdateTransaction persists the mutable fields of a transaction.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.updateTransaction(ctx, s.db, txn)
}

func (s *SQLiteStorage) updateTransaction(ctx context.Context, db dbtx, txn *model.Transaction) error {
	query := `
		UPDATE transactions
		SET description = ?, counterparty = ?, display_name = ?,
			account_id = ?, dest_account_id = ?, account_iban = ?,
			category_override = ?, auto_category = ?, notes = ?,
			amount = ?, type = ?
		WHERE id = ?`

	result, err := db.ExecContext(ctx, query,
		txn.Description, txn.Counterparty, txn.DisplayName,
		txn.AccountID, txn.DestAccountID, txn.AccountIBAN,
		txn.CategoryOverride, txn.AutoCategory, txn.Notes,
		txn.Amount.String(), string(txn.Type), txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s does not exist", ErrInvalidTransaction, txn.ID)
	}
	return nil
}

func buildTransactionFilter(filter service.TransactionFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.StartDate != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.AccountID != "" {
		clauses = append(clauses, "account_id = ?")
		args = append(args, filter.AccountID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var txn model.Transaction
	var amount string
	var txnType string
	var counterparty, displayName, accountID, destAccountID sql.NullString
	var accountIBAN, categoryOverride, autoCategory, notes sql.NullString

	if err := row.Scan(
		&txn.ID, &txn.Hash, &txn.Date, &txn.Description, &counterparty,
		&displayName, &accountID, &destAccountID, &accountIBAN,
		&categoryOverride, &autoCategory, &notes, &amount, &txnType,
	); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}

	txn.Amount = parsed
	txn.Type = model.TransactionType(txnType)
	txn.Counterparty = counterparty.String
	txn.DisplayName = displayName.String
	txn.AccountID = accountID.String
	txn.DestAccountID = destAccountID.String
	txn.AccountIBAN = accountIBAN.String
	txn.CategoryOverride = categoryOverride.String
	txn.AutoCategory = autoCategory.String
	txn.Notes = notes.String
	return &txn, nil
}
