package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lukewarren/ledgerflow/internal/model"
)

// GetAccounts returns all active accounts.
func (s *SQLiteStorage) GetAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAccounts(ctx, s.db)
}

func (s *SQLiteStorage) getAccounts(ctx context.Context, db dbtx) ([]model.Account, error) {
	query := `
		SELECT id, name, iban, created_at, is_active
		FROM accounts
		WHERE is_active = 1
		ORDER BY name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// GetAccountByName returns an account by its name, or nil if absent.
// Accounts are never created implicitly; callers that require one to
// exist treat nil as a missing-reference failure.
func (s *SQLiteStorage) GetAccountByName(ctx context.Context, name string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getAccountByName(ctx, s.db, name)
}

func (s *SQLiteStorage) getAccountByName(ctx context.Context, db dbtx, name string) (*model.Account, error) {
	query := `
		SELECT id, name, iban, created_at, is_active
		FROM accounts
		WHERE name = ? AND is_active = 1`

	account, err := scanAccount(db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	return account, nil
}

// CreateAccount creates a new account.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	return s.createAccount(ctx, s.db, account)
}

func (s *SQLiteStorage) createAccount(ctx context.Context, db dbtx, account *model.Account) error {
	if err := validateAccount(account); err != nil {
		return err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO accounts (name, iban, is_active) VALUES (?, ?, 1)`,
		account.Name, account.IBAN)
	if err != nil {
		return fmt.Errorf("failed to create account %q: %w", account.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get account ID: %w", err)
	}

	account.ID = id
	account.IsActive = true
	account.CreatedAt = time.Now()
	return nil
}

func scanAccount(row scanner) (*model.Account, error) {
	var account model.Account
	var iban sql.NullString

	if err := row.Scan(&account.ID, &account.Name, &iban, &account.CreatedAt, &account.IsActive); err != nil {
		return nil, err
	}
	account.IBAN = iban.String
	return &account, nil
}
