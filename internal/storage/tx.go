package storage

import (
	"context"
	"database/sql"

	"github.com/lukewarren/ledgerflow/internal/model"
	"github.com/lukewarren/ledgerflow/internal/service"
)

// sqliteTransaction wraps sql.Tx to implement service.Transaction. All
// reads and writes go through the open sql.Tx: the connection pool is
// capped at one connection, so touching the pool while a transaction
// holds it would deadlock.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}
	return t.storage.saveTransactions(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransactionByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransactions(ctx, t.tx, filter)
}

func (t *sqliteTransaction) CountTransactions(ctx context.Context, filter service.TransactionFilter) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.countTransactions(ctx, t.tx, filter)
}

func (t *sqliteTransaction) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return t.storage.updateTransaction(ctx, t.tx, txn)
}

func (t *sqliteTransaction) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCategories(ctx, t.tx)
}

func (t *sqliteTransaction) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCategoryByName(ctx, t.tx, name)
}

func (t *sqliteTransaction) GetOrCreateCategory(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getOrCreateCategory(ctx, t.tx, name)
}

func (t *sqliteTransaction) GetAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getAccounts(ctx, t.tx)
}

func (t *sqliteTransaction) GetAccountByName(ctx context.Context, name string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getAccountByName(ctx, t.tx, name)
}

func (t *sqliteTransaction) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.createAccount(ctx, t.tx, account)
}

func (t *sqliteTransaction) SaveRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.saveRule(ctx, t.tx, rule)
}

func (t *sqliteTransaction) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getRule(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getRules(ctx, t.tx, false)
}

func (t *sqliteTransaction) GetActiveRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getRules(ctx, t.tx, true)
}

func (t *sqliteTransaction) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deleteRule(ctx, t.tx, id)
}

func (t *sqliteTransaction) IncrementRuleMatchCount(ctx context.Context, ruleID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.incrementRuleMatchCount(ctx, t.tx, ruleID)
}

func (t *sqliteTransaction) SaveRuleGroup(ctx context.Context, group *model.RuleGroup) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.saveRuleGroup(ctx, t.tx, group)
}

func (t *sqliteTransaction) GetRuleGroups(ctx context.Context) ([]model.RuleGroup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getRuleGroups(ctx, t.tx)
}

func (t *sqliteTransaction) DeleteRuleGroup(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deleteRuleGroup(ctx, t.tx, id)
}

// Migrate is not supported inside an open transaction.
func (t *sqliteTransaction) Migrate(_ context.Context) error {
	return ErrMigrateInTransaction
}

// BeginTx is not supported inside an open transaction; SQLite does not
// nest transactions.
func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, ErrNestedTransaction
}

// Close is a no-op inside a transaction.
func (t *sqliteTransaction) Close() error {
	return nil
}
