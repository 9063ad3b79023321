// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/lukewarren/ledgerflow/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
// Limit and Offset drive chunked iteration during bulk rule runs.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	AccountID string
	Limit     int
	Offset    int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	CountTransactions(ctx context.Context, filter TransactionFilter) (int, error)
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	GetOrCreateCategory(ctx context.Context, name string) (*model.Category, error)

	// Account operations
	GetAccounts(ctx context.Context) ([]model.Account, error)
	GetAccountByName(ctx context.Context, name string) (*model.Account, error)
	CreateAccount(ctx context.Context, account *model.Account) error

	// Rule operations
	SaveRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	GetRules(ctx context.Context) ([]model.Rule, error)
	GetActiveRules(ctx context.Context) ([]model.Rule, error)
	DeleteRule(ctx context.Context, id int64) error
	IncrementRuleMatchCount(ctx context.Context, ruleID int64) error

	// Rule group operations
	SaveRuleGroup(ctx context.Context, group *model.RuleGroup) error
	GetRuleGroups(ctx context.Context) ([]model.RuleGroup, error)
	DeleteRuleGroup(ctx context.Context, id int64) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}
