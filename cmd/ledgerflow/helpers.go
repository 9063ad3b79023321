package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lukewarren/ledgerflow/internal/config"
	"github.com/lukewarren/ledgerflow/internal/service"
	"github.com/lukewarren/ledgerflow/internal/storage"
)

// initStorage initializes the storage service with proper path
// expansion and auto-migration.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	} else {
		dbPath = config.ExpandPath(dbPath)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// addScopeFlags registers the transaction-scoping flags shared by the
// rules subcommands.
func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "only transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "only transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().String("account", "", "only transactions for this account")
}

// scopeFilter builds a transaction filter from the scoping flags.
func scopeFilter(cmd *cobra.Command) (service.TransactionFilter, error) {
	var filter service.TransactionFilter

	if from, _ := cmd.Flags().GetString("from"); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, fmt.Errorf("invalid --from date %q: %w", from, err)
		}
		filter.StartDate = &parsed
	}
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, fmt.Errorf("invalid --to date %q: %w", to, err)
		}
		filter.EndDate = &parsed
	}
	filter.AccountID, _ = cmd.Flags().GetString("account")

	return filter, nil
}
