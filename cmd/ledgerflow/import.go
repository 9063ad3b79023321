package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lukewarren/ledgerflow/internal/cli"
	"github.com/lukewarren/ledgerflow/internal/common"
	"github.com/lukewarren/ledgerflow/internal/importer"
	"github.com/lukewarren/ledgerflow/internal/model"
	"github.com/lukewarren/ledgerflow/internal/rules"
	"github.com/lukewarren/ledgerflow/internal/service"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import transactions from a CSV or OFX/QFX file",
		Long: `Import bank transactions into the local database. The format is
detected from the file extension. Duplicate transactions (same date,
amount, counterparty, and account) are skipped.

Unless --no-rules is given, all active rules run over the imported
transactions afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("account", "", "account name to assign CSV transactions to")
	cmd.Flags().Bool("no-rules", false, "skip running active rules after import")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	file, err := os.Open(path) // #nosec G304 -- user-supplied import path
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	account, _ := cmd.Flags().GetString("account")

	transactions, err := parseImportFile(ctx, path, file, account)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("could not import %s", path), err)
	}

	if err := store.SaveTransactions(ctx, transactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	fmt.Println(cli.SuccessStyle.Render(
		fmt.Sprintf("Imported %d transactions from %s", len(transactions), filepath.Base(path))))

	if noRules, _ := cmd.Flags().GetBool("no-rules"); noRules {
		return nil
	}
	return runActiveRulesAfterImport(ctx, store)
}

func parseImportFile(ctx context.Context, path string, file io.Reader, account string) ([]model.Transaction, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return importer.NewCSVImporter(account).ParseFile(ctx, file)
	case ".ofx", ".qfx":
		return importer.NewOFXImporter().ParseFile(ctx, file)
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// runActiveRulesAfterImport applies every active rule across the whole
// store, the import-time auto-categorization pass.
func runActiveRulesAfterImport(ctx context.Context, store service.Storage) error {
	ruleList, err := store.GetActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	if len(ruleList) == 0 {
		return nil
	}

	engine := rules.NewEngine(store)
	runner := rules.NewBulkRunner(store, engine)

	total, err := store.CountTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return fmt.Errorf("failed to count transactions: %w", err)
	}

	progress := cli.NewRunProgress(os.Stdout, total, "Applying rules...")
	summary, err := runner.Run(ctx, ruleList, service.TransactionFilter{}, progress.Update)
	progress.Finish()
	if err != nil {
		return fmt.Errorf("rule run failed: %w", err)
	}

	cli.Summarize(os.Stdout, summary)
	return nil
}
