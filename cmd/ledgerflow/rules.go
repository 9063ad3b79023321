package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lukewarren/ledgerflow/internal/cli"
	"github.com/lukewarren/ledgerflow/internal/model"
	"github.com/lukewarren/ledgerflow/internal/rules"
	"github.com/lukewarren/ledgerflow/internal/service"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage and run categorization rules",
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(testRuleCmd())
	cmd.AddCommand(applyRuleCmd())
	cmd.AddCommand(runRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleList, err := store.GetRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(ruleList) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No rules defined."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "ID\tPriority\tName\tActive\tStop\tMatches\n")
			for _, rule := range ruleList {
				fmt.Fprintf(w, "%d\t%d\t%s\t%v\t%v\t%d\n",
					rule.ID, rule.Priority, rule.Name,
					rule.IsActive, rule.StopProcessing, rule.MatchCount)
			}
			return nil
		},
	}
}

func testRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <rule-id>",
		Short: "Preview how many transactions a rule matches",
		Long: `Evaluate a rule's triggers over the transaction set without
applying any actions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rule, store, err := loadRule(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter, err := scopeFilter(cmd)
			if err != nil {
				return err
			}

			engine := rules.NewEngine(store)
			runner := rules.NewBulkRunner(store, engine)
			matched, err := runner.CountMatches(ctx, *rule.Triggers, filter)
			if err != nil {
				return fmt.Errorf("preview failed: %w", err)
			}

			total, err := store.CountTransactions(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to count transactions: %w", err)
			}

			fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Rule %q", rule.Name)))
			fmt.Printf("%d of %d transactions match\n", matched, total)
			return nil
		},
	}

	addScopeFlags(cmd)
	return cmd
}

func applyRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <rule-id>",
		Short: "Apply a single rule to the transaction set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rule, store, err := loadRule(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter, err := scopeFilter(cmd)
			if err != nil {
				return err
			}

			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				return previewRules(ctx, store, []model.Rule{*rule}, filter)
			}

			return runBulk(ctx, store, []model.Rule{*rule}, filter,
				fmt.Sprintf("Applying %q...", rule.Name))
		},
	}

	addScopeFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "report what would match without applying actions")
	return cmd
}

func runRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all active rules over the transaction set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ruleList, err := store.GetActiveRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to load rules: %w", err)
			}
			if len(ruleList) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No active rules."))
				return nil
			}

			filter, err := scopeFilter(cmd)
			if err != nil {
				return err
			}

			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				return previewRules(ctx, store, ruleList, filter)
			}

			return runBulk(ctx, store, ruleList, filter, "Running rules...")
		},
	}

	addScopeFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "report what would match without applying actions")
	return cmd
}

// previewRules reports per-rule match counts without mutating anything.
func previewRules(ctx context.Context, store service.Storage, ruleList []model.Rule, filter service.TransactionFilter) error {
	engine := rules.NewEngine(store)
	runner := rules.NewBulkRunner(store, engine)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintf(w, "Rule\tWould match\n")
	for _, rule := range ruleList {
		if rule.Triggers == nil {
			fmt.Fprintf(w, "%s\t(no trigger group)\n", rule.Name)
			continue
		}
		matched, err := runner.CountMatches(ctx, *rule.Triggers, filter)
		if err != nil {
			return fmt.Errorf("preview failed for rule %q: %w", rule.Name, err)
		}
		fmt.Fprintf(w, "%s\t%d\n", rule.Name, matched)
	}
	return nil
}

func loadRule(ctx context.Context, arg string) (*model.Rule, service.Storage, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid rule id %q", arg)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	rule, err := store.GetRule(ctx, id)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to load rule: %w", err)
	}
	if rule == nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("rule %d not found", id)
	}
	return rule, store, nil
}

func runBulk(ctx context.Context, store service.Storage, ruleList []model.Rule, filter service.TransactionFilter, description string) error {
	total, err := store.CountTransactions(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to count transactions: %w", err)
	}

	engine := rules.NewEngine(store)
	runner := rules.NewBulkRunner(store, engine)

	progress := cli.NewRunProgress(os.Stdout, total, description)
	summary, err := runner.Run(ctx, ruleList, filter, progress.Update)
	progress.Finish()
	if err != nil {
		return fmt.Errorf("rule run failed: %w", err)
	}

	cli.Summarize(os.Stdout, summary)
	return nil
}
