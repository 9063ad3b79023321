package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lukewarren/ledgerflow/internal/model"
	"github.com/lukewarren/ledgerflow/internal/service"
)

// Engine applies rule lists to transactions. It holds no rule state of
// its own: callers pass the rules on every call, which keeps the
// engine trivially testable and free of cache-invalidation concerns.
type Engine struct {
	store     service.Storage
	evaluator *Evaluator
	executor  *ActionExecutor
}

// NewEngine creates a rule engine backed by the given store.
func NewEngine(store service.Storage) *Engine {
	return &Engine{
		store:     store,
		evaluator: NewEvaluator(),
		executor:  NewActionExecutor(store),
	}
}

// RuleOutcome records what a single rule did to a transaction.
type RuleOutcome struct {
	Execution *ExecutionResult // nil when the rule did not match
	RuleName  string
	RuleID    int64
	Matched   bool
}

// TransactionResult aggregates the outcome of one engine pass over one
// transaction.
type TransactionResult struct {
	TransactionID string
	Outcomes      []RuleOutcome
	StoppedEarly  bool
}

// Matched reports whether any rule matched the transaction.
func (r *TransactionResult) Matched() bool {
	for _, outcome := range r.Outcomes {
		if outcome.Matched {
			return true
		}
	}
	return false
}

// Failed reports whether any matching rule's action batch failed.
func (r *TransactionResult) Failed() bool {
	for _, outcome := range r.Outcomes {
		if outcome.Matched && outcome.Execution != nil && !outcome.Execution.Applied {
			return true
		}
	}
	return false
}

// FailureReason returns a description of the first action failure.
func (r *TransactionResult) FailureReason() string {
	for _, outcome := range r.Outcomes {
		if outcome.Matched && outcome.Execution != nil {
			if err := outcome.Execution.FirstError(); err != nil {
				return fmt.Sprintf("rule %q: %v", outcome.RuleName, err)
			}
		}
	}
	return ""
}

// EvaluateTriggerGroup evaluates a trigger group against a transaction
// without mutating anything. Used by rule editors for live
// "N transactions match" previews.
func (e *Engine) EvaluateTriggerGroup(group model.TriggerGroup, txn *model.Transaction) bool {
	return e.evaluator.EvaluateGroup(group, txn)
}

// ApplyRules runs the rule list against one transaction: active rules
// in ascending priority order, each matching rule's actions applied
// atomically, scan halted after a match when the rule's stop-processing
// flag is set (regardless of whether its actions succeeded).
//
// Store failures abort processing of this transaction and are returned
// alongside the partial result; validation and missing-reference
// failures stay inside the per-rule execution results.
func (e *Engine) ApplyRules(ctx context.Context, ruleList []model.Rule, txn *model.Transaction) (*TransactionResult, error) {
	active := make([]model.Rule, 0, len(ruleList))
	for _, rule := range ruleList {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})

	result := &TransactionResult{TransactionID: txn.ID}

	for _, rule := range active {
		if rule.Triggers == nil {
			// Data-integrity problem; the editor should prevent it.
			// Treat the rule as matching nothing rather than crashing.
			slog.Warn("rule has no trigger group, skipping",
				"rule_id", rule.ID, "rule_name", rule.Name)
			result.Outcomes = append(result.Outcomes, RuleOutcome{
				RuleID: rule.ID, RuleName: rule.Name,
			})
			continue
		}

		matched := e.evaluator.EvaluateGroup(*rule.Triggers, txn)
		outcome := RuleOutcome{RuleID: rule.ID, RuleName: rule.Name, Matched: matched}

		if matched {
			execution, err := e.executor.Execute(ctx, rule.Actions, txn)
			outcome.Execution = execution
			result.Outcomes = append(result.Outcomes, outcome)
			if err != nil {
				return result, err
			}

			if execution.Applied {
				if countErr := e.store.IncrementRuleMatchCount(ctx, rule.ID); countErr != nil {
					slog.Warn("failed to persist rule match count",
						"rule_id", rule.ID, "error", countErr)
				}
			}

			slog.Debug("rule matched",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"transaction_id", txn.ID,
				"applied", execution.Applied,
				"stop_processing", rule.StopProcessing)

			if rule.StopProcessing {
				result.StoppedEarly = true
				break
			}
			continue
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, nil
}
