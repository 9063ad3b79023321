package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lukewarren/ledgerflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext           = errors.New("context cannot be nil")
	ErrEmptyString          = errors.New("string parameter cannot be empty")
	ErrNilParameter         = errors.New("parameter cannot be nil")
	ErrEmptySlice           = errors.New("slice cannot be empty")
	ErrInvalidTransaction   = errors.New("invalid transaction")
	ErrInvalidRule          = errors.New("invalid rule")
	ErrInvalidRuleGroup     = errors.New("invalid rule group")
	ErrInvalidAccount       = errors.New("invalid account")
	ErrMigrateInTransaction = errors.New("cannot migrate inside an open transaction")
	ErrNestedTransaction    = errors.New("transactions cannot be nested")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	return nil
}

// validateRule validates a rule before persistence. A rule must carry
// exactly one root trigger group.
func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if rule.Triggers == nil {
		return fmt.Errorf("%w: missing root trigger group", ErrInvalidRule)
	}
	if err := validateTriggerGroup(rule.Triggers); err != nil {
		return err
	}
	for i, action := range rule.Actions {
		if !action.Type.Valid() {
			return fmt.Errorf("%w: action %d has unknown type %q", ErrInvalidRule, i, action.Type)
		}
	}
	return nil
}

func validateTriggerGroup(group *model.TriggerGroup) error {
	if group.Combinator != model.CombinatorAnd && group.Combinator != model.CombinatorOr {
		return fmt.Errorf("%w: unknown combinator %q", ErrInvalidRule, group.Combinator)
	}
	for i, trigger := range group.Triggers {
		if !trigger.Field.Valid() {
			return fmt.Errorf("%w: trigger %d has unknown field %q", ErrInvalidRule, i, trigger.Field)
		}
		if !trigger.Operator.Valid() {
			return fmt.Errorf("%w: trigger %d has unknown operator %q", ErrInvalidRule, i, trigger.Operator)
		}
	}
	for i := range group.Groups {
		if err := validateTriggerGroup(&group.Groups[i]); err != nil {
			return fmt.Errorf("subgroup %d: %w", i, err)
		}
	}
	return nil
}

// validateRuleGroup validates a rule group before persistence.
func validateRuleGroup(group *model.RuleGroup) error {
	if group == nil {
		return fmt.Errorf("%w: rule group", ErrNilParameter)
	}
	if strings.TrimSpace(group.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRuleGroup)
	}
	return nil
}

// validateAccount validates an account before persistence.
func validateAccount(account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if strings.TrimSpace(account.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidAccount)
	}
	return nil
}
