package rules

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/lukewarren/ledgerflow/internal/model"
	"github.com/lukewarren/ledgerflow/internal/service"
)

// ActionExecutor applies a rule's ordered action list to a transaction.
//
// Application is atomic per transaction: actions mutate an in-memory
// working copy, and the copy is only persisted (inside one store
// transaction) if every action succeeded. A failure anywhere in the
// list leaves the stored transaction untouched. Actions are often
// causally dependent ("set account" then "convert to transfer"), so a
// broken first step must never let a later one apply against stale
// state.
type ActionExecutor struct {
	store service.Storage
}

// NewActionExecutor creates an executor backed by the given store.
func NewActionExecutor(store service.Storage) *ActionExecutor {
	return &ActionExecutor{store: store}
}

// ActionOutcome records the result of one action in the list. Actions
// after the first failure are not attempted.
type ActionOutcome struct {
	Err    error
	Action model.RuleAction
}

// ExecutionResult aggregates per-action outcomes for one transaction.
type ExecutionResult struct {
	Outcomes     []ActionOutcome
	SuccessCount int
	FailureCount int
	Applied      bool
}

// FirstError returns the error that failed the batch, if any.
func (r *ExecutionResult) FirstError() error {
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			return outcome.Err
		}
	}
	return nil
}

// Execute applies the action list to the transaction. On success the
// transaction argument reflects the applied mutations. Validation and
// missing-reference failures are reported in the result; only store
// failures are returned as errors.
func (x *ActionExecutor) Execute(ctx context.Context, actions []model.RuleAction, txn *model.Transaction) (*ExecutionResult, error) {
	result := &ExecutionResult{}
	if len(actions) == 0 {
		result.Applied = true
		return result, nil
	}

	tx, err := x.store.BeginTx(ctx)
	if err != nil {
		return nil, &StoreError{Op: "begin transaction", Err: err}
	}

	working := txn.Clone()
	for _, action := range actions {
		applyErr := x.apply(ctx, tx, action, &working)
		result.Outcomes = append(result.Outcomes, ActionOutcome{Action: action, Err: applyErr})
		if applyErr != nil {
			result.FailureCount++
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Warn("rollback failed after action error", "error", rbErr)
			}
			var storeErr *StoreError
			if errors.As(applyErr, &storeErr) {
				return result, applyErr
			}
			return result, nil
		}
		result.SuccessCount++
	}

	if err := tx.UpdateTransaction(ctx, &working); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("rollback failed after update error", "error", rbErr)
		}
		return result, &StoreError{Op: "update transaction", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return result, &StoreError{Op: "commit", Err: err}
	}

	*txn = working
	result.Applied = true
	return result, nil
}

// apply performs one action against the working copy. Store lookups go
// through the open transaction so the whole batch shares one unit of
// work.
func (x *ActionExecutor) apply(ctx context.Context, store service.Storage, action model.RuleAction, working *model.Transaction) error {
	value := strings.TrimSpace(action.Value)
	if action.Type.RequiresValue() && value == "" {
		return &ValidationError{Action: action.Type, Reason: "value must not be empty"}
	}

	switch action.Type {
	case model.ActionSetCategory:
		category, err := store.GetOrCreateCategory(ctx, value)
		if err != nil {
			return &StoreError{Op: "get or create category", Err: err}
		}
		working.CategoryOverride = category.Name

	case model.ActionClearCategory:
		working.CategoryOverride = ""

	case model.ActionSetDescription:
		working.Description = value

	case model.ActionSetNotes:
		working.Notes = value

	case model.ActionAppendNotes:
		working.Notes = model.AppendNoteSegment(working.Notes, value)

	case model.ActionAddTag:
		if !model.HasTag(working.Notes, value) {
			working.Notes = model.AppendNoteSegment(working.Notes, value)
		}

	case model.ActionRemoveTag:
		kept := make([]string, 0)
		for _, tag := range model.ParseTags(working.Notes) {
			if !strings.EqualFold(tag, value) {
				kept = append(kept, tag)
			}
		}
		working.Notes = model.JoinTags(kept)

	case model.ActionClearTags:
		working.Notes = ""

	case model.ActionSetCounterparty:
		// The user-provided value is canonical: both the raw name and
		// the standardized display name take it.
		working.Counterparty = value
		working.DisplayName = value

	case model.ActionSetSourceAccount:
		account, err := x.lookupAccount(ctx, store, value)
		if err != nil {
			return err
		}
		working.AccountID = account.Name
		working.AccountIBAN = account.IBAN

	case model.ActionSetDestinationAccount:
		account, err := x.lookupAccount(ctx, store, value)
		if err != nil {
			return err
		}
		working.DestAccountID = account.Name

	case model.ActionConvertToDeposit:
		working.Type = model.TypeIncome
		working.Amount = working.Amount.Abs()

	case model.ActionConvertToWithdrawal:
		working.Type = model.TypeExpense
		working.Amount = working.Amount.Abs().Neg()

	case model.ActionConvertToTransfer:
		// Transfers keep their recorded sign; either convention occurs.
		working.Type = model.TypeTransfer

	case model.ActionDeleteTransaction:
		// Soft delete: annotate rather than remove, preserving audit
		// history. Hard deletion is a store-level concern.
		if !strings.Contains(working.Notes, model.DeletedMarker) {
			working.Notes = model.AppendNoteSegment(working.Notes, model.DeletedMarker)
		}

	case model.ActionSetExternalID:
		working.Notes = model.AppendNoteSegment(working.Notes, model.ExternalIDMarker+value)

	case model.ActionSetInternalReference:
		working.Notes = model.AppendNoteSegment(working.Notes, model.InternalReferenceMarker+value)

	default:
		return &ValidationError{Action: action.Type, Reason: "unknown action type"}
	}

	return nil
}

// lookupAccount resolves an account by name. Unlike categories,
// accounts are never fabricated: account identity is too important to
// create silently, so a missing account fails the batch.
func (x *ActionExecutor) lookupAccount(ctx context.Context, store service.Storage, name string) (*model.Account, error) {
	account, err := store.GetAccountByName(ctx, name)
	if err != nil {
		return nil, &StoreError{Op: "get account", Err: err}
	}
	if account == nil {
		return nil, &ReferenceNotFoundError{Kind: "account", Name: name}
	}
	return account, nil
}
