package rules

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukewarren/ledgerflow/internal/model"
	"github.com/lukewarren/ledgerflow/internal/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func seedTransaction(t *testing.T, store *storage.SQLiteStorage, txn model.Transaction) model.Transaction {
	t.Helper()
	require.NoError(t, store.SaveTransactions(context.Background(), []model.Transaction{txn}))
	return txn
}

func storedTransaction(t *testing.T, store *storage.SQLiteStorage, id string) *model.Transaction {
	t.Helper()
	txn, err := store.GetTransactionByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, txn)
	return txn
}

func TestExecuteAppliesAtomically(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:     "txn-1",
		Date:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("-42.00"),
		Type:   model.TypeExpense,
	})

	x := NewActionExecutor(store)
	actions := []model.RuleAction{
		{Type: model.ActionSetCategory, Value: "Dining"},
		{Type: model.ActionAddTag, Value: "coffee"},
	}

	result, err := x.Execute(context.Background(), actions, &txn)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)

	assert.Equal(t, "Dining", txn.CategoryOverride)
	assert.True(t, model.HasTag(txn.Notes, "coffee"))

	stored := storedTransaction(t, store, "txn-1")
	assert.Equal(t, "Dining", stored.CategoryOverride)
	assert.True(t, model.HasTag(stored.Notes, "coffee"))
}

// A failure partway through the list must leave both the stored row and
// the caller's transaction exactly as they were, even though earlier
// actions in the list succeeded.
func TestExecuteRollsBackOnFailure(t *testing.T) {
	store := newTestStore(t)
	original := seedTransaction(t, store, model.Transaction{
		ID:     "txn-1",
		Date:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Notes:  "existing-note",
		Amount: decimal.RequireFromString("-42.00"),
		Type:   model.TypeExpense,
	})

	x := NewActionExecutor(store)
	txn := original
	actions := []model.RuleAction{
		{Type: model.ActionAddTag, Value: "flagged"},
		{Type: model.ActionSetSourceAccount, Value: "Nonexistent Account"},
		{Type: model.ActionSetCategory, Value: "Never Applied"},
	}

	result, err := x.Execute(context.Background(), actions, &txn)
	require.NoError(t, err, "a missing reference is a result, not an error")
	assert.False(t, result.Applied)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Len(t, result.Outcomes, 2, "actions after the failure are not attempted")

	var refErr *ReferenceNotFoundError
	require.ErrorAs(t, result.FirstError(), &refErr)
	assert.Equal(t, "account", refErr.Kind)
	assert.Equal(t, "Nonexistent Account", refErr.Name)

	assert.Equal(t, original.Notes, txn.Notes, "caller's transaction untouched")
	assert.Empty(t, txn.CategoryOverride)

	stored := storedTransaction(t, store, "txn-1")
	assert.Equal(t, "existing-note", stored.Notes, "stored row untouched")
	assert.Empty(t, stored.CategoryOverride)

	category, err := store.GetCategoryByName(context.Background(), "Never Applied")
	require.NoError(t, err)
	assert.Nil(t, category, "later actions never ran")
}

func TestExecuteEmptyActionList(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:   "txn-1",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	result, err := NewActionExecutor(store).Execute(context.Background(), nil, &txn)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Empty(t, result.Outcomes)
}

func TestExecuteValidationFailure(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:   "txn-1",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	tests := []struct {
		name   string
		action model.RuleAction
	}{
		{name: "empty value where required", action: model.RuleAction{Type: model.ActionRemoveTag, Value: "  "}},
		{name: "unknown action type", action: model.RuleAction{Type: "teleport", Value: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewActionExecutor(store).Execute(context.Background(), []model.RuleAction{tt.action}, &txn)
			require.NoError(t, err)
			assert.False(t, result.Applied)

			var valErr *ValidationError
			assert.ErrorAs(t, result.FirstError(), &valErr)
		})
	}
}

// Converting a transaction that is already in the target state must be
// a no-op: conversions normalize via the magnitude, they never flip
// sign back and forth.
func TestConversionActionsIdempotent(t *testing.T) {
	tests := []struct {
		name       string
		action     model.ActionType
		amount     string
		wantAmount string
		wantType   model.TransactionType
	}{
		{name: "withdrawal from positive", action: model.ActionConvertToWithdrawal, amount: "125.00", wantAmount: "-125.00", wantType: model.TypeExpense},
		{name: "withdrawal from negative", action: model.ActionConvertToWithdrawal, amount: "-125.00", wantAmount: "-125.00", wantType: model.TypeExpense},
		{name: "deposit from negative", action: model.ActionConvertToDeposit, amount: "-125.00", wantAmount: "125.00", wantType: model.TypeIncome},
		{name: "deposit from positive", action: model.ActionConvertToDeposit, amount: "125.00", wantAmount: "125.00", wantType: model.TypeIncome},
		{name: "transfer keeps sign", action: model.ActionConvertToTransfer, amount: "-125.00", wantAmount: "-125.00", wantType: model.TypeTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			txn := seedTransaction(t, store, model.Transaction{
				ID:     "txn-1",
				Date:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
				Amount: decimal.RequireFromString(tt.amount),
				Type:   model.TypeUnknown,
			})

			x := NewActionExecutor(store)
			actions := []model.RuleAction{{Type: tt.action}}

			// Apply twice; the second application must change nothing.
			for i := 0; i < 2; i++ {
				result, err := x.Execute(context.Background(), actions, &txn)
				require.NoError(t, err)
				require.True(t, result.Applied)
				assert.True(t, txn.Amount.Equal(decimal.RequireFromString(tt.wantAmount)),
					"pass %d: amount %s", i+1, txn.Amount)
				assert.Equal(t, tt.wantType, txn.Type, "pass %d", i+1)
			}
		})
	}
}

// Categories are upserted: assigning a category that does not exist
// creates it rather than failing, and assigning it again reuses the
// same row.
func TestSetCategoryUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	x := NewActionExecutor(store)
	actions := []model.RuleAction{{Type: model.ActionSetCategory, Value: "Hobby Electronics"}}

	first := seedTransaction(t, store, model.Transaction{
		ID: "txn-1", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	result, err := x.Execute(ctx, actions, &first)
	require.NoError(t, err)
	require.True(t, result.Applied)
	assert.Equal(t, "Hobby Electronics", first.CategoryOverride)

	created, err := store.GetCategoryByName(ctx, "Hobby Electronics")
	require.NoError(t, err)
	require.NotNil(t, created)

	second := seedTransaction(t, store, model.Transaction{
		ID: "txn-2", Date: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	result, err = x.Execute(ctx, actions, &second)
	require.NoError(t, err)
	require.True(t, result.Applied)

	again, err := store.GetCategoryByName(ctx, "Hobby Electronics")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, created.ID, again.ID, "second assignment reuses the category")
}

func TestTagActions(t *testing.T) {
	tests := []struct {
		name      string
		notes     string
		action    model.RuleAction
		wantNotes string
	}{
		{
			name:      "add_tag appends",
			notes:     "lunch",
			action:    model.RuleAction{Type: model.ActionAddTag, Value: "reviewed"},
			wantNotes: "lunch, reviewed",
		},
		{
			name:      "add_tag is idempotent case-insensitively",
			notes:     "lunch, Reviewed",
			action:    model.RuleAction{Type: model.ActionAddTag, Value: "reviewed"},
			wantNotes: "lunch, Reviewed",
		},
		{
			name:      "remove_tag drops only the named tag",
			notes:     "lunch, reviewed, work",
			action:    model.RuleAction{Type: model.ActionRemoveTag, Value: "Reviewed"},
			wantNotes: "lunch, work",
		},
		{
			name:      "remove_tag of absent tag is a no-op",
			notes:     "lunch",
			action:    model.RuleAction{Type: model.ActionRemoveTag, Value: "reviewed"},
			wantNotes: "lunch",
		},
		{
			name:      "clear_tags empties notes",
			notes:     "lunch, reviewed",
			action:    model.RuleAction{Type: model.ActionClearTags},
			wantNotes: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			txn := seedTransaction(t, store, model.Transaction{
				ID:    "txn-1",
				Date:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
				Notes: tt.notes,
			})

			result, err := NewActionExecutor(store).Execute(context.Background(), []model.RuleAction{tt.action}, &txn)
			require.NoError(t, err)
			require.True(t, result.Applied)
			assert.Equal(t, tt.wantNotes, txn.Notes)
		})
	}
}

func TestMarkerActions(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:   "txn-1",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	x := NewActionExecutor(store)
	ctx := context.Background()

	result, err := x.Execute(ctx, []model.RuleAction{
		{Type: model.ActionSetExternalID, Value: "bank-778899"},
		{Type: model.ActionSetInternalReference, Value: "proj-42"},
		{Type: model.ActionDeleteTransaction},
	}, &txn)
	require.NoError(t, err)
	require.True(t, result.Applied)

	assert.Contains(t, txn.Notes, model.ExternalIDMarker+"bank-778899")
	assert.Contains(t, txn.Notes, model.InternalReferenceMarker+"proj-42")
	assert.Contains(t, txn.Notes, model.DeletedMarker)

	// Soft delete is idempotent: no duplicate marker on re-application.
	result, err = x.Execute(ctx, []model.RuleAction{{Type: model.ActionDeleteTransaction}}, &txn)
	require.NoError(t, err)
	require.True(t, result.Applied)
	assert.Equal(t, 1, strings.Count(txn.Notes, model.DeletedMarker))
}

func TestSetAccountActions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, &model.Account{Name: "Savings", IBAN: "NL20INGB0001234567"}))

	txn := seedTransaction(t, store, model.Transaction{
		ID:   "txn-1",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	x := NewActionExecutor(store)

	result, err := x.Execute(ctx, []model.RuleAction{
		{Type: model.ActionSetSourceAccount, Value: "Savings"},
	}, &txn)
	require.NoError(t, err)
	require.True(t, result.Applied)
	assert.Equal(t, "Savings", txn.AccountID)
	assert.Equal(t, "NL20INGB0001234567", txn.AccountIBAN)

	result, err = x.Execute(ctx, []model.RuleAction{
		{Type: model.ActionSetDestinationAccount, Value: "Savings"},
	}, &txn)
	require.NoError(t, err)
	require.True(t, result.Applied)
	assert.Equal(t, "Savings", txn.DestAccountID)
}

func TestSetCounterpartyWritesBothNames(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:           "txn-1",
		Date:         time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Counterparty: "AMZN Mktp NL",
		DisplayName:  "amzn",
	})

	result, err := NewActionExecutor(store).Execute(context.Background(), []model.RuleAction{
		{Type: model.ActionSetCounterparty, Value: "Amazon"},
	}, &txn)
	require.NoError(t, err)
	require.True(t, result.Applied)
	assert.Equal(t, "Amazon", txn.Counterparty)
	assert.Equal(t, "Amazon", txn.DisplayName)
}
