package rules

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukewarren/ledgerflow/internal/model"
)

func andGroup(triggers ...model.Trigger) *model.TriggerGroup {
	return &model.TriggerGroup{Combinator: model.CombinatorAnd, Triggers: triggers}
}

func TestApplyRulesCategorizes(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:          "txn-1",
		Date:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "COFFEE SHOP AMSTERDAM",
		Amount:      decimal.RequireFromString("-4.50"),
		Type:        model.TypeExpense,
	})

	engine := NewEngine(store)
	ruleList := []model.Rule{{
		ID:       1,
		Name:     "coffee",
		IsActive: true,
		Triggers: andGroup(model.Trigger{
			Field: model.FieldDescription, Operator: model.OpContains, Value: "coffee shop",
		}),
		Actions: []model.RuleAction{
			{Type: model.ActionSetCategory, Value: "Dining"},
			{Type: model.ActionAddTag, Value: "coffee"},
		},
	}}

	result, err := engine.ApplyRules(context.Background(), ruleList, &txn)
	require.NoError(t, err)
	assert.True(t, result.Matched())
	assert.False(t, result.Failed())

	stored := storedTransaction(t, store, "txn-1")
	assert.Equal(t, "Dining", stored.CategoryOverride)
	assert.True(t, model.HasTag(stored.Notes, "coffee"))
}

// A rule on "amount greater than 1000" must catch a -1500.00 expense:
// the non-negative comparison value selects magnitude comparison.
func TestApplyRulesLargeExpenseMagnitude(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:     "txn-1",
		Date:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("-1500.00"),
		Type:   model.TypeExpense,
	})

	engine := NewEngine(store)
	ruleList := []model.Rule{{
		ID:       1,
		Name:     "large expense",
		IsActive: true,
		Triggers: andGroup(
			model.Trigger{Field: model.FieldAmount, Operator: model.OpGreaterThan, Value: "1000"},
			model.Trigger{Field: model.FieldTransactionType, Operator: model.OpEquals, Value: "withdrawal"},
		),
		Actions: []model.RuleAction{{Type: model.ActionAddTag, Value: "large-expense"}},
	}}

	result, err := engine.ApplyRules(context.Background(), ruleList, &txn)
	require.NoError(t, err)
	assert.True(t, result.Matched())
	assert.True(t, model.HasTag(storedTransaction(t, store, "txn-1").Notes, "large-expense"))
}

func TestApplyRulesPriorityAndStopProcessing(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:          "txn-1",
		Date:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "anything",
	})

	matchAll := andGroup() // empty AND matches everything

	engine := NewEngine(store)
	ruleList := []model.Rule{
		{
			ID: 2, Name: "second", Priority: 20, IsActive: true, Triggers: matchAll,
			Actions: []model.RuleAction{{Type: model.ActionSetCategory, Value: "FromSecond"}},
		},
		{
			ID: 1, Name: "first", Priority: 10, IsActive: true, StopProcessing: true, Triggers: matchAll,
			Actions: []model.RuleAction{{Type: model.ActionSetCategory, Value: "FromFirst"}},
		},
	}

	result, err := engine.ApplyRules(context.Background(), ruleList, &txn)
	require.NoError(t, err)
	assert.True(t, result.StoppedEarly)
	require.Len(t, result.Outcomes, 1, "second rule never evaluated")
	assert.Equal(t, "first", result.Outcomes[0].RuleName)
	assert.Equal(t, "FromFirst", storedTransaction(t, store, "txn-1").CategoryOverride)
}

// Stop-processing halts the scan after a match even when the matching
// rule's actions failed. The match is what stops the scan, not the
// mutation.
func TestStopProcessingAppliesOnActionFailure(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:   "txn-1",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	engine := NewEngine(store)
	ruleList := []model.Rule{
		{
			ID: 1, Name: "broken stopper", Priority: 1, IsActive: true, StopProcessing: true,
			Triggers: andGroup(),
			Actions:  []model.RuleAction{{Type: model.ActionSetSourceAccount, Value: "Ghost Account"}},
		},
		{
			ID: 2, Name: "would categorize", Priority: 2, IsActive: true,
			Triggers: andGroup(),
			Actions:  []model.RuleAction{{Type: model.ActionSetCategory, Value: "Never"}},
		},
	}

	result, err := engine.ApplyRules(context.Background(), ruleList, &txn)
	require.NoError(t, err)
	assert.True(t, result.StoppedEarly)
	assert.True(t, result.Failed())
	require.Len(t, result.Outcomes, 1)

	stored := storedTransaction(t, store, "txn-1")
	assert.Empty(t, stored.CategoryOverride, "second rule never ran")
}

func TestApplyRulesSkipsInactive(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:   "txn-1",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	engine := NewEngine(store)
	ruleList := []model.Rule{{
		ID: 1, Name: "disabled", IsActive: false, Triggers: andGroup(),
		Actions: []model.RuleAction{{Type: model.ActionSetCategory, Value: "Never"}},
	}}

	result, err := engine.ApplyRules(context.Background(), ruleList, &txn)
	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
	assert.False(t, result.Matched())
}

// A rule whose root trigger group is missing is a data-integrity
// problem: it matches nothing and must not crash or halt the scan.
func TestApplyRulesNilTriggerGroup(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:   "txn-1",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	engine := NewEngine(store)
	ruleList := []model.Rule{
		{ID: 1, Name: "corrupt", Priority: 1, IsActive: true, Triggers: nil,
			Actions: []model.RuleAction{{Type: model.ActionSetCategory, Value: "Never"}}},
		{ID: 2, Name: "healthy", Priority: 2, IsActive: true, Triggers: andGroup(),
			Actions: []model.RuleAction{{Type: model.ActionSetCategory, Value: "Applied"}}},
	}

	result, err := engine.ApplyRules(context.Background(), ruleList, &txn)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.False(t, result.Outcomes[0].Matched)
	assert.True(t, result.Outcomes[1].Matched)
	assert.Equal(t, "Applied", storedTransaction(t, store, "txn-1").CategoryOverride)
}

func TestApplyRulesIncrementsMatchCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	txn := seedTransaction(t, store, model.Transaction{
		ID:   "txn-1",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	rule := &model.Rule{
		Name: "counted", IsActive: true, Triggers: andGroup(),
		Actions: []model.RuleAction{{Type: model.ActionAddTag, Value: "seen"}},
	}
	require.NoError(t, store.SaveRule(ctx, rule))

	engine := NewEngine(store)
	_, err := engine.ApplyRules(ctx, []model.Rule{*rule}, &txn)
	require.NoError(t, err)

	reloaded, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, int64(1), reloaded.MatchCount)
}

func TestEvaluateTriggerGroupPreviewDoesNotMutate(t *testing.T) {
	store := newTestStore(t)
	txn := seedTransaction(t, store, model.Transaction{
		ID:          "txn-1",
		Date:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "COFFEE SHOP",
	})

	engine := NewEngine(store)
	group := model.TriggerGroup{
		Combinator: model.CombinatorAnd,
		Triggers: []model.Trigger{{
			Field: model.FieldDescription, Operator: model.OpContains, Value: "coffee",
		}},
	}
	assert.True(t, engine.EvaluateTriggerGroup(group, &txn))

	stored := storedTransaction(t, store, "txn-1")
	assert.Equal(t, "COFFEE SHOP", stored.Description)
	assert.Empty(t, stored.CategoryOverride)
}
