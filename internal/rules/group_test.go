package rules

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/lukewarren/ledgerflow/internal/model"
)

func TestEvaluateGroupEmptyIdentities(t *testing.T) {
	e := NewEvaluator()
	txn := sampleTransaction()

	emptyAnd := model.TriggerGroup{Combinator: model.CombinatorAnd}
	assert.True(t, e.EvaluateGroup(emptyAnd, txn), "empty AND matches everything")

	emptyOr := model.TriggerGroup{Combinator: model.CombinatorOr}
	assert.False(t, e.EvaluateGroup(emptyOr, txn), "empty OR matches nothing")

	// The identities must hold recursively: a nested empty OR kills an
	// enclosing AND, a nested empty AND satisfies an enclosing OR.
	andWithEmptyOr := model.TriggerGroup{
		Combinator: model.CombinatorAnd,
		Groups:     []model.TriggerGroup{{Combinator: model.CombinatorOr}},
	}
	assert.False(t, e.EvaluateGroup(andWithEmptyOr, txn))

	orWithEmptyAnd := model.TriggerGroup{
		Combinator: model.CombinatorOr,
		Groups:     []model.TriggerGroup{{Combinator: model.CombinatorAnd}},
	}
	assert.True(t, e.EvaluateGroup(orWithEmptyAnd, txn))
}

func TestEvaluateGroupNested(t *testing.T) {
	matching := model.Trigger{Field: model.FieldDescription, Operator: model.OpContains, Value: "amazon"}
	failing := model.Trigger{Field: model.FieldDescription, Operator: model.OpContains, Value: "zzz"}

	tests := []struct {
		name  string
		group model.TriggerGroup
		want  bool
	}{
		{
			name: "AND requires all children",
			group: model.TriggerGroup{
				Combinator: model.CombinatorAnd,
				Triggers:   []model.Trigger{matching, failing},
			},
			want: false,
		},
		{
			name: "OR requires one child",
			group: model.TriggerGroup{
				Combinator: model.CombinatorOr,
				Triggers:   []model.Trigger{failing, matching},
			},
			want: true,
		},
		{
			name: "combinator applies to nested groups and leaves alike",
			group: model.TriggerGroup{
				Combinator: model.CombinatorAnd,
				Triggers:   []model.Trigger{matching},
				Groups: []model.TriggerGroup{{
					Combinator: model.CombinatorOr,
					Triggers:   []model.Trigger{failing, matching},
				}},
			},
			want: true,
		},
		{
			name: "unrecognized combinator behaves as AND",
			group: model.TriggerGroup{
				Combinator: "xor",
				Triggers:   []model.Trigger{matching, failing},
			},
			want: false,
		},
		{
			name: "three levels deep",
			group: model.TriggerGroup{
				Combinator: model.CombinatorOr,
				Triggers:   []model.Trigger{failing},
				Groups: []model.TriggerGroup{{
					Combinator: model.CombinatorAnd,
					Triggers:   []model.Trigger{matching},
					Groups: []model.TriggerGroup{{
						Combinator: model.CombinatorOr,
						Triggers:   []model.Trigger{matching, failing},
					}},
				}},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator()
			assert.Equal(t, tt.want, e.EvaluateGroup(tt.group, sampleTransaction()))
		})
	}
}

// naiveEvaluateGroup is a reference implementation that always
// evaluates every child before combining. Short-circuiting in the real
// evaluator must never change the outcome, only skip work.
func naiveEvaluateGroup(e *Evaluator, group model.TriggerGroup, txn *model.Transaction) bool {
	results := make([]bool, 0, len(group.Triggers)+len(group.Groups))
	for _, trigger := range group.Triggers {
		results = append(results, e.EvaluateTrigger(trigger, txn))
	}
	for _, sub := range group.Groups {
		results = append(results, naiveEvaluateGroup(e, sub, txn))
	}

	if group.Combinator == model.CombinatorOr {
		out := false
		for _, r := range results {
			out = out || r
		}
		return out
	}
	out := true
	for _, r := range results {
		out = out && r
	}
	return out
}

func randomTrigger(rng *rand.Rand) model.Trigger {
	fields := []model.TriggerField{
		model.FieldDescription, model.FieldCounterparty, model.FieldAmount,
		model.FieldDate, model.FieldTransactionType, model.FieldNotes,
	}
	field := fields[rng.Intn(len(fields))]

	var trigger model.Trigger
	switch field {
	case model.FieldAmount:
		ops := []model.TriggerOperator{model.OpGreaterThan, model.OpLessThan, model.OpEquals, model.OpBetween}
		trigger = model.Trigger{
			Field:    field,
			Operator: ops[rng.Intn(len(ops))],
			Value:    fmt.Sprintf("%d,%d", rng.Intn(500), 500+rng.Intn(1500)),
		}
		if trigger.Operator != model.OpBetween {
			trigger.Value = fmt.Sprintf("%d", rng.Intn(2000))
		}
	case model.FieldDate:
		trigger = model.Trigger{
			Field:    field,
			Operator: model.OpGreaterOrEqual,
			Value:    fmt.Sprintf("2024-%02d-01", 1+rng.Intn(12)),
		}
	case model.FieldTransactionType:
		values := []string{"income", "expense", "withdrawal", "transfer"}
		trigger = model.Trigger{
			Field:    field,
			Operator: model.OpEquals,
			Value:    values[rng.Intn(len(values))],
		}
	default:
		values := []string{"amazon", "order", "zzz", "gift", ""}
		ops := []model.TriggerOperator{model.OpContains, model.OpEquals, model.OpStartsWith, model.OpIsEmpty}
		trigger = model.Trigger{
			Field:    field,
			Operator: ops[rng.Intn(len(ops))],
			Value:    values[rng.Intn(len(values))],
		}
	}
	trigger.Negate = rng.Intn(4) == 0
	return trigger
}

func randomGroup(rng *rand.Rand, depth int) model.TriggerGroup {
	combinators := []model.GroupCombinator{model.CombinatorAnd, model.CombinatorOr}
	group := model.TriggerGroup{Combinator: combinators[rng.Intn(2)]}

	for i := rng.Intn(4); i > 0; i-- {
		group.Triggers = append(group.Triggers, randomTrigger(rng))
	}
	if depth > 0 {
		for i := rng.Intn(3); i > 0; i-- {
			group.Groups = append(group.Groups, randomGroup(rng, depth-1))
		}
	}
	return group
}

func randomTransaction(rng *rand.Rand) *model.Transaction {
	descriptions := []string{"AMAZON Order #99", "Salary June", "", "gift shop"}
	types := []model.TransactionType{model.TypeIncome, model.TypeExpense, model.TypeTransfer, model.TypeUnknown}
	return &model.Transaction{
		Description: descriptions[rng.Intn(len(descriptions))],
		Notes:       descriptions[rng.Intn(len(descriptions))],
		Date:        sampleTransaction().Date.AddDate(0, rng.Intn(12), rng.Intn(28)),
		Amount:      decimal.NewFromInt(int64(rng.Intn(4000) - 2000)),
		Type:        types[rng.Intn(len(types))],
	}
}

func TestShortCircuitMatchesNaiveEvaluation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e := NewEvaluator()

	for i := 0; i < 500; i++ {
		group := randomGroup(rng, 3)
		txn := randomTransaction(rng)
		assert.Equal(t,
			naiveEvaluateGroup(e, group, txn),
			e.EvaluateGroup(group, txn),
			"tree %d: %+v", i, group)
	}
}
