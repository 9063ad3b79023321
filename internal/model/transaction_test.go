package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveCategory(t *testing.T) {
	tests := []struct {
		name string
		txn  Transaction
		want string
	}{
		{
			name: "override wins over auto",
			txn:  Transaction{CategoryOverride: "Groceries", AutoCategory: "Shopping"},
			want: "Groceries",
		},
		{
			name: "auto when no override",
			txn:  Transaction{AutoCategory: "Shopping"},
			want: "Shopping",
		},
		{
			name: "sentinel when neither set",
			txn:  Transaction{},
			want: UncategorizedName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.txn.EffectiveCategory())
		})
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name  string
		notes string
		want  []string
	}{
		{name: "empty notes", notes: "", want: nil},
		{name: "whitespace only", notes: "   ", want: nil},
		{name: "single tag", notes: "groceries", want: []string{"groceries"}},
		{name: "multiple tags", notes: "a, b, c", want: []string{"a", "b", "c"}},
		{name: "ragged spacing", notes: "a,b ,  c", want: []string{"a", "b", "c"}},
		{name: "empty segments dropped", notes: "a,,b,", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.notes))
		})
	}
}

func TestJoinTagsRoundTrip(t *testing.T) {
	tags := []string{"large-expense", "reviewed"}
	notes := JoinTags(tags)
	assert.Equal(t, "large-expense, reviewed", notes)
	assert.Equal(t, tags, ParseTags(notes))
}

func TestHasTag(t *testing.T) {
	notes := "groceries, Large-Expense"
	assert.True(t, HasTag(notes, "groceries"))
	assert.True(t, HasTag(notes, "large-expense"), "tag match is case-insensitive")
	assert.False(t, HasTag(notes, "large"), "substring is not a tag match")
	assert.False(t, HasTag("", "anything"))
}

func TestAppendNoteSegment(t *testing.T) {
	assert.Equal(t, "first", AppendNoteSegment("", "first"))
	assert.Equal(t, "first, second", AppendNoteSegment("first", "second"))
}

func TestGenerateHashStable(t *testing.T) {
	txn := Transaction{
		Date:         time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		Amount:       decimal.RequireFromString("-42.50"),
		Counterparty: "ACME",
		AccountID:    "checking",
	}

	first := txn.GenerateHash()
	assert.Equal(t, first, txn.GenerateHash(), "hash is deterministic")

	other := txn
	other.Amount = decimal.RequireFromString("-42.51")
	assert.NotEqual(t, first, other.GenerateHash())
}

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		in   string
		want TransactionType
	}{
		{"income", TypeIncome},
		{"deposit", TypeIncome},
		{"expense", TypeExpense},
		{"withdrawal", TypeExpense},
		{"Withdrawal", TypeExpense},
		{"transfer", TypeTransfer},
		{"garbage", TypeUnknown},
		{"", TypeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTransactionType(tt.in), "input %q", tt.in)
	}
}
