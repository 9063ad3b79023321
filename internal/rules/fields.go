// Package rules implements the rule-based transaction categorization
// and mutation engine: trigger evaluation over nested AND/OR condition
// trees, atomic action execution, priority-ordered rule application,
// and chunked bulk runs.
package rules

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lukewarren/ledgerflow/internal/model"
)

// ValueKind tags the variant held by a FieldValue.
type ValueKind int

// Field value kinds.
const (
	ValueText ValueKind = iota
	ValueAmount
	ValueDate
	ValueType
)

// FieldValue is the typed result of extracting a trigger field from a
// transaction. Exactly one variant is meaningful, selected by Kind.
type FieldValue struct {
	Date   time.Time
	Text   string
	Amount decimal.Decimal
	Type   model.TransactionType
	Kind   ValueKind
}

// ExtractField reads a typed value from a transaction. It is a total
// function: unknown fields and missing data yield defined defaults
// (empty text, zero amount, zero date) so trigger evaluation can never
// fail on the data side.
func ExtractField(field model.TriggerField, txn *model.Transaction) FieldValue {
	switch field {
	case model.FieldDescription:
		return FieldValue{Kind: ValueText, Text: txn.Description}
	case model.FieldCounterparty:
		name := txn.Counterparty
		if name == "" {
			name = txn.DisplayName
		}
		return FieldValue{Kind: ValueText, Text: name}
	case model.FieldDisplayName:
		name := txn.DisplayName
		if name == "" {
			name = txn.Counterparty
		}
		return FieldValue{Kind: ValueText, Text: name}
	case model.FieldAmount:
		return FieldValue{Kind: ValueAmount, Amount: txn.Amount}
	case model.FieldDate:
		return FieldValue{Kind: ValueDate, Date: truncateToDay(txn.Date)}
	case model.FieldAccountIBAN:
		return FieldValue{Kind: ValueText, Text: txn.AccountIBAN}
	case model.FieldCategory:
		return FieldValue{Kind: ValueText, Text: txn.EffectiveCategory()}
	case model.FieldTransactionType:
		return FieldValue{Kind: ValueType, Type: txn.Type}
	case model.FieldNotes:
		return FieldValue{Kind: ValueText, Text: txn.Notes}
	default:
		return FieldValue{Kind: ValueText}
	}
}

// truncateToDay drops the time-of-day component. Date triggers compare
// at day granularity.
func truncateToDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
