package model

import (
	"strings"
	"time"
)

// RuleGroup is a named container for organizing rules in the UI. It is
// a display grouping, not an ownership edge: deleting a group ungroups
// its rules, it never deletes them.
type RuleGroup struct {
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Name         string
	ID           int64
	DisplayOrder int
	IsActive     bool
}

// Rule pairs one root trigger group with an ordered action list.
// Active rules are evaluated in ascending priority order; a matching
// rule with StopProcessing set halts the scan for that transaction.
type Rule struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	GroupID        *int64        // Optional back-pointer to a RuleGroup
	Triggers       *TriggerGroup // Root of the condition tree; never nil for well-formed rules
	Name           string
	Actions        []RuleAction
	ID             int64
	Priority       int
	MatchCount     int64
	IsActive       bool
	StopProcessing bool
}

// GroupCombinator determines how a trigger group's children combine.
type GroupCombinator string

const (
	// CombinatorAnd requires every child to match. An AND group with no
	// children matches everything.
	CombinatorAnd GroupCombinator = "and"
	// CombinatorOr requires at least one child to match. An OR group
	// with no children matches nothing.
	CombinatorOr GroupCombinator = "or"
)

// TriggerGroup is a node in the nested boolean condition tree. The
// combinator applies uniformly to all children at this level, leaf
// triggers and nested groups alike.
type TriggerGroup struct {
	Combinator GroupCombinator `json:"combinator"`
	Triggers   []Trigger       `json:"triggers,omitempty"`
	Groups     []TriggerGroup  `json:"groups,omitempty"`
}

// IsEmpty reports whether the group has no children at all.
func (g *TriggerGroup) IsEmpty() bool {
	return len(g.Triggers) == 0 && len(g.Groups) == 0
}

// TriggerField identifies which transaction attribute a trigger reads.
type TriggerField string

// Trigger field constants.
const (
	FieldDescription     TriggerField = "description"
	FieldCounterparty    TriggerField = "counterparty"
	FieldDisplayName     TriggerField = "display_name"
	FieldAmount          TriggerField = "amount"
	FieldDate            TriggerField = "date"
	FieldAccountIBAN     TriggerField = "account_iban"
	FieldCategory        TriggerField = "category"
	FieldTransactionType TriggerField = "transaction_type"
	FieldNotes           TriggerField = "notes"
)

// Valid reports whether the field is a known trigger field.
func (f TriggerField) Valid() bool {
	switch f {
	case FieldDescription, FieldCounterparty, FieldDisplayName, FieldAmount,
		FieldDate, FieldAccountIBAN, FieldCategory, FieldTransactionType, FieldNotes:
		return true
	}
	return false
}

// TriggerOperator is the comparison applied between a trigger's field
// value and its comparison value.
type TriggerOperator string

// Trigger operator constants.
const (
	OpContains       TriggerOperator = "contains"
	OpEquals         TriggerOperator = "equals"
	OpStartsWith     TriggerOperator = "starts_with"
	OpEndsWith       TriggerOperator = "ends_with"
	OpMatchesRegex   TriggerOperator = "matches_regex"
	OpGreaterThan    TriggerOperator = "greater_than"
	OpGreaterOrEqual TriggerOperator = "greater_or_equal"
	OpLessThan       TriggerOperator = "less_than"
	OpLessOrEqual    TriggerOperator = "less_or_equal"
	OpBetween        TriggerOperator = "between"
	OpOneOf          TriggerOperator = "one_of"
	OpIsEmpty        TriggerOperator = "is_empty"
	OpIsNotEmpty     TriggerOperator = "is_not_empty"
)

// Valid reports whether the operator is a known trigger operator.
func (o TriggerOperator) Valid() bool {
	switch o {
	case OpContains, OpEquals, OpStartsWith, OpEndsWith, OpMatchesRegex,
		OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual,
		OpBetween, OpOneOf, OpIsEmpty, OpIsNotEmpty:
		return true
	}
	return false
}

// BetweenSeparator splits the two bounds of a between comparison value,
// e.g. "100,500".
const BetweenSeparator = ","

// Trigger is a single leaf condition: field, operator, comparison
// value, and a negation flag applied after operator evaluation.
type Trigger struct {
	Field    TriggerField    `json:"field"`
	Operator TriggerOperator `json:"operator"`
	Value    string          `json:"value"`
	Negate   bool            `json:"negate,omitempty"`
}

// ActionType identifies the mutation a rule action performs.
type ActionType string

// Rule action constants.
const (
	ActionSetCategory           ActionType = "set_category"
	ActionClearCategory         ActionType = "clear_category"
	ActionSetDescription        ActionType = "set_description"
	ActionSetNotes              ActionType = "set_notes"
	ActionAppendNotes           ActionType = "append_notes"
	ActionAddTag                ActionType = "add_tag"
	ActionRemoveTag             ActionType = "remove_tag"
	ActionClearTags             ActionType = "clear_tags"
	ActionSetCounterparty       ActionType = "set_counterparty"
	ActionSetSourceAccount      ActionType = "set_source_account"
	ActionSetDestinationAccount ActionType = "set_destination_account"
	ActionConvertToDeposit      ActionType = "convert_to_deposit"
	ActionConvertToWithdrawal   ActionType = "convert_to_withdrawal"
	ActionConvertToTransfer     ActionType = "convert_to_transfer"
	ActionDeleteTransaction     ActionType = "delete_transaction"
	ActionSetExternalID         ActionType = "set_external_id"
	ActionSetInternalReference  ActionType = "set_internal_reference"
)

// Valid reports whether the action type is known.
func (a ActionType) Valid() bool {
	switch a {
	case ActionSetCategory, ActionClearCategory, ActionSetDescription,
		ActionSetNotes, ActionAppendNotes, ActionAddTag, ActionRemoveTag,
		ActionClearTags, ActionSetCounterparty, ActionSetSourceAccount,
		ActionSetDestinationAccount, ActionConvertToDeposit,
		ActionConvertToWithdrawal, ActionConvertToTransfer,
		ActionDeleteTransaction, ActionSetExternalID, ActionSetInternalReference:
		return true
	}
	return false
}

// RequiresValue reports whether the action type needs a non-empty value.
func (a ActionType) RequiresValue() bool {
	switch a {
	case ActionClearCategory, ActionClearTags, ActionConvertToDeposit,
		ActionConvertToWithdrawal, ActionConvertToTransfer, ActionDeleteTransaction:
		return false
	}
	return true
}

// RuleAction is one mutation applied to a transaction when its rule
// matches. Actions execute in list order.
type RuleAction struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value,omitempty"`
}

// Marker prefixes appended to notes by actions that have no dedicated
// transaction field to write to.
const (
	DeletedMarker           = "[deleted]"
	ExternalIDMarker        = "ext_id:"
	InternalReferenceMarker = "internal_ref:"
)

// AppendNoteSegment appends a segment to a notes value using the same
// comma-and-space encoding tags use.
func AppendNoteSegment(notes, segment string) string {
	if strings.TrimSpace(notes) == "" {
		return segment
	}
	return notes + TagSeparator + segment
}
