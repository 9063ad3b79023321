// Package model defines the core data structures for the ledgerflow application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType indicates the direction of money movement.
type TransactionType string

const (
	// TypeIncome represents money coming in (positive amounts).
	TypeIncome TransactionType = "income"
	// TypeExpense represents money going out (negative amounts).
	TypeExpense TransactionType = "expense"
	// TypeTransfer represents money moving between owned accounts.
	TypeTransfer TransactionType = "transfer"
	// TypeUnknown represents transactions whose direction has not been determined.
	TypeUnknown TransactionType = "unknown"
)

// ParseTransactionType normalizes a user-supplied type name. It accepts
// the banking synonyms "deposit" and "withdrawal" alongside the
// canonical names.
func ParseTransactionType(s string) TransactionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "deposit":
		return TypeIncome
	case "expense", "withdrawal":
		return TypeExpense
	case "transfer":
		return TypeTransfer
	default:
		return TypeUnknown
	}
}

// UncategorizedName is the sentinel effective category for transactions
// with neither an override nor an auto-assigned category.
const UncategorizedName = "Uncategorized"

// Transaction represents a single financial transaction from any source.
type Transaction struct {
	Date             time.Time
	ID               string
	Description      string // Raw transaction description
	Counterparty     string // Raw counterparty name
	DisplayName      string // Standardized counterparty display name
	AccountID        string // Source account
	DestAccountID    string // Destination account, set for transfers
	AccountIBAN      string
	CategoryOverride string // User/rule-assigned category, wins over AutoCategory
	AutoCategory     string // Category assigned at import time
	Notes            string // Free text; also carries the tag list and marker strings
	Hash             string
	Amount           decimal.Decimal
	Type             TransactionType
}

// EffectiveCategory returns the category override if present, else the
// auto-assigned category, else the uncategorized sentinel.
func (t *Transaction) EffectiveCategory() string {
	if t.CategoryOverride != "" {
		return t.CategoryOverride
	}
	if t.AutoCategory != "" {
		return t.AutoCategory
	}
	return UncategorizedName
}

// Clone returns a copy suitable for use as a mutable working copy.
func (t *Transaction) Clone() Transaction {
	return *t
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.String(),
		t.Counterparty,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// TagSeparator joins tags inside the notes field. Tags have no
// first-class column; they live as a comma-and-space-delimited list in
// notes, preserved for compatibility with existing data.
const TagSeparator = ", "

// ParseTags splits a notes value into its tag list. Empty segments are
// dropped and surrounding whitespace is trimmed.
func ParseTags(notes string) []string {
	if strings.TrimSpace(notes) == "" {
		return nil
	}
	parts := strings.Split(notes, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// JoinTags renders a tag list back into the notes encoding.
func JoinTags(tags []string) string {
	return strings.Join(tags, TagSeparator)
}

// HasTag reports whether the notes value contains the given tag
// (case-insensitive, whole-tag match).
func HasTag(notes, tag string) bool {
	for _, existing := range ParseTags(notes) {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}
