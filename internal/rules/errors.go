package rules

import (
	"fmt"

	"github.com/lukewarren/ledgerflow/internal/model"
)

// ValidationError indicates an action's value is missing or malformed
// for its type. It fails the per-transaction action batch but never
// escapes the engine as a fatal error.
type ValidationError struct {
	Action model.ActionType
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for action %s: %s", e.Action, e.Reason)
}

// ReferenceNotFoundError indicates an action referenced an entity that
// does not exist in the store. Only accounts can trigger this;
// categories are created on demand.
type ReferenceNotFoundError struct {
	Kind string
	Name string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// StoreError wraps an underlying persistence failure. It is fatal for
// the transaction being processed; the bulk runner records it and
// continues with the next transaction.
type StoreError struct {
	Err error
	Op  string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
