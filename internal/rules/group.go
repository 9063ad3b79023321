package rules

import (
	"github.com/lukewarren/ledgerflow/internal/model"
)

// EvaluateGroup recursively evaluates a trigger group against a
// transaction. The combinator applies uniformly to all children at a
// level, leaf triggers and nested groups alike, and evaluation
// short-circuits: AND stops at the first false child, OR at the first
// true one.
//
// The empty-group identities are deliberate: an AND group with no
// children matches everything (a catch-all rule is an empty AND group)
// and an OR group with no children matches nothing. No depth limit is
// enforced.
func (e *Evaluator) EvaluateGroup(group model.TriggerGroup, txn *model.Transaction) bool {
	if group.Combinator == model.CombinatorOr {
		for _, trigger := range group.Triggers {
			if e.EvaluateTrigger(trigger, txn) {
				return true
			}
		}
		for _, sub := range group.Groups {
			if e.EvaluateGroup(sub, txn) {
				return true
			}
		}
		return false
	}

	// Unrecognized combinators behave as AND, the editor's default.
	for _, trigger := range group.Triggers {
		if !e.EvaluateTrigger(trigger, txn) {
			return false
		}
	}
	for _, sub := range group.Groups {
		if !e.EvaluateGroup(sub, txn) {
			return false
		}
	}
	return true
}
