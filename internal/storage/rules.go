package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lukewarren/ledgerflow/internal/model"
)

const ruleColumns = `id, group_id, name, priority, is_active, stop_processing,
	triggers, actions, match_count, created_at, updated_at`

// SaveRule inserts or updates a rule. The trigger tree and action list
// are serialized to JSON columns; the engine treats them as opaque
// records supplied already deserialized.
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.saveRule(ctx, s.db, rule)
}

func (s *SQLiteStorage) saveRule(ctx context.Context, db dbtx, rule *model.Rule) error {
	if err := validateRule(rule); err != nil {
		return err
	}

	triggersJSON, err := json.Marshal(rule.Triggers)
	if err != nil {
		return fmt.Errorf("failed to encode triggers: %w", err)
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	if rule.ID == 0 {
		result, err := db.ExecContext(ctx, `
			INSERT INTO rules (group_id, name, priority, is_active,
				stop_processing, triggers, actions)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rule.GroupID, rule.Name, rule.Priority, rule.IsActive,
			rule.StopProcessing, string(triggersJSON), string(actionsJSON))
		if err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get rule ID: %w", err)
		}
		rule.ID = id
		rule.CreatedAt = time.Now()
		rule.UpdatedAt = rule.CreatedAt
		slog.Debug("created rule", "id", rule.ID, "name", rule.Name)
		return nil
	}

	result, err := db.ExecContext(ctx, `
		UPDATE rules
		SET group_id = ?, name = ?, priority = ?, is_active = ?,
			stop_processing = ?, triggers = ?, actions = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		rule.GroupID, rule.Name, rule.Priority, rule.IsActive,
		rule.StopProcessing, string(triggersJSON), string(actionsJSON), rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", rule.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule %d does not exist", ErrInvalidRule, rule.ID)
	}
	rule.UpdatedAt = time.Now()
	return nil
}

// GetRule returns a single rule, or nil if absent.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getRule(ctx, s.db, id)
}

func (s *SQLiteStorage) getRule(ctx context.Context, db dbtx, id int64) (*model.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = ?`

	rule, err := scanRule(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}
	return rule, nil
}

// GetRules returns all rules ordered by priority.
func (s *SQLiteStorage) GetRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getRules(ctx, s.db, false)
}

// GetActiveRules returns active rules ordered by priority, the set a
// rule run evaluates.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getRules(ctx, s.db, true)
}

func (s *SQLiteStorage) getRules(ctx context.Context, db dbtx, activeOnly bool) ([]model.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY priority, id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ruleList []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		ruleList = append(ruleList, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return ruleList, nil
}

// DeleteRule removes a rule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deleteRule(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteRule(ctx context.Context, db dbtx, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, err)
	}
	return nil
}

// IncrementRuleMatchCount bumps a rule's running match statistic.
func (s *SQLiteStorage) IncrementRuleMatchCount(ctx context.Context, ruleID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.incrementRuleMatchCount(ctx, s.db, ruleID)
}

func (s *SQLiteStorage) incrementRuleMatchCount(ctx context.Context, db dbtx, ruleID int64) error {
	if _, err := db.ExecContext(ctx,
		`UPDATE rules SET match_count = match_count + 1 WHERE id = ?`, ruleID); err != nil {
		return fmt.Errorf("failed to increment match count for rule %d: %w", ruleID, err)
	}
	return nil
}

// SaveRuleGroup inserts or updates a rule group.
func (s *SQLiteStorage) SaveRuleGroup(ctx context.Context, group *model.RuleGroup) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.saveRuleGroup(ctx, s.db, group)
}

func (s *SQLiteStorage) saveRuleGroup(ctx context.Context, db dbtx, group *model.RuleGroup) error {
	if err := validateRuleGroup(group); err != nil {
		return err
	}

	if group.ID == 0 {
		result, err := db.ExecContext(ctx, `
			INSERT INTO rule_groups (name, display_order, is_active)
			VALUES (?, ?, ?)`,
			group.Name, group.DisplayOrder, group.IsActive)
		if err != nil {
			return fmt.Errorf("failed to create rule group: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get rule group ID: %w", err)
		}
		group.ID = id
		group.CreatedAt = time.Now()
		group.UpdatedAt = group.CreatedAt
		return nil
	}

	result, err := db.ExecContext(ctx, `
		UPDATE rule_groups
		SET name = ?, display_order = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		group.Name, group.DisplayOrder, group.IsActive, group.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule group %d: %w", group.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule group %d does not exist", ErrInvalidRuleGroup, group.ID)
	}
	group.UpdatedAt = time.Now()
	return nil
}

// GetRuleGroups returns all rule groups in display order.
func (s *SQLiteStorage) GetRuleGroups(ctx context.Context) ([]model.RuleGroup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getRuleGroups(ctx, s.db)
}

func (s *SQLiteStorage) getRuleGroups(ctx context.Context, db dbtx) ([]model.RuleGroup, error) {
	query := `
		SELECT id, name, display_order, is_active, created_at, updated_at
		FROM rule_groups
		ORDER BY display_order, name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []model.RuleGroup
	for rows.Next() {
		var group model.RuleGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.DisplayOrder,
			&group.IsActive, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule groups: %w", err)
	}
	return groups, nil
}

// DeleteRuleGroup removes a group. Member rules are ungrouped, never
// deleted: their group_id is cleared in the same transaction.
func (s *SQLiteStorage) DeleteRuleGroup(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.deleteRuleGroup(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) deleteRuleGroup(ctx context.Context, db dbtx, id int64) error {
	if _, err := db.ExecContext(ctx,
		`UPDATE rules SET group_id = NULL WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("failed to ungroup rules for group %d: %w", id, err)
	}
	if _, err := db.ExecContext(ctx,
		`DELETE FROM rule_groups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete rule group %d: %w", id, err)
	}
	return nil
}

func scanRule(row scanner) (*model.Rule, error) {
	var rule model.Rule
	var groupID sql.NullInt64
	var triggersJSON, actionsJSON string

	if err := row.Scan(&rule.ID, &groupID, &rule.Name, &rule.Priority,
		&rule.IsActive, &rule.StopProcessing, &triggersJSON, &actionsJSON,
		&rule.MatchCount, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}

	if groupID.Valid {
		rule.GroupID = &groupID.Int64
	}

	var triggers model.TriggerGroup
	if err := json.Unmarshal([]byte(triggersJSON), &triggers); err != nil {
		return nil, fmt.Errorf("failed to decode triggers for rule %d: %w", rule.ID, err)
	}
	rule.Triggers = &triggers

	if err := json.Unmarshal([]byte(actionsJSON), &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions for rule %d: %w", rule.ID, err)
	}
	return &rule, nil
}
