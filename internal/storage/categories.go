package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lukewarren/ledgerflow/internal/model"
)

// GetCategories returns all active categories.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategories(ctx, s.db)
}

func (s *SQLiteStorage) getCategories(ctx context.Context, db dbtx) ([]model.Category, error) {
	query := `
		SELECT id, name, created_at, is_active
		FROM categories
		WHERE is_active = 1
		ORDER BY name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.CreatedAt, &cat.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByName returns a category by its name, or nil if absent.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getCategoryByName(ctx, s.db, name)
}

func (s *SQLiteStorage) getCategoryByName(ctx context.Context, db dbtx, name string) (*model.Category, error) {
	query := `
		SELECT id, name, created_at, is_active
		FROM categories
		WHERE name = ? AND is_active = 1`

	var cat model.Category
	err := db.QueryRowContext(ctx, query, name).Scan(
		&cat.ID, &cat.Name, &cat.CreatedAt, &cat.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return &cat, nil
}

// GetOrCreateCategory returns the named category, creating it if it
// does not exist. The upsert is by name: calling twice with the same
// name creates exactly one category.
func (s *SQLiteStorage) GetOrCreateCategory(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getOrCreateCategory(ctx, s.db, name)
}

func (s *SQLiteStorage) getOrCreateCategory(ctx context.Context, db dbtx, name string) (*model.Category, error) {
	existing, err := s.getCategoryByName(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	// Reactivate rather than duplicate if an inactive row exists.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO categories (name, is_active) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET is_active = 1`, name); err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}

	created, err := s.getCategoryByName(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("category %q missing after create", name)
	}

	slog.Debug("created category", "name", name, "id", created.ID)
	return created, nil
}
