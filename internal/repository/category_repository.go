package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kleiderkammer/internal/domain"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
)

// categoryTreeLockKey identifies the advisory lock that serializes tree moves.
const categoryTreeLockKey int64 = 0x6b6b_7472_6565 // "kktree"

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	FindByID(ctx context.Context, id int64) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	Count(ctx context.Context) (int, error)
	ParentOf(ctx context.Context, id int64) (*int64, error)

	// LockForUpdate loads a category and locks its row until the transaction ends.
	LockForUpdate(ctx context.Context, id int64) (*domain.Category, error)
	// LockForShare locks a category row against deletion until the transaction ends.
	LockForShare(ctx context.Context, id int64) error
	// LockTree takes a transaction-scoped lock that serializes structural moves.
	LockTree(ctx context.Context) error

	SetParent(ctx context.Context, id int64, parentID *int64) error
	// DetachChildren promotes all direct children of a category to top level.
	DetachChildren(ctx context.Context, id int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

// Create inserts a new category and fills in its generated ID and timestamp
func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	query := `
		INSERT INTO categories (name, parent_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query, category.Name, category.ParentID).Scan(
		&category.ID,
		&category.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// FindByID retrieves a category by ID
func (r *categoryRepository) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	return r.findOne(ctx, `SELECT id, name, parent_id, created_at FROM categories WHERE id = $1`, id)
}

// LockForUpdate retrieves a category by ID and locks the row
func (r *categoryRepository) LockForUpdate(ctx context.Context, id int64) (*domain.Category, error) {
	return r.findOne(ctx, `SELECT id, name, parent_id, created_at FROM categories WHERE id = $1 FOR UPDATE`, id)
}

func (r *categoryRepository) findOne(ctx context.Context, query string, id int64) (*domain.Category, error) {
	category := &domain.Category{}
	var parentID sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&parentID,
		&category.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}

	category.ParentID = nullableInt64(parentID)
	return category, nil
}

// LockForShare makes sure the category exists and cannot be deleted concurrently
func (r *categoryRepository) LockForShare(ctx context.Context, id int64) error {
	var found int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE id = $1 FOR SHARE`, id).Scan(&found)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to lock category: %w", err)
	}
	return nil
}

// LockTree acquires the category tree advisory lock for the current transaction
func (r *categoryRepository) LockTree(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, categoryTreeLockKey); err != nil {
		return fmt.Errorf("failed to lock category tree: %w", err)
	}
	return nil
}

// List retrieves all categories ordered by name
func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	query := `
		SELECT id, name, parent_id, created_at
		FROM categories
		ORDER BY name ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category := &domain.Category{}
		var parentID sql.NullInt64
		err := rows.Scan(
			&category.ID,
			&category.Name,
			&parentID,
			&category.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		category.ParentID = nullableInt64(parentID)
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// Count returns the number of categories
func (r *categoryRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	return total, nil
}

// ParentOf returns the parent ID of a category, nil for top-level categories
func (r *categoryRepository) ParentOf(ctx context.Context, id int64) (*int64, error) {
	var parentID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT parent_id FROM categories WHERE id = $1`, id).Scan(&parentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to load parent of category: %w", err)
	}
	return nullableInt64(parentID), nil
}

// SetParent moves a category below parentID, or to top level when parentID is nil
func (r *categoryRepository) SetParent(ctx context.Context, id int64, parentID *int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE categories SET parent_id = $2 WHERE id = $1`, id, parentID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to set category parent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}

	return nil
}

// DetachChildren clears the parent reference of all direct children
func (r *categoryRepository) DetachChildren(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE categories SET parent_id = NULL WHERE parent_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to detach child categories: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Delete removes a single category row
func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}

	return nil
}
