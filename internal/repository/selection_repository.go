package repository

import (
	"context"
	"fmt"

	"kleiderkammer/internal/domain"
)

// SelectionRepository defines the interface for selection data access
type SelectionRepository interface {
	// Upsert stores the quantity for (userID, productID), replacing an
	// existing value. It reports false and stores nothing when the product
	// does not exist, also when a concurrent transaction deletes it.
	Upsert(ctx context.Context, userID, productID int64, quantity int) (bool, error)
	// Delete removes the selection for (userID, productID) and reports
	// whether one existed.
	Delete(ctx context.Context, userID, productID int64) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Selection, error)
	ListDetails(ctx context.Context) ([]*domain.SelectionDetail, error)
	CountByProduct(ctx context.Context, productID int64) (int, error)
}

type selectionRepository struct {
	db DBTX
}

// NewSelectionRepository creates a new instance of SelectionRepository
func NewSelectionRepository(db DBTX) SelectionRepository {
	return &selectionRepository{db: db}
}

// Upsert relies on the (user_id, product_id) unique constraint so that
// concurrent submissions update the same row instead of duplicating it.
// The product row is key-share locked: a concurrent delete either waits for
// this transaction or, once committed, leaves nothing to insert. A failing
// foreign key check would abort the surrounding transaction instead.
func (r *selectionRepository) Upsert(ctx context.Context, userID, productID int64, quantity int) (bool, error) {
	query := `
		INSERT INTO selections (user_id, product_id, quantity)
		SELECT $1, p.id, $3
		FROM products p
		WHERE p.id = $2
		FOR KEY SHARE OF p
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
	`

	result, err := r.db.ExecContext(ctx, query, userID, productID, quantity)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to upsert selection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Delete removes a single selection
func (r *selectionRepository) Delete(ctx context.Context, userID, productID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM selections WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to delete selection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListByUser retrieves all selections of a user
func (r *selectionRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Selection, error) {
	query := `
		SELECT user_id, product_id, quantity, updated_at
		FROM selections
		WHERE user_id = $1
		ORDER BY product_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list selections: %w", err)
	}
	defer rows.Close()

	selections := []*domain.Selection{}
	for rows.Next() {
		s := &domain.Selection{}
		if err := rows.Scan(&s.UserID, &s.ProductID, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		selections = append(selections, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating selections: %w", err)
	}

	return selections, nil
}

// ListDetails retrieves all selections joined with their product
func (r *selectionRepository) ListDetails(ctx context.Context) ([]*domain.SelectionDetail, error) {
	query := `
		SELECT s.user_id, s.product_id, p.name, p.size, s.quantity
		FROM selections s
		JOIN products p ON p.id = s.product_id
		ORDER BY s.user_id ASC, p.name ASC, p.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list selection details: %w", err)
	}
	defer rows.Close()

	details := []*domain.SelectionDetail{}
	for rows.Next() {
		d := &domain.SelectionDetail{}
		if err := rows.Scan(&d.UserID, &d.ProductID, &d.ProductName, &d.Size, &d.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan selection detail: %w", err)
		}
		details = append(details, d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating selection details: %w", err)
	}

	return details, nil
}

// CountByProduct returns how many users selected a product
func (r *selectionRepository) CountByProduct(ctx context.Context, productID int64) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM selections WHERE product_id = $1`, productID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count selections: %w", err)
	}
	return total, nil
}
