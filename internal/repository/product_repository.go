package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kleiderkammer/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	LockForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*domain.Product, error)

	// MoveToCategory reassigns every listed product in a single statement.
	// Unknown IDs are ignored. It returns the number of rows changed.
	MoveToCategory(ctx context.Context, ids []int64, categoryID *int64) (int64, error)
	// DetachFromCategory moves all products of a category to the unassigned pool.
	DetachFromCategory(ctx context.Context, categoryID int64) (int64, error)

	Summary(ctx context.Context) ([]*domain.ProductSummary, error)
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product and fills in its generated ID and timestamp
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (name, size, category_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query, product.Name, product.Size, product.CategoryID).Scan(
		&product.ID,
		&product.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.findOne(ctx, `SELECT id, name, size, category_id, created_at FROM products WHERE id = $1`, id)
}

// LockForUpdate retrieves a product by ID and locks the row
func (r *productRepository) LockForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.findOne(ctx, `SELECT id, name, size, category_id, created_at FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (r *productRepository) findOne(ctx context.Context, query string, id int64) (*domain.Product, error) {
	product := &domain.Product{}
	var categoryID sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Size,
		&categoryID,
		&product.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	product.CategoryID = nullableInt64(categoryID)
	return product, nil
}

// Delete removes a product; its selections are removed by the foreign key cascade
func (r *productRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// List retrieves all products ordered by name
func (r *productRepository) List(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT id, name, size, category_id, created_at
		FROM products
		ORDER BY name ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product := &domain.Product{}
		var categoryID sql.NullInt64
		err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Size,
			&categoryID,
			&product.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		product.CategoryID = nullableInt64(categoryID)
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// MoveToCategory sets category_id for all products in ids
func (r *productRepository) MoveToCategory(ctx context.Context, ids []int64, categoryID *int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx, `UPDATE products SET category_id = $1 WHERE id = ANY($2)`, categoryID, ids)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrCategoryNotFound
		}
		return 0, fmt.Errorf("failed to move products: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// DetachFromCategory clears category_id for all products of a category
func (r *productRepository) DetachFromCategory(ctx context.Context, categoryID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET category_id = NULL WHERE category_id = $1`, categoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to detach products: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Summary returns every product with the total quantity requested across all users
func (r *productRepository) Summary(ctx context.Context) ([]*domain.ProductSummary, error) {
	query := `
		SELECT p.id, p.name, p.size, COALESCE(SUM(s.quantity), 0)
		FROM products p
		LEFT JOIN selections s ON s.product_id = p.id
		GROUP BY p.id
		ORDER BY p.name ASC, p.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize products: %w", err)
	}
	defer rows.Close()

	summary := []*domain.ProductSummary{}
	for rows.Next() {
		item := &domain.ProductSummary{}
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Size, &item.TotalQuantity); err != nil {
			return nil, fmt.Errorf("failed to scan product summary: %w", err)
		}
		summary = append(summary, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product summary: %w", err)
	}

	return summary, nil
}
