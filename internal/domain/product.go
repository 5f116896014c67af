package domain

import "time"

// Column limits shared by validation and the schema.
const (
	MaxCategoryNameLength = 100
	MaxProductNameLength  = 255
	MaxProductSizeLength  = 100
)

// Product is an item that can be handed out. A nil CategoryID places it in
// the unassigned pool.
type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Size       string    `json:"size"`
	CategoryID *int64    `json:"category_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Category is a node of the category tree. A nil ParentID marks a top-level
// category.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductSummary is the total quantity requested for a product across all users.
type ProductSummary struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	Size          string `json:"size"`
	TotalQuantity int    `json:"total_quantity"`
}
