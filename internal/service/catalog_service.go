package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository"
)

// CatalogService mutates the category tree and assembles dashboards.
// Every operation runs in a single transaction.
type CatalogService interface {
	AddCategory(ctx context.Context, caller domain.Caller, name string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, caller domain.Caller, id int64) (*DeleteCategoryResult, error)
	DeleteProduct(ctx context.Context, caller domain.Caller, id int64) (*DeleteProductResult, error)
	MoveCategory(ctx context.Context, caller domain.Caller, id int64, newParentID *int64) error
	MoveProducts(ctx context.Context, caller domain.Caller, ids []int64, newCategoryID *int64) (*MoveProductsResult, error)
	Dashboard(ctx context.Context, caller domain.Caller) (*Dashboard, error)
}

// DeleteCategoryResult describes what a category deletion changed.
// Deleted is false when the category did not exist.
type DeleteCategoryResult struct {
	Deleted          bool  `json:"deleted"`
	PromotedChildren int64 `json:"promoted_children"`
	OrphanedProducts int64 `json:"orphaned_products"`
}

// DeleteProductResult describes what a product deletion changed.
type DeleteProductResult struct {
	Deleted           bool `json:"deleted"`
	RemovedSelections int  `json:"removed_selections"`
}

// MoveProductsResult reports how many products were requested and how many
// rows actually changed.
type MoveProductsResult struct {
	Requested int   `json:"requested"`
	Moved     int64 `json:"moved"`
}

// UserSelections lists one user's selections for the admin dashboard.
type UserSelections struct {
	User       *domain.User              `json:"user"`
	Selections []*domain.SelectionDetail `json:"selections"`
}

// Dashboard is the read model behind GET /api/dashboard. Admin callers get
// Users and Summary, user callers get their own Selections.
type Dashboard struct {
	Role       domain.Role              `json:"role"`
	Categories []*domain.CategoryNode   `json:"categories"`
	Unassigned []*domain.Product        `json:"unassigned_products"`
	Users      []*UserSelections        `json:"users,omitempty"`
	Summary    []*domain.ProductSummary `json:"summary,omitempty"`
	Selections map[int64]int            `json:"selections,omitempty"`
}

type catalogService struct {
	store repository.Store
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(store repository.Store) CatalogService {
	return &catalogService{store: store}
}

// AddCategory creates a new top-level category
func (s *catalogService) AddCategory(ctx context.Context, caller domain.Caller, name string) (*domain.Category, error) {
	if err := domain.Authorize(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > domain.MaxCategoryNameLength {
		return nil, domain.NewValidationError("name", fmt.Sprintf("must be at most %d characters", domain.MaxCategoryNameLength))
	}

	category := &domain.Category{Name: name}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.Categories().Create(ctx, category)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add category: %w", err)
	}

	return category, nil
}

// DeleteCategory removes a single category. Its direct children become
// top-level categories and its products move to the unassigned pool.
// Deleting a missing category is a no-op.
func (s *catalogService) DeleteCategory(ctx context.Context, caller domain.Caller, id int64) (*DeleteCategoryResult, error) {
	if err := domain.Authorize(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}

	result := &DeleteCategoryResult{}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Categories().LockForUpdate(ctx, id); err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}

		children, err := tx.Categories().DetachChildren(ctx, id)
		if err != nil {
			return err
		}
		products, err := tx.Products().DetachFromCategory(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Categories().Delete(ctx, id); err != nil {
			return err
		}

		result.Deleted = true
		result.PromotedChildren = children
		result.OrphanedProducts = products
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete category: %w", err)
	}

	return result, nil
}

// DeleteProduct removes a product together with all selections of it.
// Deleting a missing product is a no-op.
func (s *catalogService) DeleteProduct(ctx context.Context, caller domain.Caller, id int64) (*DeleteProductResult, error) {
	if err := domain.Authorize(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}

	result := &DeleteProductResult{}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Products().LockForUpdate(ctx, id); err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}

		selections, err := tx.Selections().CountByProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Products().Delete(ctx, id); err != nil {
			return err
		}

		result.Deleted = true
		result.RemovedSelections = selections
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	return result, nil
}

// MoveCategory places a category below newParentID, or at top level when
// newParentID is nil. Moves that would put a category below itself or one
// of its descendants fail with domain.ErrCycle.
func (s *catalogService) MoveCategory(ctx context.Context, caller domain.Caller, id int64, newParentID *int64) error {
	if err := domain.Authorize(caller, domain.RoleAdmin); err != nil {
		return err
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		categories := tx.Categories()

		if err := categories.LockTree(ctx); err != nil {
			return err
		}
		if _, err := categories.LockForUpdate(ctx, id); err != nil {
			return notFound("category", id, err)
		}

		if newParentID != nil {
			if *newParentID == id {
				return domain.ErrCycle
			}
			if err := categories.LockForShare(ctx, *newParentID); err != nil {
				return notFound("category", *newParentID, err)
			}
		}

		total, err := categories.Count(ctx)
		if err != nil {
			return err
		}
		parentOf := func(categoryID int64) (*int64, error) {
			return categories.ParentOf(ctx, categoryID)
		}
		if err := domain.CheckMove(id, newParentID, parentOf, total); err != nil {
			return err
		}

		return categories.SetParent(ctx, id, newParentID)
	})
	if err != nil {
		return fmt.Errorf("failed to move category: %w", err)
	}

	return nil
}

// MoveProducts assigns all listed products to newCategoryID, or to the
// unassigned pool when it is nil. Unknown product IDs are ignored.
func (s *catalogService) MoveProducts(ctx context.Context, caller domain.Caller, ids []int64, newCategoryID *int64) (*MoveProductsResult, error) {
	if err := domain.Authorize(caller, domain.RoleAdmin); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, domain.NewValidationError("productIds", "at least one product is required")
	}

	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	result := &MoveProductsResult{Requested: len(ids)}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if newCategoryID != nil {
			if err := tx.Categories().LockForShare(ctx, *newCategoryID); err != nil {
				return notFound("category", *newCategoryID, err)
			}
		}

		moved, err := tx.Products().MoveToCategory(ctx, unique, newCategoryID)
		if err != nil {
			if newCategoryID != nil {
				return notFound("category", *newCategoryID, err)
			}
			return err
		}
		result.Moved = moved
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to move products: %w", err)
	}

	return result, nil
}

// Dashboard assembles the category tree and the role-specific views from a
// single consistent read.
func (s *catalogService) Dashboard(ctx context.Context, caller domain.Caller) (*Dashboard, error) {
	if !caller.Role.Valid() {
		return nil, domain.ErrForbidden
	}

	dashboard := &Dashboard{Role: caller.Role}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		categories, err := tx.Categories().List(ctx)
		if err != nil {
			return err
		}
		products, err := tx.Products().List(ctx)
		if err != nil {
			return err
		}
		dashboard.Categories, dashboard.Unassigned = domain.BuildTree(categories, products)

		switch caller.Role {
		case domain.RoleAdmin:
			return s.loadAdminView(ctx, tx, dashboard)
		case domain.RoleUser:
			return s.loadUserView(ctx, tx, caller.ID, dashboard)
		default:
			return domain.ErrForbidden
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	return dashboard, nil
}

func (s *catalogService) loadAdminView(ctx context.Context, tx repository.Store, dashboard *Dashboard) error {
	users, err := tx.Users().ListByRole(ctx, domain.RoleUser)
	if err != nil {
		return err
	}
	details, err := tx.Selections().ListDetails(ctx)
	if err != nil {
		return err
	}

	byUser := make(map[int64][]*domain.SelectionDetail, len(users))
	for _, d := range details {
		byUser[d.UserID] = append(byUser[d.UserID], d)
	}

	dashboard.Users = make([]*UserSelections, 0, len(users))
	for _, u := range users {
		selections := byUser[u.ID]
		if selections == nil {
			selections = []*domain.SelectionDetail{}
		}
		dashboard.Users = append(dashboard.Users, &UserSelections{User: u, Selections: selections})
	}

	dashboard.Summary, err = tx.Products().Summary(ctx)
	return err
}

func (s *catalogService) loadUserView(ctx context.Context, tx repository.Store, userID int64, dashboard *Dashboard) error {
	selections, err := tx.Selections().ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	dashboard.Selections = make(map[int64]int, len(selections))
	for _, sel := range selections {
		dashboard.Selections[sel.ProductID] = sel.Quantity
	}
	return nil
}
