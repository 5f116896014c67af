package service

import (
	"context"
	"fmt"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository"
)

// SelectionResult counts the outcome of one submission. Skipped counts
// positive quantities for products that no longer exist.
type SelectionResult struct {
	Upserted int `json:"upserted"`
	Removed  int `json:"removed"`
	Skipped  int `json:"skipped"`
}

// SelectionService records the quantities a user wants per product.
type SelectionService interface {
	Apply(ctx context.Context, caller domain.Caller, entries map[int64]int) (*SelectionResult, error)
}

type selectionService struct {
	store repository.Store
}

// NewSelectionService creates a new instance of SelectionService
func NewSelectionService(store repository.Store) SelectionService {
	return &selectionService{store: store}
}

// Apply stores every positive quantity and removes every entry with a
// quantity of zero or less. The whole submission commits atomically.
func (s *selectionService) Apply(ctx context.Context, caller domain.Caller, entries map[int64]int) (*SelectionResult, error) {
	if err := domain.Authorize(caller, domain.RoleUser); err != nil {
		return nil, err
	}

	for productID, quantity := range entries {
		if productID <= 0 {
			return nil, domain.NewValidationError("entries", fmt.Sprintf("invalid product id %d", productID))
		}
		if quantity > domain.MaxSelectionQuantity {
			return nil, domain.NewValidationError("entries",
				fmt.Sprintf("quantity for product %d exceeds %d", productID, domain.MaxSelectionQuantity))
		}
	}

	changes := domain.PlanSelections(entries)
	result := &SelectionResult{}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		selections := tx.Selections()
		for _, change := range changes {
			switch change.Kind {
			case domain.ChangeUpsert:
				stored, err := selections.Upsert(ctx, caller.ID, change.ProductID, change.Quantity)
				if err != nil {
					return err
				}
				if stored {
					result.Upserted++
				} else {
					result.Skipped++
				}
			case domain.ChangeRemove:
				removed, err := selections.Delete(ctx, caller.ID, change.ProductID)
				if err != nil {
					return err
				}
				if removed {
					result.Removed++
				}
			default:
				return fmt.Errorf("unknown selection change %v", change.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply selections: %w", err)
	}

	return result, nil
}
