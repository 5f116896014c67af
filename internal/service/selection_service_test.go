package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository/repotest"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySelections_UpsertThenRemove(t *testing.T) {
	store := repotest.New()
	service := NewSelectionService(store)
	ctx := context.Background()

	anna := store.AddUser(domain.User{Username: "Anna", Role: domain.RoleUser, Bekleidungsnummer: "1"})
	shirt := store.AddProduct("T-Shirt", "S", nil)

	result, err := service.Apply(ctx, anna.Caller(), map[int64]int{shirt.ID: 3})
	require.NoError(t, err)
	assert.Equal(t, &SelectionResult{Upserted: 1}, result)

	result, err = service.Apply(ctx, anna.Caller(), map[int64]int{shirt.ID: 5})
	require.NoError(t, err)
	assert.Equal(t, &SelectionResult{Upserted: 1}, result)
	assert.Equal(t, map[int64]int{shirt.ID: 5}, store.SelectionsOf(anna.ID))

	result, err = service.Apply(ctx, anna.Caller(), map[int64]int{shirt.ID: 0})
	require.NoError(t, err)
	assert.Equal(t, &SelectionResult{Removed: 1}, result)
	assert.Empty(t, store.SelectionsOf(anna.ID))

	result, err = service.Apply(ctx, anna.Caller(), map[int64]int{shirt.ID: -2})
	require.NoError(t, err)
	assert.Equal(t, &SelectionResult{}, result, "removing a missing selection changes nothing")
}

func TestApplySelections_UnknownProductIsSkipped(t *testing.T) {
	store := repotest.New()
	service := NewSelectionService(store)
	ctx := context.Background()

	anna := store.AddUser(domain.User{Username: "Anna", Role: domain.RoleUser, Bekleidungsnummer: "1"})
	shirt := store.AddProduct("T-Shirt", "S", nil)

	result, err := service.Apply(ctx, anna.Caller(), map[int64]int{shirt.ID: 1, 9999: 4})
	require.NoError(t, err)
	assert.Equal(t, &SelectionResult{Upserted: 1, Skipped: 1}, result)
	assert.Equal(t, map[int64]int{shirt.ID: 1}, store.SelectionsOf(anna.ID))
}

func TestApplySelections_RejectsInvalidInput(t *testing.T) {
	store := repotest.New()
	service := NewSelectionService(store)
	ctx := context.Background()

	_, err := service.Apply(ctx, adminCaller, map[int64]int{1: 1})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	var validationErr *domain.ValidationError
	_, err = service.Apply(ctx, userCaller, map[int64]int{0: 1})
	assert.ErrorAs(t, err, &validationErr)
}

func TestApplySelections_QuantityUpperBound(t *testing.T) {
	store := repotest.New()
	service := NewSelectionService(store)
	ctx := context.Background()

	anna := store.AddUser(domain.User{Username: "Anna", Role: domain.RoleUser, Bekleidungsnummer: "1"})
	shirt := store.AddProduct("T-Shirt", "S", nil)
	hat := store.AddProduct("Mütze", "onesize", nil)

	var validationErr *domain.ValidationError
	_, err := service.Apply(ctx, anna.Caller(), map[int64]int{
		shirt.ID: 2,
		hat.ID:   domain.MaxSelectionQuantity + 1,
	})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "entries", validationErr.Field)
	assert.Empty(t, store.SelectionsOf(anna.ID), "nothing is stored when one entry is out of range")

	result, err := service.Apply(ctx, anna.Caller(), map[int64]int{shirt.ID: domain.MaxSelectionQuantity})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, map[int64]int{shirt.ID: domain.MaxSelectionQuantity}, store.SelectionsOf(anna.ID))
}

func TestApplySelections_IsAtomic(t *testing.T) {
	store := repotest.New()
	service := NewSelectionService(store)
	ctx := context.Background()

	anna := store.AddUser(domain.User{Username: "Anna", Role: domain.RoleUser, Bekleidungsnummer: "1"})
	shirt := store.AddProduct("T-Shirt", "S", nil)
	hat := store.AddProduct("Mütze", "onesize", nil)
	_, err := service.Apply(ctx, anna.Caller(), map[int64]int{hat.ID: 1})
	require.NoError(t, err)

	boom := errors.New("deadlock detected")
	store.FailOn("Selections.Delete", boom)

	// shirt sorts before hat, so the upsert runs before the failing delete
	_, err = service.Apply(ctx, anna.Caller(), map[int64]int{shirt.ID: 2, hat.ID: 0})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, map[int64]int{hat.ID: 1}, store.SelectionsOf(anna.ID))
}

func TestApplySelections_ConcurrentUsers(t *testing.T) {
	store := repotest.New()
	service := NewSelectionService(store)
	ctx := context.Background()

	shirt := store.AddProduct("T-Shirt", "S", nil)
	users := make([]domain.User, 8)
	for i := range users {
		users[i] = store.AddUser(domain.User{
			Username:          string(rune('A' + i)),
			Role:              domain.RoleUser,
			Bekleidungsnummer: string(rune('0' + i)),
		})
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(users)*5)
	for i := range users {
		for round := 1; round <= 5; round++ {
			wg.Add(1)
			go func(u domain.User, qty int) {
				defer wg.Done()
				if _, err := service.Apply(ctx, u.Caller(), map[int64]int{shirt.ID: qty}); err != nil {
					errs <- err
				}
			}(users[i], round)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Apply failed: %v", err)
	}
	for _, u := range users {
		selections := store.SelectionsOf(u.ID)
		require.Len(t, selections, 1, "exactly one row per user and product")
		assert.Positive(t, selections[shirt.ID])
	}
}

// After applying any submission, the stored selections equal the positive
// entries for existing products and nothing else.
func TestProperty_ApplyLeavesOnlyPositiveQuantities(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stored selections mirror the positive entries", prop.ForAll(
		func(entries map[int64]int) bool {
			store := repotest.New()
			service := NewSelectionService(store)
			ctx := context.Background()

			user := store.AddUser(domain.User{Username: "Anna", Role: domain.RoleUser, Bekleidungsnummer: "1"})
			existing := map[int64]bool{}
			for i := 0; i < 5; i++ {
				p := store.AddProduct("Artikel", "M", nil)
				existing[p.ID] = true
				if _, err := store.Selections().Upsert(ctx, user.ID, p.ID, 1); err != nil {
					return false
				}
			}

			result, err := service.Apply(ctx, user.Caller(), entries)
			if err != nil {
				return false
			}

			want := map[int64]int{}
			for id := range existing {
				want[id] = 1
			}
			skipped := 0
			for id, qty := range entries {
				switch {
				case qty > 0 && existing[id]:
					want[id] = qty
				case qty > 0:
					skipped++
				default:
					delete(want, id)
				}
			}

			got := store.SelectionsOf(user.ID)
			if len(got) != len(want) || result.Skipped != skipped {
				return false
			}
			for id, qty := range want {
				if got[id] != qty {
					return false
				}
			}
			return true
		},
		gen.MapOf(gen.Int64Range(1, 12), gen.IntRange(-3, 9)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
