package domain

import (
	"sort"
	"time"
)

// Selection is the quantity of one product a user asked for. Stored
// selections always have a positive quantity.
type Selection struct {
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SelectionDetail is a selection joined with its product, as listed on the
// admin dashboard.
type SelectionDetail struct {
	UserID      int64  `json:"user_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"`
	Quantity    int    `json:"quantity"`
}

// MaxSelectionQuantity is the largest quantity one user can request of a
// product. The selections table and the request validation use the same bound.
const MaxSelectionQuantity = 9999

// ChangeKind tags what happens to a single selection entry.
type ChangeKind int

const (
	ChangeUpsert ChangeKind = iota + 1
	ChangeRemove
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeUpsert:
		return "upsert"
	case ChangeRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// SelectionChange is the outcome computed for one submitted entry.
type SelectionChange struct {
	ProductID int64
	Kind      ChangeKind
	Quantity  int
}

// PlanSelections turns a submitted form into one change per product.
// Positive quantities are stored, anything else removes the selection.
// Changes are ordered by product id.
func PlanSelections(entries map[int64]int) []SelectionChange {
	changes := make([]SelectionChange, 0, len(entries))
	for productID, quantity := range entries {
		if quantity > 0 {
			changes = append(changes, SelectionChange{ProductID: productID, Kind: ChangeUpsert, Quantity: quantity})
		} else {
			changes = append(changes, SelectionChange{ProductID: productID, Kind: ChangeRemove})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].ProductID < changes[j].ProductID })
	return changes
}
