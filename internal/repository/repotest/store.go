// Package repotest provides an in-memory repository.Store for service and
// handler tests. Transactions are serialized and roll back by restoring a
// snapshot, and foreign key actions mirror the Postgres schema.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository"
)

type selectionKey struct {
	userID    int64
	productID int64
}

type state struct {
	nextID        int64
	users         map[int64]domain.User
	refreshTokens map[string]domain.RefreshToken
	categories    map[int64]domain.Category
	products      map[int64]domain.Product
	selections    map[selectionKey]domain.Selection
}

func (s *state) clone() *state {
	c := &state{
		nextID:        s.nextID,
		users:         make(map[int64]domain.User, len(s.users)),
		refreshTokens: make(map[string]domain.RefreshToken, len(s.refreshTokens)),
		categories:    make(map[int64]domain.Category, len(s.categories)),
		products:      make(map[int64]domain.Product, len(s.products)),
		selections:    make(map[selectionKey]domain.Selection, len(s.selections)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.refreshTokens {
		c.refreshTokens[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.selections {
		c.selections[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store is an in-memory repository.Store. The zero value is not usable; call New.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *state

	failures map[string]error
	inTx     bool
	root     *Store
}

var _ repository.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	s := &Store{
		data: &state{
			users:         map[int64]domain.User{},
			refreshTokens: map[string]domain.RefreshToken{},
			categories:    map[int64]domain.Category{},
			products:      map[int64]domain.Product{},
			selections:    map[selectionKey]domain.Selection{},
		},
		failures: map[string]error{},
	}
	s.root = s
	return s
}

// FailOn makes the named operation (for example "Products.Delete") return
// err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	r := s.root
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, op)
		return
	}
	r.failures[op] = err
}

// lock acquires the data mutex and returns the injected failure for op, if any.
func (s *Store) lock(op string) (*state, func(), error) {
	r := s.root
	r.mu.Lock()
	if err, ok := r.failures[op]; ok {
		r.mu.Unlock()
		return nil, nil, err
	}
	return r.data, r.mu.Unlock, nil
}

func (s *Store) Users() repository.UserRepository                 { return users{s} }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return refreshTokens{s} }
func (s *Store) Categories() repository.CategoryRepository        { return categories{s} }
func (s *Store) Products() repository.ProductRepository           { return products{s} }
func (s *Store) Selections() repository.SelectionRepository       { return selections{s} }

// WithTx serializes transactions. When fn fails, all writes made through the
// transactional store are discarded.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r := s.root
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.data.clone()
	r.mu.Unlock()

	tx := &Store{inTx: true, root: r}
	if err := fn(tx); err != nil {
		r.mu.Lock()
		r.data = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// Seed helpers create rows directly, bypassing failure injection.

// AddUser stores u and returns it with its generated ID.
func (s *Store) AddUser(u domain.User) domain.User {
	r := s.root
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = r.data.id()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.data.users[u.ID] = u
	return u
}

// AddCategory stores c and returns it with its generated ID.
func (s *Store) AddCategory(name string, parentID *int64) domain.Category {
	r := s.root
	r.mu.Lock()
	defer r.mu.Unlock()
	c := domain.Category{ID: r.data.id(), Name: name, ParentID: parentID, CreatedAt: time.Now()}
	r.data.categories[c.ID] = c
	return c
}

// AddProduct stores a product and returns it with its generated ID.
func (s *Store) AddProduct(name, size string, categoryID *int64) domain.Product {
	r := s.root
	r.mu.Lock()
	defer r.mu.Unlock()
	p := domain.Product{ID: r.data.id(), Name: name, Size: size, CategoryID: categoryID, CreatedAt: time.Now()}
	r.data.products[p.ID] = p
	return p
}

// SelectionsOf returns the stored quantities of a user keyed by product ID.
func (s *Store) SelectionsOf(userID int64) map[int64]int {
	r := s.root
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]int{}
	for k, v := range r.data.selections {
		if k.userID == userID {
			out[k.productID] = v.Quantity
		}
	}
	return out
}

func sortCategories(list []*domain.Category) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}

func sortProducts(list []*domain.Product) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}
