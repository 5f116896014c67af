package repotest

import (
	"context"
	"sort"
	"time"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository"
)

type users struct{ s *Store }

func (r users) Create(ctx context.Context, user *domain.User) error {
	data, unlock, err := r.s.lock("Users.Create")
	if err != nil {
		return err
	}
	defer unlock()
	for _, u := range data.users {
		if u.Username == user.Username || u.Bekleidungsnummer == user.Bekleidungsnummer {
			return repository.ErrUserAlreadyExists
		}
	}
	user.ID = data.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	data.users[user.ID] = *user
	return nil
}

func (r users) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	data, unlock, err := r.s.lock("Users.FindByUsername")
	if err != nil {
		return nil, err
	}
	defer unlock()
	for _, u := range data.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r users) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	data, unlock, err := r.s.lock("Users.FindByID")
	if err != nil {
		return nil, err
	}
	defer unlock()
	u, ok := data.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r users) ExistsWithRole(ctx context.Context, role domain.Role) (bool, error) {
	data, unlock, err := r.s.lock("Users.ExistsWithRole")
	if err != nil {
		return false, err
	}
	defer unlock()
	for _, u := range data.users {
		if u.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func (r users) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	data, unlock, err := r.s.lock("Users.ListByRole")
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := []*domain.User{}
	for _, u := range data.users {
		if u.Role == role {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type refreshTokens struct{ s *Store }

func (r refreshTokens) Create(ctx context.Context, token *domain.RefreshToken) error {
	data, unlock, err := r.s.lock("RefreshTokens.Create")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := data.users[token.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	data.refreshTokens[token.Token] = *token
	return nil
}

func (r refreshTokens) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	data, unlock, err := r.s.lock("RefreshTokens.FindByToken")
	if err != nil {
		return nil, err
	}
	defer unlock()
	t, ok := data.refreshTokens[token]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if t.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return &t, nil
}

func (r refreshTokens) Revoke(ctx context.Context, token string) error {
	data, unlock, err := r.s.lock("RefreshTokens.Revoke")
	if err != nil {
		return err
	}
	defer unlock()
	t, ok := data.refreshTokens[token]
	if !ok {
		return repository.ErrRefreshTokenNotFound
	}
	t.Revoked = true
	data.refreshTokens[token] = t
	return nil
}

func (r refreshTokens) Purge(ctx context.Context, expiredBefore time.Time) (int64, error) {
	data, unlock, err := r.s.lock("RefreshTokens.Purge")
	if err != nil {
		return 0, err
	}
	defer unlock()
	var purged int64
	for key, t := range data.refreshTokens {
		if t.Revoked || t.ExpiresAt.Before(expiredBefore) {
			delete(data.refreshTokens, key)
			purged++
		}
	}
	return purged, nil
}

type categories struct{ s *Store }

func (r categories) Create(ctx context.Context, category *domain.Category) error {
	data, unlock, err := r.s.lock("Categories.Create")
	if err != nil {
		return err
	}
	defer unlock()
	if category.ParentID != nil {
		if _, ok := data.categories[*category.ParentID]; !ok {
			return repository.ErrCategoryNotFound
		}
	}
	category.ID = data.id()
	category.CreatedAt = time.Now()
	data.categories[category.ID] = *category
	return nil
}

func (r categories) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	return r.find("Categories.FindByID", id)
}

func (r categories) LockForUpdate(ctx context.Context, id int64) (*domain.Category, error) {
	return r.find("Categories.LockForUpdate", id)
}

func (r categories) find(op string, id int64) (*domain.Category, error) {
	data, unlock, err := r.s.lock(op)
	if err != nil {
		return nil, err
	}
	defer unlock()
	c, ok := data.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return &c, nil
}

func (r categories) LockForShare(ctx context.Context, id int64) error {
	_, err := r.find("Categories.LockForShare", id)
	return err
}

// LockTree is a no-op because transactions are already serialized.
func (r categories) LockTree(ctx context.Context) error {
	_, unlock, err := r.s.lock("Categories.LockTree")
	if err != nil {
		return err
	}
	unlock()
	return nil
}

func (r categories) List(ctx context.Context) ([]*domain.Category, error) {
	data, unlock, err := r.s.lock("Categories.List")
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]*domain.Category, 0, len(data.categories))
	for _, c := range data.categories {
		c := c
		out = append(out, &c)
	}
	sortCategories(out)
	return out, nil
}

func (r categories) Count(ctx context.Context) (int, error) {
	data, unlock, err := r.s.lock("Categories.Count")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return len(data.categories), nil
}

func (r categories) ParentOf(ctx context.Context, id int64) (*int64, error) {
	c, err := r.find("Categories.ParentOf", id)
	if err != nil {
		return nil, err
	}
	return c.ParentID, nil
}

func (r categories) SetParent(ctx context.Context, id int64, parentID *int64) error {
	data, unlock, err := r.s.lock("Categories.SetParent")
	if err != nil {
		return err
	}
	defer unlock()
	c, ok := data.categories[id]
	if !ok {
		return repository.ErrCategoryNotFound
	}
	if parentID != nil {
		if _, ok := data.categories[*parentID]; !ok {
			return repository.ErrCategoryNotFound
		}
		if *parentID == id {
			return domain.ErrCycle
		}
	}
	c.ParentID = parentID
	data.categories[id] = c
	return nil
}

func (r categories) DetachChildren(ctx context.Context, id int64) (int64, error) {
	data, unlock, err := r.s.lock("Categories.DetachChildren")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return detachChildren(data, id), nil
}

func detachChildren(data *state, id int64) int64 {
	var n int64
	for k, c := range data.categories {
		if c.ParentID != nil && *c.ParentID == id {
			c.ParentID = nil
			data.categories[k] = c
			n++
		}
	}
	return n
}

func detachProducts(data *state, categoryID int64) int64 {
	var n int64
	for k, p := range data.products {
		if p.CategoryID != nil && *p.CategoryID == categoryID {
			p.CategoryID = nil
			data.products[k] = p
			n++
		}
	}
	return n
}

// Delete applies the ON DELETE SET NULL actions of the schema.
func (r categories) Delete(ctx context.Context, id int64) error {
	data, unlock, err := r.s.lock("Categories.Delete")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := data.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	detachChildren(data, id)
	detachProducts(data, id)
	delete(data.categories, id)
	return nil
}

type products struct{ s *Store }

func (r products) Create(ctx context.Context, product *domain.Product) error {
	data, unlock, err := r.s.lock("Products.Create")
	if err != nil {
		return err
	}
	defer unlock()
	if product.CategoryID != nil {
		if _, ok := data.categories[*product.CategoryID]; !ok {
			return repository.ErrCategoryNotFound
		}
	}
	product.ID = data.id()
	product.CreatedAt = time.Now()
	data.products[product.ID] = *product
	return nil
}

func (r products) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.find("Products.FindByID", id)
}

func (r products) LockForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.find("Products.LockForUpdate", id)
}

func (r products) find(op string, id int64) (*domain.Product, error) {
	data, unlock, err := r.s.lock(op)
	if err != nil {
		return nil, err
	}
	defer unlock()
	p, ok := data.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

// Delete cascades to the product's selections.
func (r products) Delete(ctx context.Context, id int64) error {
	data, unlock, err := r.s.lock("Products.Delete")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := data.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	for k := range data.selections {
		if k.productID == id {
			delete(data.selections, k)
		}
	}
	delete(data.products, id)
	return nil
}

func (r products) List(ctx context.Context) ([]*domain.Product, error) {
	data, unlock, err := r.s.lock("Products.List")
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]*domain.Product, 0, len(data.products))
	for _, p := range data.products {
		p := p
		out = append(out, &p)
	}
	sortProducts(out)
	return out, nil
}

func (r products) MoveToCategory(ctx context.Context, ids []int64, categoryID *int64) (int64, error) {
	data, unlock, err := r.s.lock("Products.MoveToCategory")
	if err != nil {
		return 0, err
	}
	defer unlock()
	if len(ids) == 0 {
		return 0, nil
	}
	if categoryID != nil {
		if _, ok := data.categories[*categoryID]; !ok {
			return 0, repository.ErrCategoryNotFound
		}
	}
	var n int64
	seen := map[int64]bool{}
	for _, id := range ids {
		p, ok := data.products[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		p.CategoryID = categoryID
		data.products[id] = p
		n++
	}
	return n, nil
}

func (r products) DetachFromCategory(ctx context.Context, categoryID int64) (int64, error) {
	data, unlock, err := r.s.lock("Products.DetachFromCategory")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return detachProducts(data, categoryID), nil
}

func (r products) Summary(ctx context.Context) ([]*domain.ProductSummary, error) {
	data, unlock, err := r.s.lock("Products.Summary")
	if err != nil {
		return nil, err
	}
	defer unlock()
	totals := map[int64]int{}
	for k, sel := range data.selections {
		totals[k.productID] += sel.Quantity
	}
	list := make([]*domain.Product, 0, len(data.products))
	for _, p := range data.products {
		p := p
		list = append(list, &p)
	}
	sortProducts(list)
	out := make([]*domain.ProductSummary, 0, len(list))
	for _, p := range list {
		out = append(out, &domain.ProductSummary{ProductID: p.ID, Name: p.Name, Size: p.Size, TotalQuantity: totals[p.ID]})
	}
	return out, nil
}

type selections struct{ s *Store }

func (r selections) Upsert(ctx context.Context, userID, productID int64, quantity int) (bool, error) {
	data, unlock, err := r.s.lock("Selections.Upsert")
	if err != nil {
		return false, err
	}
	defer unlock()
	if quantity <= 0 {
		return false, domain.NewValidationError("quantity", "must be positive")
	}
	if _, ok := data.products[productID]; !ok {
		return false, nil
	}
	if _, ok := data.users[userID]; !ok {
		return false, nil
	}
	data.selections[selectionKey{userID, productID}] = domain.Selection{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		UpdatedAt: time.Now(),
	}
	return true, nil
}

func (r selections) Delete(ctx context.Context, userID, productID int64) (bool, error) {
	data, unlock, err := r.s.lock("Selections.Delete")
	if err != nil {
		return false, err
	}
	defer unlock()
	key := selectionKey{userID, productID}
	if _, ok := data.selections[key]; !ok {
		return false, nil
	}
	delete(data.selections, key)
	return true, nil
}

func (r selections) ListByUser(ctx context.Context, userID int64) ([]*domain.Selection, error) {
	data, unlock, err := r.s.lock("Selections.ListByUser")
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := []*domain.Selection{}
	for k, sel := range data.selections {
		if k.userID == userID {
			sel := sel
			out = append(out, &sel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r selections) ListDetails(ctx context.Context) ([]*domain.SelectionDetail, error) {
	data, unlock, err := r.s.lock("Selections.ListDetails")
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := []*domain.SelectionDetail{}
	for k, sel := range data.selections {
		p := data.products[k.productID]
		out = append(out, &domain.SelectionDetail{
			UserID:      k.userID,
			ProductID:   k.productID,
			ProductName: p.Name,
			Size:        p.Size,
			Quantity:    sel.Quantity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		return a.ProductID < b.ProductID
	})
	return out, nil
}

func (r selections) CountByProduct(ctx context.Context, productID int64) (int, error) {
	data, unlock, err := r.s.lock("Selections.CountByProduct")
	if err != nil {
		return 0, err
	}
	defer unlock()
	n := 0
	for k := range data.selections {
		if k.productID == productID {
			n++
		}
	}
	return n, nil
}
