package transport

import (
	"net/http"
	"strconv"
	"testing"

	"kleiderkammer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dashboardBody struct {
	Role       domain.Role              `json:"role"`
	Categories []*domain.CategoryNode   `json:"categories"`
	Unassigned []*domain.Product        `json:"unassigned_products"`
	Users      []map[string]interface{} `json:"users"`
	Summary    []*domain.ProductSummary `json:"summary"`
	Selections map[string]int           `json:"selections"`
}

func TestAdminRoutesRejectUsers(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.userToken(t, "Anna", "K-17")
	jacken := api.store.AddCategory("Jacken", nil)
	product := api.store.AddProduct("Parka", "L", &jacken.ID)

	requests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPost, "/api/admin/categories", AddCategoryRequest{Name: "Hosen"}},
		{http.MethodDelete, "/api/admin/categories/" + strconv.FormatInt(jacken.ID, 10), nil},
		{http.MethodPost, "/api/admin/categories/move", MoveCategoryRequest{CategoryID: jacken.ID}},
		{http.MethodDelete, "/api/admin/products/" + strconv.FormatInt(product.ID, 10), nil},
		{http.MethodPost, "/api/admin/products/move", MoveProductsRequest{ProductIDs: []int64{product.ID}}},
	}

	for _, req := range requests {
		w := api.do(t, req.method, req.path, token, req.body)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", req.method, req.path)
	}

	// nothing changed
	found, err := api.store.Products().FindByID(t.Context(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, jacken.ID, *found.CategoryID)
	count, err := api.store.Categories().Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/admin/categories", "", AddCategoryRequest{Name: "Hosen"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddCategory(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	w := api.do(t, http.MethodPost, "/api/admin/categories", token, AddCategoryRequest{Name: " Hosen "})
	require.Equal(t, http.StatusCreated, w.Code)

	var response struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Result  domain.Category `json:"result"`
	}
	decodeBody(t, w, &response)
	assert.True(t, response.Success)
	assert.Equal(t, "Hosen", response.Result.Name)
	assert.Nil(t, response.Result.ParentID)

	empty := api.do(t, http.MethodPost, "/api/admin/categories", token, AddCategoryRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestDeleteCategory_PromotesChildrenAndOrphansProducts(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	root := api.store.AddCategory("Kleidung", nil)
	child := api.store.AddCategory("Jacken", &root.ID)
	product := api.store.AddProduct("Parka", "L", &root.ID)

	w := api.do(t, http.MethodDelete, "/api/admin/categories/"+strconv.FormatInt(root.ID, 10), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Success bool `json:"success"`
		Result  struct {
			Deleted          bool  `json:"deleted"`
			PromotedChildren int64 `json:"promoted_children"`
			OrphanedProducts int64 `json:"orphaned_products"`
		} `json:"result"`
	}
	decodeBody(t, w, &response)
	assert.True(t, response.Result.Deleted)
	assert.EqualValues(t, 1, response.Result.PromotedChildren)
	assert.EqualValues(t, 1, response.Result.OrphanedProducts)

	parent, err := api.store.Categories().ParentOf(t.Context(), child.ID)
	require.NoError(t, err)
	assert.Nil(t, parent)
	found, err := api.store.Products().FindByID(t.Context(), product.ID)
	require.NoError(t, err)
	assert.Nil(t, found.CategoryID)

	// deleting again is a no-op
	again := api.do(t, http.MethodDelete, "/api/admin/categories/"+strconv.FormatInt(root.ID, 10), token, nil)
	require.Equal(t, http.StatusOK, again.Code)
	decodeBody(t, again, &response)
	assert.False(t, response.Result.Deleted)
}

func TestDeleteRoutesRejectMalformedIDs(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	for _, path := range []string{"/api/admin/categories/abc", "/api/admin/products/0", "/api/admin/products/-3"} {
		w := api.do(t, http.MethodDelete, path, token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestMoveCategory(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	a := api.store.AddCategory("A", nil)
	b := api.store.AddCategory("B", &a.ID)

	cycle := api.do(t, http.MethodPost, "/api/admin/categories/move", token, MoveCategoryRequest{CategoryID: a.ID, NewParentID: &b.ID})
	assert.Equal(t, http.StatusConflict, cycle.Code)

	self := api.do(t, http.MethodPost, "/api/admin/categories/move", token, MoveCategoryRequest{CategoryID: a.ID, NewParentID: &a.ID})
	assert.Equal(t, http.StatusConflict, self.Code)

	missing := api.do(t, http.MethodPost, "/api/admin/categories/move", token, MoveCategoryRequest{CategoryID: a.ID, NewParentID: int64Ptr(999)})
	assert.Equal(t, http.StatusNotFound, missing.Code)

	// zero means top level
	top := api.do(t, http.MethodPost, "/api/admin/categories/move", token, MoveCategoryRequest{CategoryID: b.ID, NewParentID: int64Ptr(0)})
	require.Equal(t, http.StatusOK, top.Code)
	parent, err := api.store.Categories().ParentOf(t.Context(), b.ID)
	require.NoError(t, err)
	assert.Nil(t, parent)

	under := api.do(t, http.MethodPost, "/api/admin/categories/move", token, MoveCategoryRequest{CategoryID: a.ID, NewParentID: &b.ID})
	require.Equal(t, http.StatusOK, under.Code)
	parent, err = api.store.Categories().ParentOf(t.Context(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, b.ID, *parent)
}

func TestMoveProducts(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	jacken := api.store.AddCategory("Jacken", nil)
	parka := api.store.AddProduct("Parka", "L", nil)
	mantel := api.store.AddProduct("Mantel", "M", nil)

	w := api.do(t, http.MethodPost, "/api/admin/products/move", token, MoveProductsRequest{
		ProductIDs:    []int64{parka.ID, mantel.ID, 999},
		NewCategoryID: &jacken.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Result struct {
			Requested int   `json:"requested"`
			Moved     int64 `json:"moved"`
		} `json:"result"`
	}
	decodeBody(t, w, &response)
	assert.Equal(t, 3, response.Result.Requested)
	assert.EqualValues(t, 2, response.Result.Moved)

	back := api.do(t, http.MethodPost, "/api/admin/products/move", token, MoveProductsRequest{
		ProductIDs:    []int64{parka.ID},
		NewCategoryID: int64Ptr(0),
	})
	require.Equal(t, http.StatusOK, back.Code)
	found, err := api.store.Products().FindByID(t.Context(), parka.ID)
	require.NoError(t, err)
	assert.Nil(t, found.CategoryID)

	missing := api.do(t, http.MethodPost, "/api/admin/products/move", token, MoveProductsRequest{
		ProductIDs:    []int64{mantel.ID},
		NewCategoryID: int64Ptr(999),
	})
	assert.Equal(t, http.StatusNotFound, missing.Code)

	empty := api.do(t, http.MethodPost, "/api/admin/products/move", token, MoveProductsRequest{ProductIDs: []int64{}})
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestMoveProducts_IgnoresNonPositiveIDs(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)

	jacken := api.store.AddCategory("Jacken", nil)
	parka := api.store.AddProduct("Parka", "L", nil)

	w := api.do(t, http.MethodPost, "/api/admin/products/move", token, MoveProductsRequest{
		ProductIDs:    []int64{parka.ID, 0, -3},
		NewCategoryID: &jacken.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Message string `json:"message"`
		Result  struct {
			Requested int   `json:"requested"`
			Moved     int64 `json:"moved"`
		} `json:"result"`
	}
	decodeBody(t, w, &response)
	assert.Equal(t, 3, response.Result.Requested)
	assert.EqualValues(t, 1, response.Result.Moved)
	assert.Equal(t, "3 Produkte verschoben", response.Message)

	found, err := api.store.Products().FindByID(t.Context(), parka.ID)
	require.NoError(t, err)
	require.NotNil(t, found.CategoryID)
	assert.Equal(t, jacken.ID, *found.CategoryID)
}

func TestDeleteProductRemovesSelections(t *testing.T) {
	api := newTestAPI(t)
	token := api.adminToken(t)
	_, anna := api.userToken(t, "Anna", "K-17")

	parka := api.store.AddProduct("Parka", "L", nil)
	_, err := api.store.Selections().Upsert(t.Context(), anna.ID, parka.ID, 2)
	require.NoError(t, err)

	w := api.do(t, http.MethodDelete, "/api/admin/products/"+strconv.FormatInt(parka.ID, 10), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Result struct {
			Deleted           bool `json:"deleted"`
			RemovedSelections int  `json:"removed_selections"`
		} `json:"result"`
	}
	decodeBody(t, w, &response)
	assert.True(t, response.Result.Deleted)
	assert.Equal(t, 1, response.Result.RemovedSelections)
	assert.Empty(t, api.store.SelectionsOf(anna.ID))
}

func TestDashboardByRole(t *testing.T) {
	api := newTestAPI(t)
	adminToken := api.adminToken(t)
	userToken, anna := api.userToken(t, "Anna", "K-17")

	jacken := api.store.AddCategory("Jacken", nil)
	parka := api.store.AddProduct("Parka", "L", &jacken.ID)
	api.store.AddProduct("Schal", "one size", nil)
	_, err := api.store.Selections().Upsert(t.Context(), anna.ID, parka.ID, 3)
	require.NoError(t, err)

	userView := api.do(t, http.MethodGet, "/api/dashboard", userToken, nil)
	require.Equal(t, http.StatusOK, userView.Code)
	var user dashboardBody
	decodeBody(t, userView, &user)
	assert.Equal(t, domain.RoleUser, user.Role)
	require.Len(t, user.Categories, 1)
	assert.Equal(t, "Jacken", user.Categories[0].Name)
	require.Len(t, user.Categories[0].Products, 1)
	require.Len(t, user.Unassigned, 1)
	assert.Equal(t, map[string]int{strconv.FormatInt(parka.ID, 10): 3}, user.Selections)
	assert.Empty(t, user.Users)

	adminView := api.do(t, http.MethodGet, "/api/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, adminView.Code)
	var admin dashboardBody
	decodeBody(t, adminView, &admin)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.Len(t, admin.Users, 1)
	assert.Empty(t, admin.Selections)

	totals := map[string]int{}
	for _, item := range admin.Summary {
		totals[item.Name] = item.TotalQuantity
	}
	assert.Equal(t, map[string]int{"Parka": 3, "Schal": 0}, totals)
}

func TestDashboardRequiresToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
