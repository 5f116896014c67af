package transport

import (
	"fmt"
	"net/http"

	"kleiderkammer/internal/middleware"
	"kleiderkammer/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddCategoryRequest represents the payload for creating a category
type AddCategoryRequest struct {
	Name string `json:"name" validate:"required,notblank"`
}

// MoveCategoryRequest represents the payload for re-parenting a category.
// A null or zero newParentId makes the category top-level.
type MoveCategoryRequest struct {
	CategoryID  int64  `json:"categoryId" validate:"required,gt=0"`
	NewParentID *int64 `json:"newParentId" validate:"omitempty,gte=0"`
}

// MoveProductsRequest represents the payload for moving products.
// A null or zero newCategoryId moves them to the unassigned pool. Product IDs
// that match no product, including non-positive ones, are ignored.
type MoveProductsRequest struct {
	ProductIDs    []int64 `json:"productIds" validate:"required,min=1"`
	NewCategoryID *int64  `json:"newCategoryId" validate:"omitempty,gte=0"`
}

// CatalogHandler handles the dashboard and the admin catalog endpoints
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers the dashboard and all catalog administration routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/api/dashboard", h.Dashboard)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Post("/api/admin/categories", h.AddCategory)
			r.Post("/api/admin/categories/move", h.MoveCategory)
			r.Delete("/api/admin/categories/{id}", h.DeleteCategory)
			r.Post("/api/admin/products/move", h.MoveProducts)
			r.Delete("/api/admin/products/{id}", h.DeleteProduct)
		})
	})
}

// Dashboard returns the category tree and the view for the caller's role
func (h *CatalogHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	dashboard, err := h.catalogService.Dashboard(r.Context(), caller)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to load dashboard")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, dashboard)
}

// AddCategory handles category creation
func (h *CatalogHandler) AddCategory(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req AddCategoryRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	category, err := h.catalogService.AddCategory(r.Context(), caller, req.Name)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to add category")
		return
	}

	h.logger.Info("Category added", zap.Int64("category_id", category.ID), zap.String("name", category.Name))
	respondWithAction(w, http.StatusCreated, fmt.Sprintf("Kategorie '%s' hinzugefügt", category.Name), category)
}

// DeleteCategory handles category deletion
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	id, err := idParam(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, err, "invalid category id")
		return
	}

	result, err := h.catalogService.DeleteCategory(r.Context(), caller, id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to delete category")
		return
	}

	message := "Kategorie gelöscht"
	if !result.Deleted {
		message = "Kategorie nicht gefunden"
	}

	h.logger.Info("Category delete processed",
		zap.Int64("category_id", id),
		zap.Bool("deleted", result.Deleted),
		zap.Int64("promoted_children", result.PromotedChildren),
		zap.Int64("orphaned_products", result.OrphanedProducts),
	)
	respondWithAction(w, http.StatusOK, message, result)
}

// MoveCategory handles re-parenting a category
func (h *CatalogHandler) MoveCategory(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req MoveCategoryRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	newParentID := optionalID(req.NewParentID)
	if err := h.catalogService.MoveCategory(r.Context(), caller, req.CategoryID, newParentID); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to move category")
		return
	}

	h.logger.Info("Category moved", zap.Int64("category_id", req.CategoryID), zap.Int64p("new_parent_id", newParentID))
	respondWithAction(w, http.StatusOK, "Kategorie verschoben", nil)
}

// DeleteProduct handles product deletion
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	id, err := idParam(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, err, "invalid product id")
		return
	}

	result, err := h.catalogService.DeleteProduct(r.Context(), caller, id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to delete product")
		return
	}

	message := "Produkt gelöscht"
	if !result.Deleted {
		message = "Produkt nicht gefunden"
	}

	h.logger.Info("Product delete processed",
		zap.Int64("product_id", id),
		zap.Bool("deleted", result.Deleted),
		zap.Int("removed_selections", result.RemovedSelections),
	)
	respondWithAction(w, http.StatusOK, message, result)
}

// MoveProducts handles moving products to another category
func (h *CatalogHandler) MoveProducts(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req MoveProductsRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	newCategoryID := optionalID(req.NewCategoryID)
	result, err := h.catalogService.MoveProducts(r.Context(), caller, req.ProductIDs, newCategoryID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to move products")
		return
	}

	h.logger.Info("Products moved",
		zap.Int("requested", result.Requested),
		zap.Int64("moved", result.Moved),
		zap.Int64p("new_category_id", newCategoryID),
	)
	respondWithAction(w, http.StatusOK, fmt.Sprintf("%d Produkte verschoben", result.Requested), result)
}
