package transport

import (
	"net/http"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/middleware"
	"kleiderkammer/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ApplySelectionsRequest maps product IDs to requested quantities.
// A quantity of zero removes the selection; quantities above
// domain.MaxSelectionQuantity are rejected.
type ApplySelectionsRequest struct {
	Entries map[int64]int `json:"entries" validate:"required,dive,keys,gt=0,endkeys,lte=9999"`
}

// SelectionHandler handles the selection endpoint of regular users
type SelectionHandler struct {
	selectionService service.SelectionService
	logger           *zap.Logger
}

// NewSelectionHandler creates a new SelectionHandler
func NewSelectionHandler(selectionService service.SelectionService, logger *zap.Logger) *SelectionHandler {
	return &SelectionHandler{
		selectionService: selectionService,
		logger:           logger,
	}
}

// RegisterRoutes registers the selection routes
func (h *SelectionHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireRole(domain.RoleUser, h.logger))
		r.Put("/api/selections", h.ApplySelections)
	})
}

// ApplySelections stores the submitted quantities of the caller
func (h *SelectionHandler) ApplySelections(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req ApplySelectionsRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	result, err := h.selectionService.Apply(r.Context(), caller, req.Entries)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to save selections")
		return
	}

	h.logger.Info("Selections saved",
		zap.Int64("user_id", caller.ID),
		zap.Int("upserted", result.Upserted),
		zap.Int("removed", result.Removed),
		zap.Int("skipped", result.Skipped),
	)
	respondWithAction(w, http.StatusOK, "Auswahl gespeichert", result)
}
