package transport

import (
	"errors"
	"fmt"
	"net/http"

	"kleiderkammer/internal/middleware"
	"kleiderkammer/internal/service"
	"kleiderkammer/internal/spreadsheet"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ImportFormField is the multipart field carrying the workbook
const ImportFormField = "excel_file"

// ImportHandler handles spreadsheet uploads
type ImportHandler struct {
	importService  service.ImportService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(importService service.ImportService, maxUploadBytes int64, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importService:  importService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers the import route
func (h *ImportHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin(h.logger))
		r.Post("/api/admin/import", h.Import)
	})
}

// Import creates unassigned products from the first sheet of an uploaded workbook
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile(ImportFormField)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the limit of %d bytes", maxBytesErr.Limit))
		case errors.Is(err, http.ErrMissingFile):
			middleware.RespondWithError(w, http.StatusBadRequest, "no file uploaded in field "+ImportFormField)
		default:
			h.logger.Debug("Failed to parse upload", zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart upload")
		}
		return
	}
	defer file.Close()

	rows, err := spreadsheet.Open(file, header.Filename)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to read workbook")
		return
	}

	result, err := h.importService.Import(r.Context(), caller, rows)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to import workbook")
		return
	}

	h.logger.Info("Workbook imported",
		zap.String("filename", header.Filename),
		zap.Int("examined", result.Examined),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)
	respondWithAction(w, http.StatusOK,
		fmt.Sprintf("%d Produkte importiert, %d Zeilen übersprungen", result.Imported, result.Skipped), result)
}
