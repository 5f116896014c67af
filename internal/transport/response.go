package transport

import (
	"errors"
	"net/http"
	"strconv"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/middleware"
	"kleiderkammer/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ActionResponse is returned by every mutating endpoint
type ActionResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Result  interface{} `json:"result,omitempty"`
}

func respondWithAction(w http.ResponseWriter, statusCode int, message string, result interface{}) {
	middleware.RespondWithJSON(w, statusCode, ActionResponse{
		Success: true,
		Message: message,
		Result:  result,
	})
}

// respondWithServiceError maps service and domain errors to HTTP responses.
// Unknown errors are logged and reported as 500 with the fallback message.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var validationErr *domain.ValidationError
	var importErr *domain.ImportError

	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: validationErr.Field, Message: validationErr.Message},
		})
	case errors.As(err, &importErr):
		logger.Warn("Import rejected", zap.Error(importErr.Err))
		middleware.RespondWithError(w, http.StatusBadRequest, importErr.Error())
	case errors.Is(err, domain.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCycle):
		middleware.RespondWithError(w, http.StatusConflict, domain.ErrCycle.Error())
	case errors.Is(err, domain.ErrConflict):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid username or identifier")
	case errors.Is(err, service.ErrInvalidToken):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, service.ErrTokenExpired):
		middleware.RespondWithError(w, http.StatusUnauthorized, "refresh token expired")
	default:
		logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeRequest decodes and validates the JSON body and writes the error
// response itself. It reports whether the handler may continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// requireCaller loads the authenticated caller set by the auth middleware
func requireCaller(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (domain.Caller, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		logger.Error("Caller not found in context", zap.String("path", r.URL.Path))
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return domain.Caller{}, false
	}
	return caller, true
}

// idParam parses a positive numeric path parameter
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// optionalID treats nil and 0 as "no target"
func optionalID(id *int64) *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}
