package middleware

import (
	"net/http"

	"kleiderkammer/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin middleware ensures the caller has the admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin, logger)
}

// RequireRole middleware lets a request through only when the caller holds
// exactly the required role. Denied requests get 403 and never reach the handler.
func RequireRole(required domain.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				logger.Warn("Caller not found in context")
				RespondWithError(w, http.StatusForbidden, domain.ErrForbidden.Error())
				return
			}

			if err := domain.Authorize(caller, required); err != nil {
				logger.Warn("Caller role not authorized",
					zap.Int64("user_id", caller.ID),
					zap.Stringer("role", caller.Role),
					zap.Stringer("required_role", required),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusForbidden, domain.ErrForbidden.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
