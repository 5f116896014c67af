package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"kleiderkammer/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	CallerKey contextKey = "caller"
)

// AuthMiddleware validates the bearer access token and stores the caller in
// the request context. Tokens must be HS256-signed with jwtSecret and carry an
// expiry.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(jwtSecret), nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				logger.Debug("Rejected authorization header", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims := jwt.MapClaims{}
			if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				message := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					message = "token expired"
				}
				RespondWithError(w, http.StatusUnauthorized, message)
				return
			}

			caller, err := callerFromClaims(claims)
			if err != nil {
				logger.Warn("Rejected token claims", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			logger.Debug("User authenticated",
				zap.Int64("user_id", caller.ID),
				zap.Stringer("role", caller.Role),
			)

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.Contains(token, " ") {
		return "", errors.New("invalid authorization header format")
	}
	return token, nil
}

func callerFromClaims(claims jwt.MapClaims) (domain.Caller, error) {
	// JSON numbers decode as float64
	rawID, ok := claims["user_id"].(float64)
	if !ok || rawID <= 0 || rawID != float64(int64(rawID)) {
		return domain.Caller{}, errors.New("missing or malformed user_id")
	}

	roleName, ok := claims["role"].(string)
	if !ok {
		return domain.Caller{}, errors.New("missing role")
	}
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return domain.Caller{}, err
	}

	username, _ := claims["username"].(string)

	return domain.Caller{ID: int64(rawID), Role: role, Username: username}, nil
}

// WithCaller returns a copy of ctx carrying the authenticated caller
func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// CallerFromContext extracts the authenticated caller from the request context
func CallerFromContext(ctx context.Context) (domain.Caller, bool) {
	caller, ok := ctx.Value(CallerKey).(domain.Caller)
	return caller, ok
}
