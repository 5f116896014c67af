package transport

import (
	"encoding/json"
	"net/http"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/middleware"
	"kleiderkammer/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username          string `json:"username" validate:"required,notblank"`
	Bekleidungsnummer string `json:"bekleidungsnummer" validate:"required,notblank"`
}

// LoginRequest represents the login request payload. Admins send their
// password as identifier, users their bekleidungsnummer.
type LoginRequest struct {
	Username   string `json:"username" validate:"required"`
	Identifier string `json:"identifier" validate:"required"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserProfile `json:"user"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID                int64       `json:"id"`
	Username          string      `json:"username"`
	Bekleidungsnummer string      `json:"bekleidungsnummer"`
	Role              domain.Role `json:"role"`
}

func profileOf(user *domain.User) UserProfile {
	return UserProfile{
		ID:                user.ID,
		Username:          user.Username,
		Bekleidungsnummer: user.Bekleidungsnummer,
		Role:              user.Role,
	}
}

// AuthHandler handles account and token endpoints
type AuthHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService service.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers all auth routes. loginLimiter may be nil.
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMiddleware, loginLimiter func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		// Public routes
		r.Post("/register", h.Register)
		r.Post("/refresh", h.RefreshToken)
		if loginLimiter != nil {
			r.With(loginLimiter).Post("/login", h.Login)
		} else {
			r.Post("/login", h.Login)
		}

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.GetProfile)
		})
	})
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	user, err := h.userService.Register(r.Context(), req.Username, req.Bekleidungsnummer)
	if err != nil {
		h.logger.Debug("Registration failed", zap.Error(err))
		respondWithServiceError(w, h.logger, err, "failed to register user")
		return
	}

	h.logger.Info("User registered successfully", zap.Int64("user_id", user.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, profileOf(user))
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	accessToken, refreshToken, user, err := h.userService.Login(r.Context(), req.Username, req.Identifier)
	if err != nil {
		h.logger.Debug("Login failed", zap.String("username", req.Username), zap.Error(err))
		respondWithServiceError(w, h.logger, err, "failed to login")
		return
	}

	h.logger.Info("User logged in successfully",
		zap.Int64("user_id", user.ID),
		zap.Stringer("role", user.Role),
	)
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         profileOf(user),
	})
}

// Logout handles user logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Logout decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.userService.Logout(r.Context(), req.RefreshToken); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to logout")
		return
	}

	h.logger.Info("User logged out successfully")
	respondWithAction(w, http.StatusOK, "logged out successfully", nil)
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	newAccessToken, err := h.userService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Debug("Token refresh failed", zap.Error(err))
		respondWithServiceError(w, h.logger, err, "failed to refresh token")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, RefreshResponse{AccessToken: newAccessToken})
}

// GetProfile returns the account of the caller
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), caller.ID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get user profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, profileOf(user))
}
