package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for admin password hashes
	BcryptCost = 10

	// Default token lifetimes, used when TokenSettings leaves them zero
	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour

	maxUsernameLength          = 100
	maxBekleidungsnummerLength = 20
)

// UserService defines the interface for account and token handling
type UserService interface {
	Register(ctx context.Context, username, bekleidungsnummer string) (*domain.User, error)
	Login(ctx context.Context, username, identifier string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)
	// EnsureAdmin creates the admin account unless an admin already exists.
	EnsureAdmin(ctx context.Context, username, password, bekleidungsnummer string) (bool, error)
	// PurgeSessions drops logged out and expired refresh tokens.
	PurgeSessions(ctx context.Context) (int64, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenSettings configures token signing and lifetimes
type TokenSettings struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type userService struct {
	store    repository.Store
	settings TokenSettings
}

// NewUserService creates a new instance of UserService
func NewUserService(store repository.Store, settings TokenSettings) UserService {
	if settings.AccessExpiry <= 0 {
		settings.AccessExpiry = AccessTokenExpiration
	}
	if settings.RefreshExpiry <= 0 {
		settings.RefreshExpiry = RefreshTokenExpiration
	}
	return &userService{store: store, settings: settings}
}

// Register creates a new account with the user role
func (s *userService) Register(ctx context.Context, username, bekleidungsnummer string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	bekleidungsnummer = strings.TrimSpace(bekleidungsnummer)

	if username == "" {
		return nil, domain.NewValidationError("username", "must not be empty")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, domain.NewValidationError("username", fmt.Sprintf("must be at most %d characters", maxUsernameLength))
	}
	if bekleidungsnummer == "" {
		return nil, domain.NewValidationError("bekleidungsnummer", "must not be empty")
	}
	if utf8.RuneCountInString(bekleidungsnummer) > maxBekleidungsnummerLength {
		return nil, domain.NewValidationError("bekleidungsnummer", fmt.Sprintf("must be at most %d characters", maxBekleidungsnummerLength))
	}

	user := &domain.User{
		Username:          username,
		Role:              domain.RoleUser,
		Bekleidungsnummer: bekleidungsnummer,
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, fmt.Errorf("username or bekleidungsnummer already taken: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates an account and returns JWT tokens. Admins present
// their password as identifier, users their bekleidungsnummer.
func (s *userService) Login(ctx context.Context, username, identifier string) (accessToken, refreshToken string, user *domain.User, err error) {
	user, err = s.store.Users().FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.checkIdentifier(user, identifier) {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

func (s *userService) checkIdentifier(user *domain.User, identifier string) bool {
	switch user.Role {
	case domain.RoleAdmin:
		if user.PasswordHash == nil {
			return false
		}
		return s.verifyPassword(*user.PasswordHash, identifier) == nil
	case domain.RoleUser:
		return subtle.ConstantTimeCompare([]byte(user.Bekleidungsnummer), []byte(identifier)) == 1
	default:
		return false
	}
}

// Logout invalidates the refresh token
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.store.RefreshTokens().Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Token doesn't exist, consider it already logged out
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *userService) PurgeSessions(ctx context.Context) (int64, error) {
	purged, err := s.store.RefreshTokens().Purge(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", err)
	}
	return purged, nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error) {
	refreshToken, err := s.store.RefreshTokens().FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	user, err := s.store.Users().FindByID(ctx, refreshToken.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	newAccessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.settings.Secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, notFound("user", userID, err)
	}
	return user, nil
}

// EnsureAdmin reports whether a new admin account was created
func (s *userService) EnsureAdmin(ctx context.Context, username, password, bekleidungsnummer string) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" || strings.TrimSpace(bekleidungsnummer) == "" {
		return false, domain.NewValidationError("admin", "username, password and bekleidungsnummer are required")
	}

	created := false
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		exists, err := tx.Users().ExistsWithRole(ctx, domain.RoleAdmin)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		hash, err := s.hashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		admin := &domain.User{
			Username:          strings.TrimSpace(username),
			PasswordHash:      &hash,
			Role:              domain.RoleAdmin,
			Bekleidungsnummer: strings.TrimSpace(bekleidungsnummer),
		}
		if err := tx.Users().Create(ctx, admin); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	return created, nil
}

// hashPassword hashes a password using bcrypt
func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// verifyPassword verifies a password against a bcrypt hash
func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken generates a JWT access token carrying the caller identity
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Role:     user.Role.String(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.settings.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.settings.Secret))
}

// generateRefreshToken generates a refresh token and stores it
func (s *userService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	tokenString := uuid.New().String()
	now := time.Now()

	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: now.Add(s.settings.RefreshExpiry),
		CreatedAt: now,
		Revoked:   false,
	}

	if err := s.store.RefreshTokens().Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return tokenString, nil
}
