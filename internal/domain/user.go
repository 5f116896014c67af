package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account. Admins sign in with a password, users with their
// Bekleidungsnummer (clothing number).
type User struct {
	ID                int64     `json:"id"`
	Username          string    `json:"username"`
	PasswordHash      *string   `json:"-"`
	Role              Role      `json:"role"`
	Bekleidungsnummer string    `json:"bekleidungsnummer"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Caller returns the identity used for authorization checks.
func (u *User) Caller() Caller {
	return Caller{ID: u.ID, Role: u.Role, Username: u.Username}
}

// RefreshToken is a long-lived token used to obtain new access tokens
type RefreshToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `json:"revoked"`
}
