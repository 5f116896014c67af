package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kleiderkammer/internal/domain"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
)

const refreshTokenColumns = `id, user_id, token, expires_at, created_at, revoked`

// RefreshTokenRepository stores the long-lived login sessions handed out at login
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	// FindByToken returns ErrRefreshTokenRevoked for tokens that were logged out.
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	// Purge deletes revoked tokens and tokens that expired before the given
	// time. It returns the number of deleted rows.
	Purge(ctx context.Context, expiredBefore time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db DBTX
}

// NewRefreshTokenRepository creates a new instance of RefreshTokenRepository
func NewRefreshTokenRepository(db DBTX) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

// Create stores a session for an existing user
func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt, token.Revoked,
	)
	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err) {
		return ErrUserNotFound
	}
	return fmt.Errorf("failed to store session of user %d: %w", token.UserID, err)
}

func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token = $1`, token)

	var session domain.RefreshToken
	err := row.Scan(&session.ID, &session.UserID, &session.Token, &session.ExpiresAt, &session.CreatedAt, &session.Revoked)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrRefreshTokenNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	case session.Revoked:
		return nil, ErrRefreshTokenRevoked
	}

	return &session, nil
}

// Revoke is idempotent for known tokens; unknown tokens yield ErrRefreshTokenNotFound
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1 RETURNING user_id`, token,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRefreshTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) Purge(ctx context.Context, expiredBefore time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE revoked OR expires_at < $1`, expiredBefore,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return purged, nil
}
