package service

import (
	"errors"
	"fmt"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or identifier")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// notFound maps repository lookups to domain.ErrNotFound so handlers only
// need to know the domain errors.
func notFound(entity string, id int64, err error) error {
	switch {
	case errors.Is(err, repository.ErrCategoryNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("%s %d: %w", entity, id, domain.ErrNotFound)
	default:
		return err
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrCategoryNotFound) ||
		errors.Is(err, repository.ErrProductNotFound) ||
		errors.Is(err, repository.ErrUserNotFound)
}
