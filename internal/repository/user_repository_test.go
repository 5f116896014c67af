package repository

import (
	"context"
	"errors"
	"testing"

	"kleiderkammer/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

func TestProperty_AdminPasswordsAreStoredHashed(t *testing.T) {
	resetDB(t)
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(username string, password string, number string) bool {
			_, _ = testDB.Exec("DELETE FROM users WHERE username = $1 OR bekleidungsnummer = $2", username, number)

			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
			if err != nil {
				t.Logf("Failed to hash password: %v", err)
				return false
			}
			hash := string(hashedPassword)

			user := &domain.User{
				Username:          username,
				PasswordHash:      &hash,
				Role:              domain.RoleAdmin,
				Bekleidungsnummer: number,
			}
			if err := repo.Create(ctx, user); err != nil {
				t.Logf("Failed to create user: %v", err)
				return false
			}
			if user.ID == 0 {
				t.Logf("Create did not assign an ID")
				return false
			}

			retrieved, err := repo.FindByUsername(ctx, username)
			if err != nil {
				t.Logf("Failed to find user: %v", err)
				return false
			}
			if retrieved.PasswordHash == nil || *retrieved.PasswordHash == password {
				t.Logf("Password was not stored hashed")
				return false
			}
			if err := bcrypt.CompareHashAndPassword([]byte(*retrieved.PasswordHash), []byte(password)); err != nil {
				t.Logf("Stored password is not a valid bcrypt hash: %v", err)
				return false
			}

			_, _ = testDB.Exec("DELETE FROM users WHERE id = $1", user.ID)
			return retrieved.Role == domain.RoleAdmin
		},
		gen.RegexMatch(`[A-Z][a-z]{4,15}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[0-9]{4,8}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserRepository_UniqueCredentials(t *testing.T) {
	resetDB(t)
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	first := &domain.User{Username: "Anna", Role: domain.RoleUser, Bekleidungsnummer: "1001"}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	sameName := &domain.User{Username: "Anna", Role: domain.RoleUser, Bekleidungsnummer: "1002"}
	if err := repo.Create(ctx, sameName); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("Expected ErrUserAlreadyExists for duplicate username, got %v", err)
	}

	sameNumber := &domain.User{Username: "Berta", Role: domain.RoleUser, Bekleidungsnummer: "1001"}
	if err := repo.Create(ctx, sameNumber); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("Expected ErrUserAlreadyExists for duplicate bekleidungsnummer, got %v", err)
	}
}

func TestUserRepository_FindAndListByRole(t *testing.T) {
	resetDB(t)
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	exists, err := repo.ExistsWithRole(ctx, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("ExistsWithRole failed: %v", err)
	}
	if exists {
		t.Fatal("Expected no admin in an empty database")
	}

	for _, u := range []*domain.User{
		{Username: "Carl", Role: domain.RoleUser, Bekleidungsnummer: "2"},
		{Username: "Admin", Role: domain.RoleAdmin, Bekleidungsnummer: "ADMIN"},
		{Username: "Bea", Role: domain.RoleUser, Bekleidungsnummer: "1"},
	} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("Failed to create user %s: %v", u.Username, err)
		}
	}

	exists, err = repo.ExistsWithRole(ctx, domain.RoleAdmin)
	if err != nil || !exists {
		t.Fatalf("Expected an admin to exist, got %v (err %v)", exists, err)
	}

	users, err := repo.ListByRole(ctx, domain.RoleUser)
	if err != nil {
		t.Fatalf("ListByRole failed: %v", err)
	}
	if len(users) != 2 || users[0].Username != "Bea" || users[1].Username != "Carl" {
		t.Errorf("Expected [Bea Carl], got %d users", len(users))
	}
	for _, u := range users {
		if u.PasswordHash != nil {
			t.Errorf("User %s should not have a password hash", u.Username)
		}
	}

	found, err := repo.FindByID(ctx, users[0].ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if found.Bekleidungsnummer != "1" {
		t.Errorf("Expected bekleidungsnummer 1, got %s", found.Bekleidungsnummer)
	}

	if _, err := repo.FindByID(ctx, 999999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.FindByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
