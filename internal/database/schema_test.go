package database

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"testing"

	"kleiderkammer/internal/domain"
)

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := fs.ReadFile(embedMigrations, path.Join(migrationsDir, name))
	if err != nil {
		t.Fatalf("Failed to read migration file %s: %v", name, err)
	}
	return string(content)
}

func TestMigrationFilesExist(t *testing.T) {
	expectedMigrations := []string{
		"00001_create_users_table.sql",
		"00002_create_refresh_tokens_table.sql",
		"00003_create_categories_table.sql",
		"00004_create_products_table.sql",
		"00005_create_selections_table.sql",
	}

	for _, migration := range expectedMigrations {
		if _, err := fs.Stat(embedMigrations, path.Join(migrationsDir, migration)); err != nil {
			t.Errorf("Migration file %s is not embedded: %v", migration, err)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := fs.ReadDir(embedMigrations, migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		contentStr := readMigration(t, file.Name())

		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(contentStr, directive) {
				t.Errorf("Migration file %s missing '%s' directive", file.Name(), directive)
			}
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	expectedTables := map[string]string{
		"users":          "00001_create_users_table.sql",
		"refresh_tokens": "00002_create_refresh_tokens_table.sql",
		"categories":     "00003_create_categories_table.sql",
		"products":       "00004_create_products_table.sql",
		"selections":     "00005_create_selections_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		contentStr := readMigration(t, migrationFile)

		if !strings.Contains(contentStr, "CREATE TABLE IF NOT EXISTS "+tableName) {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}
		if !strings.Contains(contentStr, "DROP TABLE IF EXISTS "+tableName) {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestUsersTableHasUniqueCredentials(t *testing.T) {
	contentStr := readMigration(t, "00001_create_users_table.sql")

	for _, fragment := range []string{
		"UNIQUE (username)",
		"UNIQUE (bekleidungsnummer)",
		"CHECK (role IN ('admin', 'user'))",
		"password_hash VARCHAR(255),",
	} {
		if !strings.Contains(contentStr, fragment) {
			t.Errorf("Users table missing definition: %s", fragment)
		}
	}
}

func TestCatalogForeignKeysDetachOnDelete(t *testing.T) {
	categories := readMigration(t, "00003_create_categories_table.sql")
	if !strings.Contains(categories, "FOREIGN KEY (parent_id) REFERENCES categories(id) ON DELETE SET NULL") {
		t.Error("Categories table must detach children when the parent is deleted")
	}
	if !strings.Contains(categories, "parent_id <> id") {
		t.Error("Categories table must reject self-parenting")
	}

	products := readMigration(t, "00004_create_products_table.sql")
	if !strings.Contains(products, "FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE SET NULL") {
		t.Error("Products table must become unassigned when the category is deleted")
	}
}

func TestSelectionsTableConstraints(t *testing.T) {
	contentStr := readMigration(t, "00005_create_selections_table.sql")

	if !strings.Contains(contentStr, "UNIQUE (user_id, product_id)") {
		t.Error("Selections table missing unique constraint on (user_id, product_id)")
	}
	if !strings.Contains(contentStr, "CHECK (quantity > 0)") {
		t.Error("Selections table must reject non-positive quantities")
	}
	if !strings.Contains(contentStr, fmt.Sprintf("CHECK (quantity <= %d)", domain.MaxSelectionQuantity)) {
		t.Error("Selections table must cap quantities at the request limit")
	}
	if !strings.Contains(contentStr, "REFERENCES products(id) ON DELETE CASCADE") {
		t.Error("Selections must be removed with their product")
	}
	if !strings.Contains(contentStr, "REFERENCES users(id) ON DELETE CASCADE") {
		t.Error("Selections must be removed with their user")
	}
}
