package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/google/uuid"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}

	names, err := EmbeddedFiles()
	if err != nil {
		t.Fatalf("list embedded: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 embedded migrations, got %v", names)
	}
}

func TestMigrationsContainSchemas(t *testing.T) {
	checks := map[string][]string{
		"*_create_users.sql": {
			"CREATE TABLE IF NOT EXISTS users",
			"CREATE UNIQUE INDEX IF NOT EXISTS users_email_key",
			"CREATE TABLE IF NOT EXISTS user_roles",
			"CHECK (role IN ('user', 'admin'))",
		},
		"*_create_products.sql": {
			"CREATE TABLE IF NOT EXISTS products",
			"CHECK (stock >= 0)",
		},
		"*_create_wishlist_items.sql": {
			"CREATE TABLE IF NOT EXISTS wishlist_items",
			"CREATE UNIQUE INDEX IF NOT EXISTS wishlist_items_user_product_key",
		},
	}

	for pattern, wants := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil || len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %v (%v)", pattern, matches, err)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		for _, want := range wants {
			if !strings.Contains(string(data), want) {
				t.Errorf("%s missing expected statement %q", matches[0], want)
			}
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Product Tags!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_product_tags.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected error for name without usable characters")
	}
}

func TestCreateSQLMigrationRefusesDuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path, err := createAt(dir, "seed products", at)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260301120000_seed_products.sql" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}
	if _, err := createAt(dir, "seed products", at); err == nil {
		t.Fatal("expected duplicate migration error")
	}
}

func TestValidateFSRejectsDownBeforeUp(t *testing.T) {
	fsys := fstest.MapFS{
		"20260301120000_swap.sql": {Data: []byte("-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x (id INT);\n")},
	}
	if err := ValidateFS(fsys, "."); err == nil {
		t.Fatal("expected section order error")
	}
}

func TestValidateFSRejectsDuplicateVersions(t *testing.T) {
	body := []byte("-- +goose Up\n-- +goose Down\n")
	fsys := fstest.MapFS{
		"20260301120000_a.sql": {Data: body},
		"20260301120000_b.sql": {Data: body},
	}
	if err := ValidateFS(fsys, "."); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "oops.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestApplyOnSQLite(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()

	if err := Apply(ctx, client, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, table := range []string{"users", "user_roles", "products", "wishlist_items"} {
		if !client.DB().Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}
}
