package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandaruwanb/lankamart-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestSupplierItemsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_supplier_items.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS supplier_items",
		"CHECK (stock_level >= 0)",
		"DROP TABLE IF EXISTS supplier_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"order_number text NOT NULL UNIQUE",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"CHECK (quantity >= 1)",
		"DROP TABLE IF EXISTS payments",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCartsMigrationEnforcesOneRowPerProduct(t *testing.T) {
	content := readMigration(t, "*_create_carts.sql")
	if !strings.Contains(content, "UNIQUE (cart_id, product_id)") {
		t.Errorf("cart_items must be unique per (cart_id, product_id)")
	}
}

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir invalid: %v", err)
	}
}
