package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-tracker/migrations"
)

// TestEmbeddedSchema applies the shipped migrations and rolls them back.
func TestEmbeddedSchema(t *testing.T) {
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "schema.db"), WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"zones", "trackers", "audit_logs"} {
		var count int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count); err != nil || count != 1 {
			t.Errorf("table %s missing (count=%d, err=%v)", table, count, err)
		}
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO zones (id, name, slug, latitude, longitude, radius, passive, icon, created_at, updated_at)
		 VALUES ('z1', 'Home', 'home', 52.1, 5.1, 100, 0, '', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`); err != nil {
		t.Errorf("zones insert error = %v", err)
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if version, _ := db.SchemaVersion(ctx); version != "" {
		t.Errorf("SchemaVersion() after rollback = %q", version)
	}
}
