package database

import (
	"context"
	"testing"
	"testing/fstest"
)

// testMigrations is a two-step history shaped like the real schema.
func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"sql/20260101_000000_create_zones.up.sql": {Data: []byte(
			"CREATE TABLE zones (id TEXT PRIMARY KEY, name TEXT NOT NULL) STRICT;")},
		"sql/20260101_000000_create_zones.down.sql": {Data: []byte("DROP TABLE zones;")},
		"sql/20260102_000000_create_trackers.up.sql": {Data: []byte(
			"CREATE TABLE trackers (id TEXT PRIMARY KEY, last_seen TEXT NOT NULL) STRICT;")},
		"sql/20260102_000000_create_trackers.down.sql": {Data: []byte("DROP TABLE trackers;")},
		"sql/README.md": {Data: []byte("ignored")},
	}
}

// useMigrations swaps the registered migrations for one test.
func useMigrations(t *testing.T, fsys fstest.MapFS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS, MigrationsDir = fsys, dir
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations(), "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "zones") || !tableExists(t, db, "trackers") {
		t.Fatal("tables not created")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied/pending = %d/%d, want 2/0", len(applied), len(pending))
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil || version != "20260102_000000" {
		t.Errorf("SchemaVersion() = %q, %v", version, err)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations(), "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "trackers") {
		t.Error("latest migration should have been rolled back")
	}
	if !tableExists(t, db, "zones") {
		t.Error("earlier migration should remain")
	}
	if version, _ := db.SchemaVersion(ctx); version != "20260101_000000" {
		t.Errorf("SchemaVersion() after rollback = %q", version)
	}
}

func TestMigrateFailureRollsBackOnlyThatStep(t *testing.T) {
	fsys := testMigrations()
	fsys["sql/20260103_000000_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE oops (")}
	useMigrations(t, fsys, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() should fail on broken SQL")
	}
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 2 || len(pending) != 1 {
		t.Errorf("applied/pending = %d/%d, want 2/1", len(applied), len(pending))
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	origFS := MigrationsFS
	t.Cleanup(func() { MigrationsFS = origFS })
	MigrationsFS = nil

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
	if version, err := db.SchemaVersion(context.Background()); err != nil || version != "" {
		t.Errorf("SchemaVersion() = %q, %v", version, err)
	}
}

func TestGetMigrationStatusPending(t *testing.T) {
	useMigrations(t, testMigrations(), "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.createMigrationsTable(ctx); err != nil {
		t.Fatalf("createMigrationsTable() error = %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 2 {
		t.Errorf("applied/pending = %d/%d, want 0/2", len(applied), len(pending))
	}
	if pending[0].Name != "create_zones" || pending[1].DownSQL == "" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"valid up migration", "20260101_000000_initial_schema.up.sql", "20260101_000000", true, true},
		{"valid down migration", "20260101_000000_initial_schema.down.sql", "20260101_000000", false, true},
		{"not sql file", "readme.txt", "", false, false},
		{"missing direction", "20260101_000000_initial_schema.sql", "", false, false},
		{"invalid format", "invalid.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260101_000000_initial_schema.up.sql", "initial_schema"},
		{"20260102_000000_add_tracker_icons.down.sql", "add_tracker_icons"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := extractMigrationName(tt.filename); got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
