package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the trackers table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE trackers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			serial_number TEXT NOT NULL DEFAULT '',
			phone_number TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			battery_percentage INTEGER NOT NULL DEFAULT 0,
			available INTEGER NOT NULL DEFAULT 1,
			first_seen TEXT NOT NULL,
			last_seen TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteRepository_UpsertInsertsThenUpdates(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := &Device{
		ID:                "a1",
		Name:              "Watch",
		SerialNumber:      "SN1",
		PhoneNumber:       "+31600000000",
		Status:            "GPS",
		BatteryPercentage: 80,
		Available:         true,
		FirstSeen:         first,
		LastSeen:          first,
	}
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	later := first.Add(2 * time.Hour)
	update := &Device{
		ID:                "a1",
		Name:              "Renamed",
		BatteryPercentage: 40,
		FirstSeen:         later,
		LastSeen:          later,
	}
	if err := repo.Upsert(ctx, update); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen = %v, want %v (unchanged)", got.FirstSeen, first)
	}
	if !got.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, later)
	}
	if got.Name != "Renamed" || got.BatteryPercentage != 40 || got.Available {
		t.Errorf("GetByID() = %+v", got)
	}
}

func TestSQLiteRepository_UpsertDefaultsTimestamps(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	d := &Device{ID: "a1"}
	if err := repo.Upsert(context.Background(), d); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if d.FirstSeen.IsZero() || d.LastSeen.IsZero() {
		t.Error("Upsert() should default zero timestamps")
	}
}

func TestSQLiteRepository_GetByIDNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_ListAndDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, d := range []*Device{{ID: "b", Name: "Bea"}, {ID: "a", Name: "Ann"}} {
		if err := repo.Upsert(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 2 || devices[0].ID != "a" {
		t.Fatalf("List() = %+v", devices)
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "a"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}
