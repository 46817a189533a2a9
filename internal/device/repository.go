package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for catalogue persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a tracker by uuid.
	// Returns ErrDeviceNotFound if the tracker does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all trackers ordered by name.
	List(ctx context.Context) ([]Device, error)

	// Upsert inserts a tracker or updates the existing row.
	// FirstSeen is only written on insert.
	Upsert(ctx context.Context, device *Device) error

	// Delete removes a tracker.
	// Returns ErrDeviceNotFound if the tracker does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, serial_number, phone_number, status,
	battery_percentage, available, first_seen, last_seen`

// GetByID retrieves a tracker by uuid.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM trackers WHERE id = ?`, id)
	return scanDeviceRow(row)
}

// List retrieves all trackers ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM trackers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying trackers: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trackers: %w", err)
	}

	return devices, nil
}

// Upsert inserts or updates a tracker keyed by uuid.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - device: Catalogue entry; zero FirstSeen/LastSeen default to now
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
//
// Security: Uses parameterised SQL queries to prevent injection.
func (r *SQLiteRepository) Upsert(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	if device.FirstSeen.IsZero() {
		device.FirstSeen = now
	}
	if device.LastSeen.IsZero() {
		device.LastSeen = now
	}

	query := `
		INSERT INTO trackers (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			serial_number = excluded.serial_number,
			phone_number = excluded.phone_number,
			status = excluded.status,
			battery_percentage = excluded.battery_percentage,
			available = excluded.available,
			last_seen = excluded.last_seen`

	_, err := r.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		device.SerialNumber,
		device.PhoneNumber,
		device.Status,
		device.BatteryPercentage,
		boolToInt(device.Available),
		device.FirstSeen.UTC().Format(time.RFC3339),
		device.LastSeen.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting tracker: %w", err)
	}

	return nil
}

// Delete removes a tracker by uuid.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM trackers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting tracker: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// rowScanner is implemented by sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a single row into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var available int
	var firstSeen, lastSeen string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.SerialNumber,
		&d.PhoneNumber,
		&d.Status,
		&d.BatteryPercentage,
		&available,
		&firstSeen,
		&lastSeen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning tracker: %w", err)
	}

	d.Available = available != 0
	if d.FirstSeen, err = time.Parse(time.RFC3339, firstSeen); err != nil {
		return nil, fmt.Errorf("tracker %s first_seen: %w", d.ID, err)
	}
	if d.LastSeen, err = time.Parse(time.RFC3339, lastSeen); err != nil {
		return nil, fmt.Errorf("tracker %s last_seen: %w", d.ID, err)
	}
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
