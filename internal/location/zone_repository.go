package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

var errZoneRequired = errors.New("zone is required")

// ZoneRepository stores geofence zones. Lookups of a missing zone return
// ErrZoneNotFound; a slug clash returns ErrZoneExists.
type ZoneRepository interface {
	CreateZone(ctx context.Context, zone *Zone) error
	GetZone(ctx context.Context, id string) (*Zone, error)
	GetZoneBySlug(ctx context.Context, slug string) (*Zone, error)
	ListZones(ctx context.Context) ([]Zone, error)
	UpdateZone(ctx context.Context, zone *Zone) error
	DeleteZone(ctx context.Context, id string) error
}

// SQLiteZoneRepository keeps zones in the zones table.
type SQLiteZoneRepository struct {
	db *sql.DB
}

// NewSQLiteZoneRepository expects a migrated database.
//
//	repo := location.NewSQLiteZoneRepository(db.DB)
func NewSQLiteZoneRepository(db *sql.DB) *SQLiteZoneRepository {
	return &SQLiteZoneRepository{db: db}
}

const zoneColumns = `id, name, slug, latitude, longitude, radius, passive, icon, created_at, updated_at`

// CreateZone validates and inserts zone, filling in a UUID and a slug
// derived from the name when they are empty. Timestamps are set on zone.
func (r *SQLiteZoneRepository) CreateZone(ctx context.Context, zone *Zone) error {
	if zone == nil {
		return errZoneRequired
	}
	if zone.ID == "" {
		zone.ID = uuid.New().String()
	}
	if zone.Slug == "" {
		zone.Slug = GenerateSlug(zone.Name)
	}
	if err := ValidateZone(zone); err != nil {
		return err
	}

	now := time.Now().UTC()
	zone.CreatedAt = now
	zone.UpdatedAt = now

	query := `INSERT INTO zones (` + zoneColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		zone.ID,
		zone.Name,
		zone.Slug,
		zone.Latitude,
		zone.Longitude,
		zone.Radius,
		boolToInt(zone.Passive),
		zone.Icon,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return ErrZoneExists
	}
	if err != nil {
		return fmt.Errorf("inserting zone: %w", err)
	}
	return nil
}

// GetZone looks a zone up by ID.
func (r *SQLiteZoneRepository) GetZone(ctx context.Context, id string) (*Zone, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+zoneColumns+` FROM zones WHERE id = ?`, id)
	return scanZoneRow(row)
}

func (r *SQLiteZoneRepository) GetZoneBySlug(ctx context.Context, slug string) (*Zone, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+zoneColumns+` FROM zones WHERE slug = ?`, slug)
	return scanZoneRow(row)
}

// ListZones returns every zone, by name.
func (r *SQLiteZoneRepository) ListZones(ctx context.Context) ([]Zone, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+zoneColumns+` FROM zones ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		zone, err := scanZoneRow(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, *zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zones: %w", err)
	}

	return zones, nil
}

// UpdateZone rewrites the row with zone.ID. CreatedAt is left as stored.
func (r *SQLiteZoneRepository) UpdateZone(ctx context.Context, zone *Zone) error {
	if zone == nil {
		return errZoneRequired
	}
	if zone.Slug == "" {
		zone.Slug = GenerateSlug(zone.Name)
	}
	if err := ValidateZone(zone); err != nil {
		return err
	}

	zone.UpdatedAt = time.Now().UTC()

	query := `UPDATE zones SET
		name = ?, slug = ?, latitude = ?, longitude = ?, radius = ?, passive = ?, icon = ?,
		updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		zone.Name,
		zone.Slug,
		zone.Latitude,
		zone.Longitude,
		zone.Radius,
		boolToInt(zone.Passive),
		zone.Icon,
		zone.UpdatedAt.Format(time.RFC3339),
		zone.ID,
	)
	if isUniqueConstraintError(err) {
		return ErrZoneExists
	}
	if err != nil {
		return fmt.Errorf("updating zone: %w", err)
	}
	return expectOneRow(result)
}

func (r *SQLiteZoneRepository) DeleteZone(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM zones WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting zone: %w", err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrZoneNotFound
	}
	return nil
}

type zoneRowScanner interface {
	Scan(dest ...any) error
}

func scanZoneRow(scanner zoneRowScanner) (*Zone, error) {
	var zone Zone
	var passive int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&zone.ID,
		&zone.Name,
		&zone.Slug,
		&zone.Latitude,
		&zone.Longitude,
		&zone.Radius,
		&passive,
		&zone.Icon,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, fmt.Errorf("scanning zone: %w", err)
	}

	zone.Passive = passive != 0
	var parseErr error
	if zone.CreatedAt, parseErr = parseTime(createdAt); parseErr != nil {
		return nil, fmt.Errorf("zone %s created_at: %w", zone.ID, parseErr)
	}
	if zone.UpdatedAt, parseErr = parseTime(updatedAt); parseErr != nil {
		return nil, fmt.Errorf("zone %s updated_at: %w", zone.ID, parseErr)
	}
	return &zone, nil
}

// parseTime reads a stored RFC 3339 timestamp; empty is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
