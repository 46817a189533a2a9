package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// earthRadiusMetres is the mean Earth radius used for great-circle distance.
const earthRadiusMetres = 6371008.8

// Logger defines the logging interface used by the Resolver.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Distance returns the great-circle distance between two points in metres.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMetres * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ActiveZone picks the zone a position is in.
//
// accuracy widens every zone by that many metres. Returns nil when no
// active zone contains the position.
func ActiveZone(zones []Zone, lat, lon, accuracy float64) *Zone {
	var closest *Zone
	minDist := math.Inf(1)

	for i := range zones {
		z := &zones[i]
		if z.Passive {
			continue
		}
		dist := Distance(lat, lon, z.Latitude, z.Longitude)
		within := dist-accuracy < z.Radius
		closer := closest == nil || dist < minDist
		smaller := closest != nil && dist == minDist && z.Radius < closest.Radius
		if within && (closer || smaller) {
			minDist = dist
			closest = z
		}
	}
	return closest
}

// Resolver keeps zones in memory and resolves positions against them.
// CRUD goes through the repository and keeps the cache in sync.
//
// All public methods are thread-safe.
type Resolver struct {
	repo    ZoneRepository
	zones   map[string]Zone
	cacheMu sync.RWMutex
	logger  Logger
}

// NewResolver creates a resolver over repo. Call Refresh to load the cache.
func NewResolver(repo ZoneRepository) *Resolver {
	return &Resolver{
		repo:   repo,
		zones:  make(map[string]Zone),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// Refresh reloads all zones from the repository.
func (r *Resolver) Refresh(ctx context.Context) error {
	zones, err := r.repo.ListZones(ctx)
	if err != nil {
		return fmt.Errorf("loading zones: %w", err)
	}

	cache := make(map[string]Zone, len(zones))
	for _, z := range zones {
		cache[z.ID] = z
	}

	r.cacheMu.Lock()
	r.zones = cache
	r.cacheMu.Unlock()

	r.logger.Info("zone cache refreshed", "count", len(zones))
	return nil
}

// ResolveZone returns the name of the active zone at lat/lon, or "" if none.
func (r *Resolver) ResolveZone(ctx context.Context, lat, lon float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateCoordinates(lat, lon); err != nil {
		return "", err
	}

	zone := ActiveZone(r.snapshot(), lat, lon, 0)
	if zone == nil {
		return "", nil
	}
	return zone.Name, nil
}

// snapshot returns the cached zones ordered by ID so ties resolve the same
// way on every call.
func (r *Resolver) snapshot() []Zone {
	r.cacheMu.RLock()
	zones := make([]Zone, 0, len(r.zones))
	for _, z := range r.zones {
		zones = append(zones, z)
	}
	r.cacheMu.RUnlock()

	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
	return zones
}

// ListZones returns the cached zones ordered by name.
func (r *Resolver) ListZones() []Zone {
	zones := r.snapshot()
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return zones
}

// GetZone returns a cached zone by ID.
func (r *Resolver) GetZone(id string) (*Zone, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	z, ok := r.zones[id]
	if !ok {
		return nil, ErrZoneNotFound
	}
	return &z, nil
}

// CreateZone persists a zone and adds it to the cache.
func (r *Resolver) CreateZone(ctx context.Context, zone *Zone) error {
	if err := r.repo.CreateZone(ctx, zone); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.zones[zone.ID] = *zone
	r.cacheMu.Unlock()

	r.logger.Info("zone created", "id", zone.ID, "name", zone.Name)
	return nil
}

// UpdateZone persists changes to a zone and updates the cache.
func (r *Resolver) UpdateZone(ctx context.Context, zone *Zone) error {
	existing, err := r.GetZone(zone.ID)
	if err == nil && zone.Name != existing.Name && zone.Slug == existing.Slug {
		zone.Slug = GenerateSlug(zone.Name)
	}
	if err == nil {
		zone.CreatedAt = existing.CreatedAt
	}

	if err := r.repo.UpdateZone(ctx, zone); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.zones[zone.ID] = *zone
	r.cacheMu.Unlock()

	r.logger.Info("zone updated", "id", zone.ID, "name", zone.Name)
	return nil
}

// DeleteZone removes a zone from the repository and the cache.
func (r *Resolver) DeleteZone(ctx context.Context, id string) error {
	if err := r.repo.DeleteZone(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.zones, id)
	r.cacheMu.Unlock()

	r.logger.Info("zone deleted", "id", id)
	return nil
}

// Seed creates or updates zones keyed by slug, then refreshes the cache.
// Zones created through the API are left alone.
func (r *Resolver) Seed(ctx context.Context, zones []Zone) error {
	for i := range zones {
		z := zones[i]
		if z.Slug == "" {
			z.Slug = GenerateSlug(z.Name)
		}

		existing, err := r.repo.GetZoneBySlug(ctx, z.Slug)
		switch {
		case errors.Is(err, ErrZoneNotFound):
			if err := r.repo.CreateZone(ctx, &z); err != nil {
				return fmt.Errorf("seeding zone %q: %w", z.Slug, err)
			}
			r.logger.Info("zone seeded", "slug", z.Slug, "radius", z.Radius)
		case err != nil:
			return fmt.Errorf("loading zone %q: %w", z.Slug, err)
		default:
			z.ID = existing.ID
			if err := r.repo.UpdateZone(ctx, &z); err != nil {
				return fmt.Errorf("updating seeded zone %q: %w", z.Slug, err)
			}
		}
	}

	return r.Refresh(ctx)
}

// HomeZone builds the zone seeded from the site location.
// radius <= 0 falls back to DefaultHomeRadius.
func HomeZone(name string, lat, lon, radius float64) Zone {
	if name == "" {
		name = "Home"
	}
	if radius <= 0 {
		radius = DefaultHomeRadius
	}
	return Zone{
		Name:      name,
		Slug:      HomeZoneSlug,
		Latitude:  lat,
		Longitude: lon,
		Radius:    radius,
		Icon:      "mdi:home",
	}
}
