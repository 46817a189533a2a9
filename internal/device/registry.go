package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger is satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the tracker catalogue: every device the portal has ever
// reported, with first and last sighting. Reads come from a cache loaded by
// RefreshCache; Observe and DeleteDevice write through to the Repository.
type Registry struct {
	repo    Repository
	cache   map[string]Device // by uuid
	cacheMu sync.RWMutex
	logger  Logger
	now     func() time.Time
}

// NewRegistry returns an empty registry; call RefreshCache before use.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]Device),
		logger: noopLogger{},
		now:    time.Now,
	}
}

func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache replaces the cache with the repository contents.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading trackers: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]Device, len(devices))
	for _, d := range devices {
		r.cache[d.ID] = d
	}

	r.logger.Info("tracker catalogue refreshed", "count", len(devices))
	return nil
}

// Observe records that a tracker was seen with the given details.
//
// New trackers are inserted with FirstSeen = now. Known trackers keep their
// FirstSeen and have every other field overwritten. LastSeen is always now.
//
// Parameters:
//   - ctx: Context for the write
//   - d: Catalogue details; FirstSeen and LastSeen are ignored
//
// Returns:
//   - error: Validation or persistence error
func (r *Registry) Observe(ctx context.Context, d Device) error {
	if d.BatteryPercentage < 0 {
		d.BatteryPercentage = 0
	}
	if d.BatteryPercentage > 100 {
		d.BatteryPercentage = 100
	}
	if err := ValidateDevice(&d); err != nil {
		return err
	}

	now := r.now().UTC().Truncate(time.Second)
	d.FirstSeen = now
	d.LastSeen = now

	r.cacheMu.RLock()
	existing, known := r.cache[d.ID]
	r.cacheMu.RUnlock()
	if known {
		d.FirstSeen = existing.FirstSeen
	}

	if err := r.repo.Upsert(ctx, &d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[d.ID] = d
	r.cacheMu.Unlock()

	if !known {
		r.logger.Info("tracker catalogued", "id", d.ID, "name", d.Name)
	}
	return nil
}

// GetDevice retrieves a tracker by uuid.
// Returns ErrDeviceNotFound if the tracker does not exist.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return &cached, nil
	}

	// Fall back to repository (might have been written by another process)
	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = *d
	r.cacheMu.Unlock()

	return d, nil
}

// ListDevices retrieves all trackers ordered by name then uuid.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	if len(r.cache) == 0 {
		r.cacheMu.RUnlock()
		return r.repo.List(ctx)
	}
	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, d)
	}
	r.cacheMu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices, nil
}

// DeleteDevice removes a tracker from the catalogue.
// A tracker still on the account is re-added on its next publish.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("tracker removed from catalogue", "id", id)
	return nil
}

// GetDeviceCount returns the number of cached trackers.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// GetStats returns catalogue statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{TotalDevices: len(r.cache)}
	for _, d := range r.cache {
		if d.Available {
			stats.AvailableDevices++
		}
		if d.BatteryPercentage < LowBatteryThreshold {
			stats.LowBattery++
		}
	}
	return stats
}
