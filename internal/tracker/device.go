package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultZoneLookupTimeout bounds one zone resolution.
const defaultZoneLookupTimeout = 10 * time.Second

// State is the host-facing view of one tracker at a point in time.
type State struct {
	UniqueID         string     `json:"unique_id"`
	Name             string     `json:"name"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	LocationName     string     `json:"location_name"`
	BatteryLevel     int        `json:"battery_level"`
	LocationAccuracy int        `json:"location_accuracy"`
	SourceType       string     `json:"source_type"`
	Icon             string     `json:"icon"`
	Available        bool       `json:"available"`
	Attributes       Attributes `json:"attributes"`
	DeviceInfo       DeviceInfo `json:"device_info"`
}

// TrackedDeviceOptions configures a TrackedDevice.
type TrackedDeviceOptions struct {
	// Notifier is told after every observable change. Optional until attach.
	Notifier Notifier

	// Zones resolves the zone for the current position. Optional.
	Zones ZoneResolver

	// Registry is the registry the device removes itself from on detach.
	Registry *Registry

	// ZoneLookupTimeout bounds one zone resolution.
	// Default: 10 seconds.
	ZoneLookupTimeout time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// TrackedDevice is the per-device reconciler for one tracker.
//
// It holds the latest record for its uuid, swaps it wholesale when a
// snapshot containing that uuid arrives, and keeps the previous record when
// the uuid is absent. The zone name is resolved asynchronously after each
// update; a newer update supersedes an older lookup.
//
// Thread Safety: All methods are safe for concurrent use. The lock is never
// held while calling the notifier.
type TrackedDevice struct {
	id          string
	notifier    Notifier
	zones       ZoneResolver
	registry    *Registry
	zoneTimeout time.Duration
	logger      Logger

	record    DeviceRecord
	zoneName  string
	available bool
	removed   bool
	mu        sync.RWMutex

	// Zone lookup supersession
	baseCtx    context.Context
	baseCancel context.CancelFunc
	zoneCancel context.CancelFunc
	zoneGen    uint64
	zoneWG     sync.WaitGroup
}

// NewTrackedDevice creates a reconciler seeded with the record it was
// discovered from. The device starts available.
func NewTrackedDevice(rec DeviceRecord, opts TrackedDeviceOptions) *TrackedDevice {
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}
	timeout := opts.ZoneLookupTimeout
	if timeout <= 0 {
		timeout = defaultZoneLookupTimeout
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	return &TrackedDevice{
		id:          rec.UUID,
		notifier:    opts.Notifier,
		zones:       opts.Zones,
		registry:    opts.Registry,
		zoneTimeout: timeout,
		logger:      logger,
		record:      rec,
		available:   true,
		baseCtx:     baseCtx,
		baseCancel:  cancel,
	}
}

// HandleSnapshot reconciles the device against a published snapshot.
func (d *TrackedDevice) HandleSnapshot(snap *Snapshot) {
	d.mu.Lock()
	if d.removed {
		d.mu.Unlock()
		return
	}
	if rec, ok := snap.Find(d.id); ok {
		d.record = rec
	} else {
		var cycle uint64
		var fetchedAt time.Time
		if snap != nil {
			cycle, fetchedAt = snap.Cycle, snap.FetchedAt
		}
		d.logger.Error("tracked device missing from snapshot",
			"device_id", d.id,
			"cycle", cycle,
			"fetched_at", fetchedAt,
			"error", ErrDeviceMissing,
		)
	}
	d.available = true
	rec := d.record
	notifier := d.notifier
	d.mu.Unlock()

	if notifier != nil {
		notifier.DeviceChanged(d.id)
	}
	d.scheduleZoneLookup(rec)
}

// HandleUpdateFailed marks the device unavailable. The record is kept.
func (d *TrackedDevice) HandleUpdateFailed(failure *UpdateFailedError) {
	d.mu.Lock()
	if d.removed {
		d.mu.Unlock()
		return
	}
	d.available = false
	notifier := d.notifier
	d.mu.Unlock()

	d.logger.Debug("tracked device unavailable", "device_id", d.id, "cycle", failure.Cycle)
	if notifier != nil {
		notifier.DeviceChanged(d.id)
	}
}

// scheduleZoneLookup starts a zone resolution for rec and supersedes any
// lookup still running. Results are applied on the next read.
func (d *TrackedDevice) scheduleZoneLookup(rec DeviceRecord) {
	if d.zones == nil {
		return
	}

	d.mu.Lock()
	if d.removed {
		d.mu.Unlock()
		return
	}
	if d.zoneCancel != nil {
		d.zoneCancel()
	}
	ctx, cancel := context.WithTimeout(d.baseCtx, d.zoneTimeout)
	d.zoneCancel = cancel
	d.zoneGen++
	gen := d.zoneGen
	d.zoneWG.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.zoneWG.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("zone lookup panic", "device_id", d.id, "panic", r)
				d.applyZone(gen, "")
			}
		}()

		lat, lon, err := rec.Coordinates()
		if err != nil {
			d.logger.Warn("zone lookup skipped", "device_id", d.id, "error", err)
			d.applyZone(gen, "")
			return
		}

		name, err := d.zones.ResolveZone(ctx, lat, lon)
		if err != nil {
			d.logger.Debug("zone lookup failed", "device_id", d.id, "error", err)
			name = ""
		}
		d.applyZone(gen, name)
	}()
}

// applyZone stores a lookup result unless it was superseded or the device
// is gone.
func (d *TrackedDevice) applyZone(gen uint64, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.removed || gen != d.zoneGen {
		return
	}
	d.zoneName = name
}

// waitZoneLookups blocks until in-flight zone lookups finish.
func (d *TrackedDevice) waitZoneLookups() {
	d.zoneWG.Wait()
}

// OnHostAttach is called once the host has adopted the device.
// It announces the initial state and resolves the zone.
func (d *TrackedDevice) OnHostAttach(_ context.Context) {
	d.mu.RLock()
	rec := d.record
	notifier := d.notifier
	removed := d.removed
	d.mu.RUnlock()
	if removed {
		return
	}

	if notifier != nil {
		notifier.DeviceChanged(d.id)
	}
	d.scheduleZoneLookup(rec)
}

// OnHostDetach unsubscribes the device. Later signals are ignored and
// pending zone lookups are discarded.
func (d *TrackedDevice) OnHostDetach() {
	d.mu.Lock()
	if d.removed {
		d.mu.Unlock()
		return
	}
	d.removed = true
	d.mu.Unlock()

	d.baseCancel()
	if d.registry != nil {
		d.registry.Deregister(d)
	}
	d.logger.Debug("tracked device detached", "device_id", d.id)
}

// SetNotifier sets the notifier. Used by hosts that attach after creation.
func (d *TrackedDevice) SetNotifier(n Notifier) {
	d.mu.Lock()
	d.notifier = n
	d.mu.Unlock()
}

// UniqueID returns the device uuid.
func (d *TrackedDevice) UniqueID() string {
	return d.id
}

// Name returns the record's display name.
func (d *TrackedDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.record.Name
}

// Record returns a copy of the current record.
func (d *TrackedDevice) Record() DeviceRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.record
}

// Coordinates returns the parsed latitude and longitude.
func (d *TrackedDevice) Coordinates() (float64, float64, error) {
	return d.Record().Coordinates()
}

// ZoneName returns the last resolved zone name ("" if none).
func (d *TrackedDevice) ZoneName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.zoneName
}

// LocationName returns the label from LocationLabel.
func (d *TrackedDevice) LocationName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return LocationLabel(d.record, d.zoneName)
}

// BatteryLevel returns the battery percentage.
func (d *TrackedDevice) BatteryLevel() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.record.LastLocation.BatteryPercentage
}

// LocationAccuracy returns the fixed accuracy in metres.
func (d *TrackedDevice) LocationAccuracy() int {
	return LocationAccuracy
}

// Attributes returns the attribute bag of the current record.
func (d *TrackedDevice) Attributes() Attributes {
	return AttributesOf(d.Record())
}

// DeviceInfo returns the host-side device registry details.
func (d *TrackedDevice) DeviceInfo() DeviceInfo {
	return DeviceInfoOf(d.Record())
}

// Available reports whether the last refresh cycle succeeded.
func (d *TrackedDevice) Available() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.available
}

// State reads every host-facing property under one lock.
// Returns ErrCoordinateParse if the record holds a non-numeric coordinate.
func (d *TrackedDevice) State() (State, error) {
	d.mu.RLock()
	rec := d.record
	zone := d.zoneName
	available := d.available
	d.mu.RUnlock()

	lat, lon, err := rec.Coordinates()
	if err != nil {
		return State{}, fmt.Errorf("device %s: %w", d.id, err)
	}

	return State{
		UniqueID:         d.id,
		Name:             rec.Name,
		Latitude:         lat,
		Longitude:        lon,
		LocationName:     LocationLabel(rec, zone),
		BatteryLevel:     rec.LastLocation.BatteryPercentage,
		LocationAccuracy: LocationAccuracy,
		SourceType:       SourceType,
		Icon:             Icon,
		Available:        available,
		Attributes:       AttributesOf(rec),
		DeviceInfo:       DeviceInfoOf(rec),
	}, nil
}
