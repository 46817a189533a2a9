package tracker

import (
	"sort"
	"sync"
)

// Registry maps device uuids to their live TrackedDevice.
//
// The Coordinator broadcasts to every registered device. Devices are added
// when they are created and removed when the host tears them down.
//
// All methods are thread-safe.
type Registry struct {
	devices map[string]*TrackedDevice
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*TrackedDevice),
	}
}

// Register adds a device. Returns ErrAlreadyRegistered if its uuid is taken.
func (r *Registry) Register(d *TrackedDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[d.UniqueID()]; exists {
		return ErrAlreadyRegistered
	}
	r.devices[d.UniqueID()] = d
	return nil
}

// Deregister removes a device by uuid and reports whether it was present.
// Only the registered instance is removed; a stale pointer is ignored.
func (r *Registry) Deregister(d *TrackedDevice) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.devices[d.UniqueID()]
	if !ok || current != d {
		return false
	}
	delete(r.devices, d.UniqueID())
	return true
}

// Get returns the device registered under id.
func (r *Registry) Get(id string) (*TrackedDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// IDs returns the registered uuids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Devices returns the registered devices ordered by uuid.
// The slice is a copy; the registry may change while the caller iterates.
func (r *Registry) Devices() []*TrackedDevice {
	r.mu.RLock()
	devices := make([]*TrackedDevice, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].UniqueID() < devices[j].UniqueID()
	})
	return devices
}
