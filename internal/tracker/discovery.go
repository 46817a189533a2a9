package tracker

import (
	"context"
	"fmt"
	"sync"
)

// DeviceFactory builds a TrackedDevice for a newly seen record.
type DeviceFactory func(rec DeviceRecord) *TrackedDevice

// Discovery turns uuids seen in snapshots into TrackedDevices.
//
// It is a Coordinator observer. On the first snapshot it creates a device for
// every record and hands it to the host. With DiscoverNewDevices set it keeps
// doing so for uuids that appear later.
type Discovery struct {
	registry    *Registry
	host        Host
	factory     DeviceFactory
	discoverNew bool
	logger      Logger

	mu   sync.Mutex
	seen bool
}

// DiscoveryOptions configures Discovery.
type DiscoveryOptions struct {
	// Registry the new devices are registered in. Required.
	Registry *Registry

	// Host adopts each new device. Required.
	Host Host

	// Factory builds devices. Required.
	Factory DeviceFactory

	// DiscoverNewDevices creates devices for uuids that appear after the
	// first snapshot.
	DiscoverNewDevices bool

	// Logger is optional structured logger.
	Logger Logger
}

// NewDiscovery creates a discovery observer.
func NewDiscovery(opts DiscoveryOptions) (*Discovery, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Host == nil {
		return nil, fmt.Errorf("host is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("factory is required")
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}
	return &Discovery{
		registry:    opts.Registry,
		host:        opts.Host,
		factory:     opts.Factory,
		discoverNew: opts.DiscoverNewDevices,
		logger:      logger,
	}, nil
}

// HandleSnapshot creates devices for unseen uuids, in snapshot order.
func (disc *Discovery) HandleSnapshot(snap *Snapshot) {
	disc.mu.Lock()
	if disc.seen && !disc.discoverNew {
		disc.mu.Unlock()
		return
	}
	disc.seen = true
	disc.mu.Unlock()

	for _, rec := range snap.Records {
		if _, exists := disc.registry.Get(rec.UUID); exists {
			continue
		}
		d := disc.factory(rec)
		if err := disc.registry.Register(d); err != nil {
			disc.logger.Warn("device registration skipped", "device_id", rec.UUID, "error", err)
			continue
		}
		disc.logger.Info("tracker discovered", "device_id", rec.UUID, "name", rec.Name)
		disc.host.AddEntity(d)
	}
}

// HandleUpdateFailed implements Listener. Failures create nothing.
func (disc *Discovery) HandleUpdateFailed(*UpdateFailedError) {}

// Setup wires discovery to a coordinator and performs the first refresh.
//
// Devices are created from the first successful snapshot. If that refresh
// fails the error is returned and no devices exist yet; the coordinator's
// schedule retries and discovery runs on the first snapshot that succeeds.
//
// Parameters:
//   - ctx: Context for the initial refresh
//   - coord: Coordinator to observe (not yet started)
//   - opts: Discovery options; Registry defaults to coord.Registry()
//   - observers: Added after discovery, so they already see the devices
//     the first snapshot creates
//
// Returns:
//   - *Discovery: The registered observer
//   - error: Construction error or the first refresh's *UpdateFailedError
func Setup(ctx context.Context, coord *Coordinator, opts DiscoveryOptions, observers ...Listener) (*Discovery, error) {
	if opts.Registry == nil {
		opts.Registry = coord.Registry()
	}
	disc, err := NewDiscovery(opts)
	if err != nil {
		return nil, err
	}
	coord.AddObserver(disc)
	for _, l := range observers {
		coord.AddObserver(l)
	}

	if err := coord.RefreshOnce(ctx); err != nil {
		return disc, err
	}
	return disc, nil
}
