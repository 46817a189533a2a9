package tracker

import (
	"context"
)

// Logger defines the logging interface used by the tracker package.
// Compatible with logging.Logger and slog.Logger.
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

// Fetcher retrieves the complete device list of the account.
//
// Update returns either a full snapshot or an error; there is no partial
// result. Implementations should honour ctx, but the Coordinator enforces
// its own ceiling regardless.
type Fetcher interface {
	Update(ctx context.Context) ([]DeviceRecord, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]DeviceRecord, error)

// Update implements Fetcher.
func (f FetcherFunc) Update(ctx context.Context) ([]DeviceRecord, error) {
	return f(ctx)
}

// Listener receives the outcome of every refresh cycle.
//
// Both methods are called synchronously from the refresh goroutine and must
// not block. Every listener of a cycle observes the same *Snapshot.
type Listener interface {
	HandleSnapshot(snap *Snapshot)
	HandleUpdateFailed(err *UpdateFailedError)
}

// Notifier is told when a device's observable state changed.
// The host re-reads the device afterwards.
type Notifier interface {
	DeviceChanged(id string)
}

// ZoneResolver maps coordinates to the name of the zone they fall in.
// An empty name means no zone.
type ZoneResolver interface {
	ResolveZone(ctx context.Context, lat, lon float64) (string, error)
}

// Entity is the lifecycle capability a host needs from a tracked device.
type Entity interface {
	UniqueID() string
	State() (State, error)
	OnHostAttach(ctx context.Context)
	OnHostDetach()
}

// Host accepts new entities and receives change notifications.
type Host interface {
	Notifier
	AddEntity(e Entity)
}
