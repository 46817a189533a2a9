// Package one2track connects the tracker coordinator to the one2track portal
// and to the MQTT bus.
//
// It provides three pieces:
//   - Client, the tracker.Fetcher that downloads the account's device list
//   - HealthReporter, a retained heartbeat on graytrack/health/one2track
//   - CommandHandler, which runs an immediate refresh on
//     graytrack/command/one2track/refresh
//
// # Wire Format
//
// The device list endpoint returns a JSON array. Each element is either a
// bare device record or an envelope {"device": {...}}; both forms may appear
// in one response. Coordinates arrive as strings and are parsed by the
// tracker package on read.
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
package one2track
