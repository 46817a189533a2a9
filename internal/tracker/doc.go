// Package tracker is the polling and reconciliation engine for GPS trackers.
//
// A single Coordinator polls the remote account on a fixed interval, turns
// each successful fetch into an immutable Snapshot, and hands that snapshot
// to every TrackedDevice. Each TrackedDevice finds its own record by uuid,
// swaps its cached record, kicks off a best-effort zone lookup and tells the
// host that its state changed. The host then pulls the derived state
// (coordinates, battery, location label, attributes) whenever it likes.
//
// # Architecture
//
//	┌──────────────┐  Update(ctx)   ┌──────────────────────────────────────┐
//	│   Fetcher    │◀───────────────│             Coordinator              │
//	│ (one2track)  │───────────────▶│ • ticker + singleflight              │
//	└──────────────┘   []Record     │ • hard fetch ceiling                 │
//	                                │ • first-boot / always-publish policy │
//	                                └──────────────┬───────────────────────┘
//	                                               │ *Snapshot / *UpdateFailedError
//	                      ┌────────────────────────┼────────────────────────┐
//	                      ▼                        ▼                        ▼
//	              ┌───────────────┐       ┌───────────────┐        ┌───────────────┐
//	              │ TrackedDevice │  ...  │ TrackedDevice │        │   Observers   │
//	              │  (registry)   │       │  (registry)   │        │ (Discovery,   │
//	              └──────┬────────┘       └──────┬────────┘        │  metrics ...) │
//	                     │ DeviceChanged(id)     │                 └───────────────┘
//	                     ▼                       ▼
//	              ┌─────────────────────────────────────┐
//	              │   Host (state sinks, zone lookup)   │
//	              └─────────────────────────────────────┘
//
// # Location label
//
// The label shown for a device follows a fixed precedence:
//
//  1. location_type == "WIFI" → "home"
//  2. a cached zone name, if the last lookup found one
//  3. the raw address reported by the tracker
//
// Zone lookups run concurrently with host notification. A lookup result is
// visible to reads made after it completes; it never rewrites the label the
// host has already read for the current cycle.
//
// # Thread Safety
//
// Coordinator, Registry and TrackedDevice are safe for concurrent use.
// Snapshots must be treated as read-only once published.
package tracker
