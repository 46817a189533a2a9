// Package location provides geofence zones for tracker positions.
//
// A Zone is a named circle (centre + radius in metres). The Resolver holds
// the zones in memory and answers "which zone is this position in?" using
// the active-zone rule:
//
//   - passive zones never match
//   - a zone matches when the great-circle distance to its centre is less
//     than its radius
//   - of the matching zones the closest centre wins; on an exact tie the
//     smaller radius wins
//
// Zones are persisted in SQLite via ZoneRepository. A home zone can be
// seeded from the site configuration at start-up.
//
// # Thread Safety
//
// Resolver and SQLiteZoneRepository are safe for concurrent use from
// multiple goroutines (SQLite WAL mode + connection pooling).
package location
