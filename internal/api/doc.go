// Package api implements the HTTP REST API and WebSocket server for the tracker service.
//
// This package provides:
//   - Read endpoints for tracker state and refresh status
//   - On-demand refresh (POST /api/v1/refresh)
//   - CRUD for geofence zones and read/delete for the device catalogue
//   - The operator audit trail (GET /api/v1/audit)
//   - WebSocket hub for real-time tracker state broadcasts
//   - Prometheus scrape endpoint
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The coordinator refreshes all trackers on a schedule. Each tracker reports
// its new state to the host, which fans it out to MQTT, InfluxDB, the device
// catalogue and this package's Hub. The REST handlers read the host and the
// coordinator directly; they never trigger a fetch except through /refresh,
// which joins any refresh already in flight.
//
// # Graceful Degradation
//
// MQTT, the database and the zone resolver are optional. Endpoints that need
// a missing dependency answer 503.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
