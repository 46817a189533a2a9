package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/audit"
	"github.com/nerrad567/gray-logic-tracker/internal/device"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// refreshRequestTimeout bounds a refresh triggered over HTTP.
const refreshRequestTimeout = 5 * time.Minute

// StatusResponse is the body of GET /status. Process-level figures live
// on the Prometheus endpoint.
type StatusResponse struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Refresh       tracker.Status `json:"refresh"`
	Trackers      int            `json:"trackers"`
	Catalogue     *device.Stats  `json:"catalogue,omitempty"`
	Links         LinkStatus     `json:"links"`
}

// LinkStatus summarises the service's outward connections.
type LinkStatus struct {
	MQTTConnected    bool       `json:"mqtt_connected"`
	WebSocketClients int        `json:"websocket_clients"`
	DatabasePool     *PoolStats `json:"database_pool,omitempty"`
}

// PoolStats is the subset of sql.DBStats worth watching on SQLite.
type PoolStats struct {
	Open      int   `json:"open"`
	InUse     int   `json:"in_use"`
	WaitCount int64 `json:"wait_count"`
}

// handleStatus reports the last refresh, the tracker count and link state.
//
// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Refresh:       s.coordinator.Status(),
		Trackers:      s.host.EntityCount(),
	}
	if s.devices != nil {
		st := s.devices.GetStats()
		resp.Catalogue = &st
	}
	if s.hub != nil {
		resp.Links.WebSocketClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		resp.Links.MQTTConnected = s.mqtt.IsConnected()
	}
	if s.db != nil {
		st := s.db.Stats()
		resp.Links.DatabasePool = &PoolStats{Open: st.OpenConnections, InUse: st.InUse, WaitCount: st.WaitCount}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh runs a refresh now, or joins the one in flight. The request
// context only bounds this wait; the shared refresh keeps running for other
// callers when the client disconnects.
//
// POST /refresh
// Response: 200 with the new status; 502 when the fetch failed.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshRequestTimeout)
	defer cancel()

	refresher := audit.NewAuditedRefresher(s.coordinator, s.audit, audit.SourceAPI)
	if err := refresher.RefreshOnce(ctx); err != nil {
		s.logger.Warn("manual refresh failed", "error", err)
		code := ErrCodeUpstream
		if errors.Is(err, tracker.ErrFetchTimeout) || errors.Is(err, context.DeadlineExceeded) {
			code = ErrCodeTimeout
		}
		writeError(w, http.StatusBadGateway, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "refreshed",
		"refresh": s.coordinator.Status(),
	})
}
