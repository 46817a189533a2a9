package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tracker/internal/audit"
	"github.com/nerrad567/gray-logic-tracker/internal/device"
)

// handleListDevices returns the device catalogue.
//
// GET /devices
// GET /devices?available=false
// Response: {"devices": [...], "count": N}
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if !s.requireDevices(w) {
		return
	}

	devices, err := s.devices.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	if avail := r.URL.Query().Get("available"); avail != "" {
		want := avail == "true"
		filtered := make([]device.Device, 0, len(devices))
		for _, d := range devices {
			if d.Available == want {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	}
	if devices == nil {
		devices = []device.Device{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleDeviceStats returns catalogue statistics.
//
// GET /devices/stats
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	if !s.requireDevices(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.devices.GetStats())
}

// handleGetDevice returns one catalogue entry.
//
// GET /devices/{id}
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if !s.requireDevices(w) {
		return
	}
	id := chi.URLParam(r, "id")

	d, err := s.devices.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to get device", "error", err, "id", id)
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDevice forgets a catalogue entry. A tracker still present in
// the account is catalogued again on its next state publish.
//
// DELETE /devices/{id}
// Response: 204 No Content
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if !s.requireDevices(w) {
		return
	}
	id := chi.URLParam(r, "id")

	if err := s.devices.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to delete device", "error", err, "id", id)
		writeInternalError(w, "failed to delete device")
		return
	}
	s.audit.Record(audit.ActionDelete, audit.EntityTracker, id, audit.SourceAPI, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireDevices(w http.ResponseWriter) bool {
	if s.devices == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "device catalogue is not configured")
		return false
	}
	return true
}
