package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tracker/internal/audit"
	"github.com/nerrad567/gray-logic-tracker/internal/location"
)

// zoneRequest is the body of zone create and update requests.
type zoneRequest struct {
	Name      string  `json:"name"`
	Slug      string  `json:"slug,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius"`
	Passive   bool    `json:"passive"`
	Icon      string  `json:"icon,omitempty"`
}

func (z zoneRequest) toZone(id string) location.Zone {
	return location.Zone{
		ID:        id,
		Name:      z.Name,
		Slug:      z.Slug,
		Latitude:  z.Latitude,
		Longitude: z.Longitude,
		Radius:    z.Radius,
		Passive:   z.Passive,
		Icon:      z.Icon,
	}
}

// handleListZones returns all geofence zones.
//
// GET /zones
// Response: {"zones": [...], "count": N}
func (s *Server) handleListZones(w http.ResponseWriter, _ *http.Request) {
	if s.zones == nil {
		writeJSON(w, http.StatusOK, map[string]any{"zones": []location.Zone{}, "count": 0})
		return
	}
	zones := s.zones.ListZones()
	if zones == nil {
		zones = []location.Zone{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones, "count": len(zones)})
}

// handleCreateZone creates a zone. It takes effect on the next zone lookup.
//
// POST /zones
// Response: 201 Created with the created zone
func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	if !s.requireZones(w) {
		return
	}

	var req zoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	zone := req.toZone("")
	if err := s.zones.CreateZone(r.Context(), &zone); err != nil {
		s.writeZoneError(w, "create", err)
		return
	}
	s.audit.Record(audit.ActionCreate, audit.EntityZone, zone.ID, audit.SourceAPI, map[string]any{"name": zone.Name, "slug": zone.Slug})

	writeJSON(w, http.StatusCreated, zone)
}

// handleGetZone returns a single zone by ID.
//
// GET /zones/{id}
func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	if !s.requireZones(w) {
		return
	}

	zone, err := s.zones.GetZone(chi.URLParam(r, "id"))
	if err != nil {
		s.writeZoneError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// handleUpdateZone replaces a zone.
//
// PUT /zones/{id}
func (s *Server) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	if !s.requireZones(w) {
		return
	}
	id := chi.URLParam(r, "id")

	var req zoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	zone := req.toZone(id)
	if err := s.zones.UpdateZone(r.Context(), &zone); err != nil {
		s.writeZoneError(w, "update", err)
		return
	}
	s.audit.Record(audit.ActionUpdate, audit.EntityZone, id, audit.SourceAPI, map[string]any{"name": zone.Name, "slug": zone.Slug})
	writeJSON(w, http.StatusOK, zone)
}

// handleDeleteZone removes a zone.
//
// DELETE /zones/{id}
// Response: 204 No Content
func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	if !s.requireZones(w) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.zones.DeleteZone(r.Context(), id); err != nil {
		s.writeZoneError(w, "delete", err)
		return
	}
	s.audit.Record(audit.ActionDelete, audit.EntityZone, id, audit.SourceAPI, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireZones(w http.ResponseWriter) bool {
	if s.zones == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "zones are not configured")
		return false
	}
	return true
}

// writeZoneError maps location errors to HTTP responses.
func (s *Server) writeZoneError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, location.ErrZoneNotFound):
		writeNotFound(w, "zone not found")
	case errors.Is(err, location.ErrZoneExists):
		writeConflict(w, "a zone with this slug already exists")
	case errors.Is(err, location.ErrInvalidName),
		errors.Is(err, location.ErrInvalidSlug),
		errors.Is(err, location.ErrInvalidCoordinates),
		errors.Is(err, location.ErrInvalidRadius):
		writeValidationError(w, err.Error())
	default:
		s.logger.Error("zone operation failed", "op", op, "error", err)
		writeInternalError(w, "failed to "+op+" zone")
	}
}
