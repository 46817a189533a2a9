package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tracker/internal/host"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

// handleListTrackers returns the current state of every tracked device.
//
// GET /trackers
// GET /trackers?zone=home
// Response: {"trackers": [...], "count": N}
func (s *Server) handleListTrackers(w http.ResponseWriter, r *http.Request) {
	states := s.host.States()

	if zone := r.URL.Query().Get("zone"); zone != "" {
		filtered := make([]tracker.State, 0, len(states))
		for _, st := range states {
			if st.LocationName == zone {
				filtered = append(filtered, st)
			}
		}
		states = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"trackers": states, "count": len(states)})
}

// handleGetTracker returns one tracker's state.
//
// GET /trackers/{id}
func (s *Server) handleGetTracker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := s.host.State(id)
	if err != nil {
		if errors.Is(err, host.ErrEntityNotFound) {
			writeNotFound(w, "tracker not found")
			return
		}
		// The entity exists but its state is unreadable (bad coordinates).
		writeError(w, http.StatusUnprocessableEntity, ErrCodeUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, st)
}
