package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds the dependency checks behind GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.recoveryMiddleware,
		s.corsMiddleware,
		middleware.RequestSize(maxRequestBodySize),
	)

	if s.metricsCfg.Enabled && s.gatherer != nil {
		r.Handle(s.metricsPath(), promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Post("/refresh", s.handleRefresh)

		r.Route("/trackers", func(r chi.Router) {
			r.Get("/", s.handleListTrackers)
			r.Get("/{id}", s.handleGetTracker)
		})

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", s.handleListZones)
			r.Post("/", s.handleCreateZone)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetZone)
				r.Put("/", s.handleUpdateZone)
				r.Delete("/", s.handleDeleteZone)
			})
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/stats", s.handleDeviceStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Delete("/", s.handleDeleteDevice)
			})
		})

		r.Get("/audit", s.handleListAudit)
		r.Get(wsPath(s.wsCfg), s.handleWebSocket)
	})

	return r
}

// componentHealth is one entry of the health response.
type componentHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// handleHealth reports the server and its dependencies.
//
// GET /health
// Response: 200 with status "ok" or "degraded"; 503 when the database fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	overall := "ok"
	code := http.StatusOK
	components := make(map[string]componentHealth)
	resp := map[string]any{
		"version":    s.version,
		"components": components,
	}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			components["database"] = componentHealth{Status: "error", Detail: err.Error()}
			overall = "error"
			code = http.StatusServiceUnavailable
		} else {
			components["database"] = componentHealth{Status: "ok"}
			if version, err := s.db.SchemaVersion(ctx); err == nil {
				resp["schema_version"] = version
			}
		}
	}

	if s.mqtt != nil {
		if s.mqtt.IsConnected() {
			components["mqtt"] = componentHealth{Status: "ok"}
		} else {
			components["mqtt"] = componentHealth{Status: "disconnected"}
			overall = degrade(overall)
		}
	}

	st := s.coordinator.Status()
	switch {
	case st.Cycles == 0:
		components["refresh"] = componentHealth{Status: "pending"}
	case st.LastUpdateSuccess:
		components["refresh"] = componentHealth{Status: "ok"}
	default:
		components["refresh"] = componentHealth{Status: "failing", Detail: st.LastError}
		overall = degrade(overall)
	}

	resp["status"] = overall
	writeJSON(w, code, resp)
}

func degrade(status string) string {
	if status == "ok" {
		return "degraded"
	}
	return status
}
