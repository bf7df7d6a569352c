package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/poisson-noise/poisson/internal/domain"
	"github.com/poisson-noise/poisson/internal/infra/metrics"
)

// handleListEngines serves GET /poisson/engines: per-engine enabled state,
// weight, and live stats (spec.md §4.8).
func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	var specs []domain.EngineSpec
	if s.dispatcher != nil {
		specs = s.dispatcher.Specs()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"engines": specs})
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// handleToggleEngine serves POST /poisson/engines/{name}/toggle.
func (s *Server) handleToggleEngine(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if s.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "dispatcher not available")
		return
	}
	if err := s.dispatcher.Toggle(name, req.Enabled); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	v := 0.0
	if req.Enabled {
		v = 1.0
	}
	metrics.EngineEnabled.WithLabelValues(name).Set(v)

	writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "enabled": req.Enabled})
}
