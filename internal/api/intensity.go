package api

import (
	"encoding/json"
	"net/http"

	"github.com/poisson-noise/poisson/internal/domain"
)

type intensityRequest struct {
	Intensity domain.IntensityLevel `json:"intensity"`
}

// handleSetIntensity serves POST /poisson/intensity.
func (s *Server) handleSetIntensity(w http.ResponseWriter, r *http.Request) {
	var req intensityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !req.Intensity.Valid() {
		writeError(w, http.StatusBadRequest, domain.ErrConfigInvalidEnum.Error())
		return
	}

	if s.intensity != nil {
		s.intensity.SetBase(req.Intensity)
	}

	s.mu.Lock()
	s.lastIntensity = req.Intensity
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"intensity": req.Intensity})
}
