package api

import (
	"encoding/json"
	"net/http"
)

type presenceRequest struct {
	Present bool `json:"present"`
}

// handlePresence serves POST /poisson/presence: a home/away report, from
// a Home Assistant automation or similar, that feeds the orchestrator's
// schedule-mode gate when schedule_mode is home_only or away_only
// (spec.md §4.7). Harmless to call when schedule_mode is always.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if s.presence != nil {
		s.presence.SetPresent(req.Present)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"present": req.Present})
}
