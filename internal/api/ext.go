package api

import (
	"encoding/json"
	"net/http"

	"github.com/poisson-noise/poisson/internal/infra/extcollab"
)

// handleExtRegister serves POST /poisson/ext/register. The extension calls
// this once on startup to announce itself as the optional remote
// collaborator engine (spec.md §6).
func (s *Server) handleExtRegister(w http.ResponseWriter, r *http.Request) {
	if s.ext == nil {
		writeError(w, http.StatusServiceUnavailable, "extension collaborator not configured")
		return
	}
	s.ext.Register()
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

// handleExtHeartbeat serves POST /poisson/ext/heartbeat: the extension
// reports counters for work it completed since the last heartbeat.
func (s *Server) handleExtHeartbeat(w http.ResponseWriter, r *http.Request) {
	if s.ext == nil {
		writeError(w, http.StatusServiceUnavailable, "extension collaborator not configured")
		return
	}

	var counters extcollab.Counters
	if err := json.NewDecoder(r.Body).Decode(&counters); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.ext.Heartbeat(counters); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"totals": s.ext.Totals()})
}

// handleExtNextTask serves GET /poisson/ext/next-task: the extension polls
// this for the next small task to run, if any is queued.
func (s *Server) handleExtNextTask(w http.ResponseWriter, r *http.Request) {
	if s.ext == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"task": nil})
		return
	}

	task, ok := s.ext.NextTask()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"task": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"task": task})
}
