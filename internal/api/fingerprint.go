package api

import (
	"encoding/json"
	"net/http"

	"github.com/poisson-noise/poisson/internal/domain"
	"github.com/poisson-noise/poisson/internal/infra/metrics"
)

// handleFingerprint serves POST /poisson/fingerprint and POST
// /poisson/ext/fingerprint: a dashboard- or extension-reported set of
// browser fingerprint signals that pins one persona to them for the
// duration of the run (spec.md §4.3, §6).
func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	var bundle domain.FingerprintBundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if s.personas == nil {
		writeError(w, http.StatusServiceUnavailable, "persona registry not available")
		return
	}

	matched, err := s.personas.Pin(r.Context(), bundle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.fingerprints != nil {
		if err := s.fingerprints.SaveFingerprint(bundle, matched.Name); err != nil && s.logger != nil {
			s.logger.Warn("failed to persist fingerprint pin")
		}
	}

	s.setFingerprintMatched(true)
	metrics.FingerprintMatched.Set(1)

	writeJSON(w, http.StatusOK, map[string]interface{}{"persona": matched})
}

// handleClearFingerprint serves DELETE /poisson/fingerprint: releases the
// pinned persona, letting the registry resume weighted random assignment
// on the next session (spec.md §4.3).
func (s *Server) handleClearFingerprint(w http.ResponseWriter, r *http.Request) {
	if s.personas == nil {
		writeError(w, http.StatusServiceUnavailable, "persona registry not available")
		return
	}
	if err := s.personas.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.fingerprints != nil {
		if err := s.fingerprints.ClearFingerprint(); err != nil && s.logger != nil {
			s.logger.Warn("failed to clear persisted fingerprint pin")
		}
	}

	s.setFingerprintMatched(false)
	metrics.FingerprintMatched.Set(0)

	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}
