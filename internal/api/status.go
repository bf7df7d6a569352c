package api

import (
	"net/http"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

type statusResponse struct {
	Status             string  `json:"status"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	CurrentPersona     string  `json:"current_persona"`
	Intensity          string  `json:"intensity"`
	FingerprintMatched bool    `json:"fingerprint_matched"`
	TorStatus          string  `json:"tor_status"`
}

// handleStatus serves GET /poisson/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.health != nil && !s.health.IsHealthy() {
		status = "error"
	}

	tor := domain.TorDisabled
	if s.torEnabled && s.torStatus != nil {
		tor = s.torStatus.Status()
	}

	var uptime float64
	var persona string
	if s.scheduler != nil {
		uptime = s.scheduler.Uptime().Seconds()
		persona = s.scheduler.CurrentPersona()
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:             status,
		UptimeSeconds:      uptime,
		CurrentPersona:     persona,
		Intensity:          string(currentIntensity(s)),
		FingerprintMatched: s.fingerprintMatched(),
		TorStatus:          string(tor),
	})
}

// currentIntensity has no single source of truth in the wired components
// (the kernel only accepts SetBase, it doesn't expose the level back), so
// the server tracks the last value it was told about via /intensity and
// at startup. A zero value means "never set", reported as empty.
func currentIntensity(s *Server) domain.IntensityLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIntensity
}

type statsResponse struct {
	SessionsToday    int64   `json:"sessions_today"`
	RequestsToday    int64   `json:"requests_today"`
	BandwidthTodayMB float64 `json:"bandwidth_today_mb"`
	ActiveSessions   int     `json:"active_sessions"`
	ErrorsToday      int64   `json:"errors_today"`
	NextSessionIn    float64 `json:"next_session_in"`
}

// handleStats serves GET /poisson/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var st statsResponse
	if s.scheduler != nil {
		stats := s.scheduler.Stats()
		st.SessionsToday = stats.SessionsToday
		st.RequestsToday = stats.RequestsToday
		st.BandwidthTodayMB = float64(stats.BytesToday) / (1024 * 1024)
		st.ErrorsToday = stats.ErrorsToday

		eta := s.scheduler.NextSessionETA()
		if !eta.IsZero() {
			if d := time.Until(eta); d > 0 {
				st.NextSessionIn = d.Seconds()
			}
		}
	}
	if s.sessions != nil {
		st.ActiveSessions = len(s.sessions.Running())
	}

	writeJSON(w, http.StatusOK, st)
}
