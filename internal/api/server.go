// Package api provides the control-plane HTTP server for Poisson: status,
// stats, activity, engine toggles, intensity changes, fingerprint pinning,
// and the optional extension-collaborator endpoints (spec.md §4.8).
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/poisson-noise/poisson/internal/domain"
	"github.com/poisson-noise/poisson/internal/infra/extcollab"
	"github.com/poisson-noise/poisson/internal/infra/orchestrator"
	"github.com/poisson-noise/poisson/internal/security"
)

// Dispatcher is the subset of dispatch.Dispatcher the API needs.
type Dispatcher interface {
	Specs() []domain.EngineSpec
	Toggle(name string, enabled bool) error
}

// Personas is the subset of persona.Registry the API needs.
type Personas interface {
	List() []domain.Persona
	Pin(ctx context.Context, bundle domain.FingerprintBundle) (domain.Persona, error)
	Clear(ctx context.Context) error
}

// Sessions is the subset of session.Manager the API needs.
type Sessions interface {
	Running() []*domain.Session
	FreeSlots() int
}

// Activity is the subset of ring.Ring the API needs.
type Activity interface {
	Recent(count int) []domain.ActivityEntry
	All() []domain.ActivityEntry
}

// HealthSource reports aggregate daemon health for /status.
type HealthSource interface {
	IsHealthy() bool
}

// Scheduler is the subset of orchestrator.Orchestrator the API needs.
type Scheduler interface {
	NextSessionETA() time.Time
	CurrentPersona() string
	Uptime() time.Duration
	Stats() orchestrator.Stats
}

// IntensityControl lets the API retune the timing kernel's base rate.
type IntensityControl interface {
	SetBase(level domain.IntensityLevel)
}

// TorStatusSource reports the Tor SOCKS proxy's current status.
type TorStatusSource interface {
	Status() domain.TorStatus
}

// FingerprintStore persists the pinned fingerprint bundle across restarts.
type FingerprintStore interface {
	SaveFingerprint(bundle domain.FingerprintBundle, personaName string) error
	ClearFingerprint() error
}

// PresenceReporter lets the API feed a home/away signal into the
// orchestrator's schedule-mode gate (spec.md §4.7).
type PresenceReporter interface {
	SetPresent(present bool)
}

// Server is the Poisson control-plane HTTP server.
type Server struct {
	apiKey         security.APIKey
	dispatcher     Dispatcher
	personas       Personas
	sessions       Sessions
	activity       Activity
	health         HealthSource
	scheduler      Scheduler
	intensity      IntensityControl
	torStatus      TorStatusSource
	fingerprints   FingerprintStore
	presence       PresenceReporter
	ext            *extcollab.Collab
	logger         *zap.Logger
	metricsEnabled bool
	torEnabled     bool

	mu            sync.Mutex
	fpMatched     bool                  // whether a fingerprint bundle is currently pinned
	lastIntensity domain.IntensityLevel // last value accepted by /intensity
}

// Deps bundles the Server's wired dependencies, mirroring the teacher's
// constructor-injection style (no process-wide singletons, per spec §9).
type Deps struct {
	APIKey       security.APIKey
	Dispatcher   Dispatcher
	Personas     Personas
	Sessions     Sessions
	Activity     Activity
	Health       HealthSource
	Scheduler    Scheduler
	Intensity    IntensityControl
	TorStatus    TorStatusSource
	Fingerprints FingerprintStore
	Presence         PresenceReporter
	Ext              *extcollab.Collab
	Logger           *zap.Logger
	TorEnabled       bool
	InitialIntensity domain.IntensityLevel
}

// NewServer creates a new control-plane API server.
func NewServer(d Deps) *Server {
	return &Server{
		apiKey:       d.APIKey,
		dispatcher:   d.Dispatcher,
		personas:     d.Personas,
		sessions:     d.Sessions,
		activity:     d.Activity,
		health:       d.Health,
		scheduler:    d.Scheduler,
		intensity:    d.Intensity,
		torStatus:    d.TorStatus,
		fingerprints: d.Fingerprints,
		presence:     d.Presence,
		ext:          d.Ext,
		logger:        d.Logger,
		torEnabled:    d.TorEnabled,
		lastIntensity: d.InitialIntensity,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

func (s *Server) setFingerprintMatched(v bool) {
	s.mu.Lock()
	s.fpMatched = v
	s.mu.Unlock()
}

func (s *Server) fingerprintMatched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fpMatched
}

// Handler returns the chi router with every control-plane route mounted.
// Every route is gated by the opaque API key except the public health
// probe at /health — spec §4.8's "required on every endpoint except a
// public health probe." The /poisson/ext routes are gated by a bearer
// token (requireExtToken) instead of the key.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.metricsEnabled {
		r.With(s.requireAPIKey).Handle("/metrics", promhttp.Handler())
	}

	// Namespaced away from a host platform's own "/api" surface so a
	// service worker there never intercepts these requests (spec §4.8).
	r.Route("/poisson", func(r chi.Router) {
		// /poisson/ext is a sibling of the core-key-gated routes, not a
		// child of them: the extension only ever holds a bearer token
		// issued by the host platform's own auth provider, never the
		// core's opaque key, so it must not be required to also pass
		// requireAPIKey first.
		r.Route("/ext", func(r chi.Router) {
			r.Use(s.requireExtToken)
			r.Post("/register", s.handleExtRegister)
			r.Post("/heartbeat", s.handleExtHeartbeat)
			r.Get("/next-task", s.handleExtNextTask)
			r.Post("/fingerprint", s.handleFingerprint)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)

			r.Get("/status", s.handleStatus)
			r.Get("/stats", s.handleStats)
			r.Get("/activity", s.handleActivity)
			r.Get("/activity/chart", s.handleActivityChart)
			r.Get("/engines", s.handleListEngines)
			r.Post("/engines/{name}/toggle", s.handleToggleEngine)
			r.Post("/intensity", s.handleSetIntensity)
			r.Post("/fingerprint", s.handleFingerprint)
			r.Delete("/fingerprint", s.handleClearFingerprint)
			r.Post("/presence", s.handlePresence)
		})
	})

	return r
}

// requireAPIKey checks the opaque bearer key minted at process start,
// accepted via either the Authorization header or X-API-Key, mirroring
// how a dashboard injected with the key at page load would send it.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey.Equal(bearerOrHeader(r)) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
	})
}

// requireExtToken checks for the presence of a bearer token issued by the
// host platform's own auth provider (spec §4.8). The core has no way to
// validate that token's signature itself — it only confirms one was sent,
// leaving authorization to the host platform's reverse proxy in front of
// this server.
func (s *Server) requireExtToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerOrHeader(r) == "" {
			writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerOrHeader(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{"message": msg},
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
