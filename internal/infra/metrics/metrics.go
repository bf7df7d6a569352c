// Package metrics provides Prometheus metrics for Poisson's traffic
// generator: session lifecycle, bandwidth consumption, per-engine request
// outcomes, persona assignment, and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Sessions ────────────────────────────────────────────────────────────────

// SessionsStarted tracks total sessions admitted.
var SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "poisson",
	Name:      "sessions_started_total",
	Help:      "Total sessions admitted by the session manager.",
})

// SessionsCompleted tracks sessions that reached the done state.
var SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "poisson",
	Name:      "sessions_completed_total",
	Help:      "Total sessions that completed normally.",
})

// SessionsFailed tracks sessions that ended in the failed state.
var SessionsFailed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "poisson",
	Name:      "sessions_failed_total",
	Help:      "Total sessions that ended failed.",
})

// SessionsActive tracks currently running sessions.
var SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "poisson",
	Name:      "sessions_active",
	Help:      "Number of sessions currently occupying a concurrency slot.",
})

// SessionDuration tracks actual session wall-clock duration in seconds.
var SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "poisson",
	Name:      "session_duration_seconds",
	Help:      "Actual session duration in seconds.",
	Buckets:   []float64{30, 60, 300, 600, 1800, 3600, 7200},
})

// ─── Bandwidth ───────────────────────────────────────────────────────────────

// BandwidthUsedBytes tracks bytes consumed within the governor's rolling window.
var BandwidthUsedBytes = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "poisson",
	Name:      "bandwidth_used_bytes",
	Help:      "Bytes consumed within the bandwidth governor's current rolling window.",
})

// BandwidthRejections tracks admission rejections by engine.
var BandwidthRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "poisson",
	Name:      "bandwidth_rejections_total",
	Help:      "Total task admissions rejected by the bandwidth governor.",
}, []string{"engine"})

// ─── Engines ─────────────────────────────────────────────────────────────────

// EngineRequests tracks completed page fetches per engine and outcome.
var EngineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "poisson",
	Name:      "engine_requests_total",
	Help:      "Total page fetches attempted per engine, labeled by outcome.",
}, []string{"engine", "outcome"})

// EngineBytes tracks bytes transferred per engine.
var EngineBytes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "poisson",
	Name:      "engine_bytes_total",
	Help:      "Total bytes transferred per engine.",
}, []string{"engine"})

// EngineEnabled tracks the operator-toggled enabled state per engine (1/0).
var EngineEnabled = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "poisson",
	Name:      "engine_enabled",
	Help:      "Whether an engine is currently enabled (1) or disabled (0).",
}, []string{"engine"})

// ─── Personas ────────────────────────────────────────────────────────────────

// PersonaAssignments tracks how often each persona is drawn.
var PersonaAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "poisson",
	Name:      "persona_assignments_total",
	Help:      "Total times a persona was assigned to a session.",
}, []string{"persona"})

// FingerprintMatched reports whether a dashboard fingerprint is currently pinned.
var FingerprintMatched = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "poisson",
	Name:      "fingerprint_matched",
	Help:      "1 if a persona is currently pinned to a reported fingerprint bundle, else 0.",
})

// ─── Tor ─────────────────────────────────────────────────────────────────────

// TorStatus reports the Tor SOCKS proxy state as a gauge
// (0=disabled, 1=connecting, 2=connected, 3=offline).
var TorStatus = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "poisson",
	Name:      "tor_status",
	Help:      "Tor proxy status (0=disabled, 1=connecting, 2=connected, 3=offline).",
})

// ─── Topics ──────────────────────────────────────────────────────────────────

// ObsessionActive reports whether a topic obsession is currently live.
var ObsessionActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "poisson",
	Name:      "obsession_active",
	Help:      "1 if a topic obsession is currently active, else 0.",
})

// ─── Scheduler ───────────────────────────────────────────────────────────────

// EventLambda reports the instantaneous event rate used for the most recent
// inter-arrival draw, in events per hour.
var EventLambda = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "poisson",
	Name:      "event_lambda_per_hour",
	Help:      "Instantaneous Poisson rate used for the most recent scheduling draw, events/hour.",
})

// ─── Health ──────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "poisson",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "poisson",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
