package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestSessionMetrics_Registered(t *testing.T) {
	SessionsStarted.Inc()
	SessionsCompleted.Inc()
	SessionsFailed.Inc()
	SessionsActive.Set(2)
	SessionDuration.Observe(120)

	names := gatheredNames(t)
	for _, n := range []string{
		"poisson_sessions_started_total",
		"poisson_sessions_completed_total",
		"poisson_sessions_failed_total",
		"poisson_sessions_active",
		"poisson_session_duration_seconds",
	} {
		if !names[n] {
			t.Errorf("metric %q not found", n)
		}
	}
}

func TestBandwidthMetrics_Registered(t *testing.T) {
	BandwidthUsedBytes.Set(1024)
	BandwidthRejections.WithLabelValues("search").Inc()

	names := gatheredNames(t)
	if !names["poisson_bandwidth_used_bytes"] {
		t.Error("poisson_bandwidth_used_bytes not found")
	}
	if !names["poisson_bandwidth_rejections_total"] {
		t.Error("poisson_bandwidth_rejections_total not found")
	}
}

func TestEngineMetrics_Registered(t *testing.T) {
	EngineRequests.WithLabelValues("search", "ok").Inc()
	EngineBytes.WithLabelValues("search").Add(4096)
	EngineEnabled.WithLabelValues("search").Set(1)

	names := gatheredNames(t)
	for _, n := range []string{
		"poisson_engine_requests_total",
		"poisson_engine_bytes_total",
		"poisson_engine_enabled",
	} {
		if !names[n] {
			t.Errorf("metric %q not found", n)
		}
	}
}

func TestPersonaAndFingerprintMetrics_Registered(t *testing.T) {
	PersonaAssignments.WithLabelValues("desktop-1").Inc()
	FingerprintMatched.Set(1)

	names := gatheredNames(t)
	if !names["poisson_persona_assignments_total"] {
		t.Error("poisson_persona_assignments_total not found")
	}
	if !names["poisson_fingerprint_matched"] {
		t.Error("poisson_fingerprint_matched not found")
	}
}

func TestTorAndObsessionMetrics_Registered(t *testing.T) {
	TorStatus.Set(2)
	ObsessionActive.Set(1)
	EventLambda.Set(60)

	names := gatheredNames(t)
	for _, n := range []string{
		"poisson_tor_status",
		"poisson_obsession_active",
		"poisson_event_lambda_per_hour",
	} {
		if !names[n] {
			t.Errorf("metric %q not found", n)
		}
	}
}

func TestHealthMetrics_Registered(t *testing.T) {
	HealthCheckStatus.WithLabelValues("sqlite").Set(1)
	HealthCheckStatus.WithLabelValues("tor_proxy").Set(0)
	HealthRecoveries.WithLabelValues("sqlite").Inc()

	names := gatheredNames(t)
	if !names["poisson_health_check_status"] {
		t.Error("poisson_health_check_status not found")
	}
	if !names["poisson_health_recoveries_total"] {
		t.Error("poisson_health_recoveries_total not found")
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	names := gatheredNames(t)

	poissonMetrics := 0
	for n := range names {
		if len(n) > 8 && n[:8] == "poisson_" {
			poissonMetrics++
		}
	}
	if poissonMetrics < 12 {
		t.Errorf("expected at least 12 poisson_ metrics, got %d", poissonMetrics)
	}
}
