package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/poisson-noise/poisson/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Intensity != domain.IntensityMedium {
		t.Errorf("Intensity = %q, want medium", cfg.Intensity)
	}
	if cfg.MaxBandwidthMBPerHour != 50 {
		t.Errorf("MaxBandwidthMBPerHour = %d, want 50", cfg.MaxBandwidthMBPerHour)
	}
	if cfg.MaxConcurrentSessions != 2 {
		t.Errorf("MaxConcurrentSessions = %d, want 2", cfg.MaxConcurrentSessions)
	}
	if !cfg.MatchBrowserFingerprint {
		t.Error("MatchBrowserFingerprint should default true")
	}
	if cfg.EnableAdClicks || cfg.EnableTor || cfg.EnableResearchNoise {
		t.Error("ad_clicks, tor, and research should default disabled")
	}
	if cfg.ScheduleMode != domain.ScheduleAlways {
		t.Errorf("ScheduleMode = %q, want always", cfg.ScheduleMode)
	}
}

func TestLoadConfig_ReadsOptionsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.json")
	b, _ := json.Marshal(map[string]any{
		"intensity":                "high",
		"max_bandwidth_mb_per_hour": 200,
		"enable_ad_clicks":         true,
	})
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write options file: %v", err)
	}

	t.Setenv("POISSON_OPTIONS_PATH", path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Intensity != domain.IntensityHigh {
		t.Errorf("Intensity = %q, want high", cfg.Intensity)
	}
	if cfg.MaxBandwidthMBPerHour != 200 {
		t.Errorf("MaxBandwidthMBPerHour = %d, want 200", cfg.MaxBandwidthMBPerHour)
	}
	if !cfg.EnableAdClicks {
		t.Error("EnableAdClicks should be true from options file")
	}
}

func TestLoadConfig_MissingOptionsFileUsesDefaults(t *testing.T) {
	t.Setenv("POISSON_OPTIONS_PATH", filepath.Join(t.TempDir(), "missing.json"))
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Intensity != domain.IntensityMedium {
		t.Errorf("Intensity = %q, want medium default", cfg.Intensity)
	}
}

func TestLoadConfig_MalformedOptionsFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("write options file: %v", err)
	}
	t.Setenv("POISSON_OPTIONS_PATH", path)

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() should error on malformed options.json")
	}
}

func TestLoadConfig_OptionsFileOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.json")
	b, _ := json.Marshal(map[string]any{"intensity": "low"})
	os.WriteFile(path, b, 0o644)

	t.Setenv("POISSON_OPTIONS_PATH", path)
	t.Setenv("POISSON_INTENSITY", "paranoid")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Intensity != domain.IntensityLow {
		t.Errorf("Intensity = %q, want low (file should win over env)", cfg.Intensity)
	}
}

func TestLoadConfig_InvalidIntensityRejected(t *testing.T) {
	t.Setenv("POISSON_OPTIONS_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("POISSON_INTENSITY", "extreme")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() should reject an invalid intensity enum")
	}
}

func TestLoadConfig_MaxConcurrentSessionsOutOfRangeRejected(t *testing.T) {
	t.Setenv("POISSON_OPTIONS_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("POISSON_MAX_CONCURRENT_SESSIONS", "9")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() should reject max_concurrent_sessions outside 1-5")
	}
}
