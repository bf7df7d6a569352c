// Package daemon manages the Poisson daemon lifecycle and configuration.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/poisson-noise/poisson/internal/domain"
)

// Config holds all daemon configuration, populated from (in priority order)
// an options.json blob, POISSON_-prefixed environment variables, then
// compiled defaults.
type Config struct {
	Intensity             domain.IntensityLevel `json:"intensity"`
	EnableSearchNoise     bool                  `json:"enable_search_noise"`
	EnableBrowseNoise     bool                  `json:"enable_browse_noise"`
	EnableDNSNoise        bool                  `json:"enable_dns_noise"`
	EnableAdClicks        bool                  `json:"enable_ad_clicks"`
	EnableTor             bool                  `json:"enable_tor"`
	EnableResearchNoise   bool                  `json:"enable_research_noise"`
	MaxBandwidthMBPerHour int                   `json:"max_bandwidth_mb_per_hour"`
	MaxConcurrentSessions int                   `json:"max_concurrent_sessions"`
	MatchBrowserFingerprint bool                `json:"match_browser_fingerprint"`
	ScheduleMode          domain.ScheduleMode   `json:"schedule_mode"`

	// Not part of the options.json contract — host/runtime plumbing.
	APIHost   string `json:"-"`
	APIPort   int    `json:"-"`
	DataDir   string `json:"-"`
	LogLevel  string `json:"-"`
	TorSOCKS  string `json:"-"`
}

// DefaultConfig returns the compiled defaults from spec §6.
func DefaultConfig() Config {
	return Config{
		Intensity:               domain.IntensityMedium,
		EnableSearchNoise:       true,
		EnableBrowseNoise:       true,
		EnableDNSNoise:          true,
		EnableAdClicks:          false,
		EnableTor:               false,
		EnableResearchNoise:     false,
		MaxBandwidthMBPerHour:   50,
		MaxConcurrentSessions:   2,
		MatchBrowserFingerprint: true,
		ScheduleMode:            domain.ScheduleAlways,

		APIHost:  "127.0.0.1",
		APIPort:  8099,
		DataDir:  poissonHome(),
		LogLevel: "info",
		TorSOCKS: "127.0.0.1:9050",
	}
}

// LoadConfig applies, in order: compiled defaults, POISSON_-prefixed
// environment variables, then an options.json blob (from
// POISSON_OPTIONS_PATH or /data/options.json), so a key set in
// options.json wins over its environment variable. A missing options file
// is not an error; a malformed one is (exit 2 per spec §7).
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	optionsPath := os.Getenv("POISSON_OPTIONS_PATH")
	if optionsPath == "" {
		optionsPath = "/data/options.json"
	}
	if b, err := os.ReadFile(optionsPath); err == nil {
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", domain.ErrConfigUnreadable, optionsPath, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("%w: %s: %v", domain.ErrConfigUnreadable, optionsPath, err)
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("POISSON_INTENSITY"); ok {
		cfg.Intensity = domain.IntensityLevel(v)
	}
	if v, ok := lookupBool("POISSON_ENABLE_SEARCH_NOISE"); ok {
		cfg.EnableSearchNoise = v
	}
	if v, ok := lookupBool("POISSON_ENABLE_BROWSE_NOISE"); ok {
		cfg.EnableBrowseNoise = v
	}
	if v, ok := lookupBool("POISSON_ENABLE_DNS_NOISE"); ok {
		cfg.EnableDNSNoise = v
	}
	if v, ok := lookupBool("POISSON_ENABLE_AD_CLICKS"); ok {
		cfg.EnableAdClicks = v
	}
	if v, ok := lookupBool("POISSON_ENABLE_TOR"); ok {
		cfg.EnableTor = v
	}
	if v, ok := lookupBool("POISSON_ENABLE_RESEARCH_NOISE"); ok {
		cfg.EnableResearchNoise = v
	}
	if v, ok := os.LookupEnv("POISSON_MAX_BANDWIDTH_MB_PER_HOUR"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: POISSON_MAX_BANDWIDTH_MB_PER_HOUR: %v", domain.ErrConfigOutOfRange, err)
		}
		cfg.MaxBandwidthMBPerHour = n
	}
	if v, ok := os.LookupEnv("POISSON_MAX_CONCURRENT_SESSIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: POISSON_MAX_CONCURRENT_SESSIONS: %v", domain.ErrConfigOutOfRange, err)
		}
		cfg.MaxConcurrentSessions = n
	}
	if v, ok := lookupBool("POISSON_MATCH_BROWSER_FINGERPRINT"); ok {
		cfg.MatchBrowserFingerprint = v
	}
	if v, ok := os.LookupEnv("POISSON_SCHEDULE_MODE"); ok {
		cfg.ScheduleMode = domain.ScheduleMode(v)
	}
	if v, ok := os.LookupEnv("POISSON_API_HOST"); ok {
		cfg.APIHost = v
	}
	if v, ok := os.LookupEnv("POISSON_API_PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: POISSON_API_PORT: %v", domain.ErrConfigOutOfRange, err)
		}
		cfg.APIPort = n
	}
	if v, ok := os.LookupEnv("POISSON_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("POISSON_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("POISSON_TOR_SOCKS"); ok {
		cfg.TorSOCKS = v
	}
	return nil
}

func lookupBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, true
	default:
		return false, true
	}
}

func validate(cfg Config) error {
	if !cfg.Intensity.Valid() {
		return fmt.Errorf("%w: intensity=%q", domain.ErrConfigInvalidEnum, cfg.Intensity)
	}
	if !cfg.ScheduleMode.Valid() {
		return fmt.Errorf("%w: schedule_mode=%q", domain.ErrConfigInvalidEnum, cfg.ScheduleMode)
	}
	if cfg.MaxBandwidthMBPerHour < 1 {
		return fmt.Errorf("%w: max_bandwidth_mb_per_hour=%d", domain.ErrConfigOutOfRange, cfg.MaxBandwidthMBPerHour)
	}
	if cfg.MaxConcurrentSessions < 1 || cfg.MaxConcurrentSessions > 5 {
		return fmt.Errorf("%w: max_concurrent_sessions=%d", domain.ErrConfigOutOfRange, cfg.MaxConcurrentSessions)
	}
	return nil
}

// poissonHome returns the data directory, honoring POISSON_DATA_DIR.
func poissonHome() string {
	if env := os.Getenv("POISSON_DATA_DIR"); env != "" {
		return env
	}
	return "/data/poisson"
}

// PoissonHome is exported for use by other packages.
func PoissonHome() string {
	return poissonHome()
}
