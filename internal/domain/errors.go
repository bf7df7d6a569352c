package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Configuration errors (exit 2)
	ErrConfigInvalidEnum  = errors.New("config: invalid enum value")
	ErrConfigOutOfRange   = errors.New("config: value out of range")
	ErrConfigUnreadable   = errors.New("config: options file unreadable")

	// Data-file errors (exit 3 if a default-enabled engine is affected)
	ErrDataFileMissing     = errors.New("data file: required file missing")
	ErrDataFileMalformed   = errors.New("data file: malformed YAML")
	ErrDataCategoryMissing = errors.New("data file: required category missing")

	// Session manager errors
	ErrNoFreeSlot        = errors.New("session manager: no free concurrency slot")
	ErrSessionNotRunning = errors.New("session manager: session is not running")
	ErrSlotLeakDetected  = errors.New("session manager: slot leak detected by auditor")

	// Bandwidth governor
	ErrBandwidthExceeded = errors.New("bandwidth governor: rolling window cap exceeded")

	// Engine dispatch
	ErrEngineDisabled   = errors.New("engine dispatcher: engine is disabled")
	ErrNoEnabledEngines = errors.New("engine dispatcher: no engines enabled")
	ErrEngineUnknown    = errors.New("engine dispatcher: unknown engine name")

	// Page driver
	ErrDriverTimeout     = errors.New("page driver: operation timed out")
	ErrDriverUnavailable = errors.New("page driver: unavailable")

	// Tor
	ErrTorOffline = errors.New("tor: SOCKS proxy unreachable")

	// Persona registry
	ErrNoPersonasLoaded = errors.New("persona registry: no personas loaded")

	// Control plane
	ErrUnauthorized       = errors.New("control plane: missing or invalid API key")
	ErrExtNotRegistered   = errors.New("control plane: extension collaborator not registered")
)
