// Package domain holds the core types shared across the generator:
// events, sessions, personas, topics, tasks, and the activity ring.
package domain

import "time"

// SessionState tracks a session's lifecycle.
type SessionState string

const (
	SessionPending  SessionState = "pending"
	SessionRunning  SessionState = "running"
	SessionStopping SessionState = "stopping"
	SessionDone     SessionState = "done"
	SessionFailed   SessionState = "failed"
)

// Session represents one coherent browsing period pinned to a single
// persona for its whole lifetime.
type Session struct {
	ID              string       `json:"id"`
	Persona         string       `json:"persona"`
	Topic           string       `json:"topic"`
	StartTS         time.Time    `json:"start_ts"`
	PlannedDuration time.Duration `json:"planned_duration"`
	PageBudget      int          `json:"page_budget"`
	BytesConsumed   int64        `json:"bytes_consumed"`
	State           SessionState `json:"state"`
	EnginePath      []string     `json:"engine_path"`
}

// IsTerminal reports whether the session has reached a final state.
func (s *Session) IsTerminal() bool {
	return s.State == SessionDone || s.State == SessionFailed
}

// HardCap returns the absolute maximum lifetime for the session
// (min(planned_duration * 1.5, 3h), per spec §4.5).
func (s *Session) HardCap() time.Duration {
	d := time.Duration(float64(s.PlannedDuration) * 1.5)
	if d > 3*time.Hour {
		return 3 * time.Hour
	}
	return d
}

// TaskKind distinguishes what a dispatched Task actually does.
type TaskKind string

const (
	TaskKindPage TaskKind = "page"
	TaskKindDNS  TaskKind = "dns"
	TaskKindAPI  TaskKind = "api"
)

// Task is a single unit of concrete network work produced by an engine.
type Task struct {
	EngineName    string
	URL           string
	Method        string
	ExpectedBytes int64
	PostDelay     time.Duration
	Kind          TaskKind
	SessionID     string
	Persona       string
	Topic         string
}

// Outcome classifies how a Task's execution concluded.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// ActivityEntry is an append-only record rendered into the activity ring
// and the JSON-lines activity log.
type ActivityEntry struct {
	Timestamp time.Time `json:"ts"`
	Engine    string    `json:"engine"`
	URL       string    `json:"url,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Bytes     int64     `json:"bytes"`
	Outcome   Outcome   `json:"outcome"`
	Persona   string    `json:"persona,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// EventTag identifies an event's logical stream.
type EventTag string

const (
	EventSessionStart     EventTag = "session_start"
	EventDNSTick          EventTag = "dns_tick"
	EventObsessionRefresh EventTag = "obsession_refresh"
)

// Event is a scheduled firing time produced by the timing kernel.
// Single-use: once fired, it is discarded.
type Event struct {
	Tag      EventTag
	FireAt   time.Time
	LambdaAt float64 // the λ sample that produced this event, for observability
}

// EngineSpec describes one traffic engine's configuration and live stats.
type EngineSpec struct {
	Name                   string       `json:"name"`
	Enabled                bool         `json:"enabled"`
	Weight                 float64      `json:"weight"`
	MaxConcurrent          int          `json:"max_concurrent"`
	RequiresBrowser        bool         `json:"requires_browser"`
	AllowedBySafetyDefault bool         `json:"allowed_by_safety_default"`
	Stats                  EngineStats  `json:"stats"`
}

// EngineStats are the live counters exposed on GET /engines.
type EngineStats struct {
	Requests int64 `json:"requests"`
	Errors   int64 `json:"errors"`
	Skipped  int64 `json:"skipped"`
	Bytes    int64 `json:"bytes"`
}
