// Package presence implements the schedule-mode gate the orchestrator
// consults before acting on a fired timing-kernel event (spec.md §4.7,
// §8 property 3). Presence itself is reported from outside the core —
// typically a Home Assistant automation calling the control-plane API —
// so the gate holds whatever was last reported and defaults to "away"
// until told otherwise, mirroring the idle detector's
// "known-safe-default-until-sensed" shape.
package presence

import (
	"sync"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// Gate decides whether the orchestrator may act on a fired event, given
// the configured schedule mode and the most recently reported presence
// state.
type Gate struct {
	mu         sync.RWMutex
	mode       domain.ScheduleMode
	present    bool
	lastReport time.Time
}

// NewGate builds a gate for the given mode. Presence starts "away" —
// the conservative default for away_only (runs immediately) and for
// home_only (stays quiet until presence is reported at least once).
func NewGate(mode domain.ScheduleMode) *Gate {
	return &Gate{mode: mode}
}

// SetMode changes the gating mode, e.g. when an operator edits
// schedule_mode without restarting the daemon.
func (g *Gate) SetMode(mode domain.ScheduleMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = mode
}

// SetPresent records the latest presence report.
func (g *Gate) SetPresent(present bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.present = present
	g.lastReport = time.Now()
}

// Allow reports whether a fired event may proceed under the current
// mode and presence state. custom currently behaves like always —
// spec.md leaves its rule set unspecified beyond the enum name.
func (g *Gate) Allow() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	switch g.mode {
	case domain.ScheduleHomeOnly:
		return g.present
	case domain.ScheduleAwayOnly:
		return !g.present
	default:
		return true
	}
}
