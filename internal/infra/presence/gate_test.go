package presence

import (
	"testing"

	"github.com/poisson-noise/poisson/internal/domain"
)

func TestGate_Always_NeverBlocks(t *testing.T) {
	g := NewGate(domain.ScheduleAlways)
	if !g.Allow() {
		t.Error("always mode should allow regardless of presence")
	}
	g.SetPresent(true)
	if !g.Allow() {
		t.Error("always mode should allow regardless of presence")
	}
}

func TestGate_HomeOnly_RequiresPresence(t *testing.T) {
	g := NewGate(domain.ScheduleHomeOnly)
	if g.Allow() {
		t.Error("home_only should stay closed until presence is reported")
	}
	g.SetPresent(true)
	if !g.Allow() {
		t.Error("home_only should open once presence is true")
	}
	g.SetPresent(false)
	if g.Allow() {
		t.Error("home_only should close again once presence goes false")
	}
}

func TestGate_AwayOnly_BlocksWhilePresent(t *testing.T) {
	g := NewGate(domain.ScheduleAwayOnly)
	if !g.Allow() {
		t.Error("away_only should default open (presence unknown == away)")
	}
	g.SetPresent(true)
	if g.Allow() {
		t.Error("away_only should close once presence is true")
	}
	g.SetPresent(false)
	if !g.Allow() {
		t.Error("away_only should reopen once presence goes false")
	}
}

func TestGate_SetMode_SwitchesBehaviorLive(t *testing.T) {
	g := NewGate(domain.ScheduleAlways)
	g.SetPresent(true)
	g.SetMode(domain.ScheduleHomeOnly)
	if !g.Allow() {
		t.Error("switching to home_only with presence already true should allow")
	}
}
