package bandwidth

import (
	"context"
	"testing"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// ─── Admission Tests ────────────────────────────────────────────────────────

func TestGovernor_Admit_AllowsUnderCap(t *testing.T) {
	g := NewGovernor(GovernorConfig{WindowDuration: time.Hour, CapBytes: 1000, TickInterval: time.Second})
	if err := g.Admit(context.Background(), "search", 500); err != nil {
		t.Fatalf("Admit() error: %v", err)
	}
	if g.Usage() != 500 {
		t.Errorf("Usage() = %d, want 500", g.Usage())
	}
}

func TestGovernor_Admit_RejectsOverCap(t *testing.T) {
	g := NewGovernor(GovernorConfig{WindowDuration: time.Hour, CapBytes: 1000, TickInterval: time.Second})
	if err := g.Admit(context.Background(), "search", 900); err != nil {
		t.Fatalf("first Admit() error: %v", err)
	}
	if err := g.Admit(context.Background(), "search", 200); err != domain.ErrBandwidthExceeded {
		t.Errorf("second Admit() err = %v, want %v", err, domain.ErrBandwidthExceeded)
	}
}

func TestGovernor_Prune_ExpiresOldSamples(t *testing.T) {
	g := NewGovernor(GovernorConfig{WindowDuration: 10 * time.Millisecond, CapBytes: 1000, TickInterval: time.Second})
	if err := g.Admit(context.Background(), "dns", 900); err != nil {
		t.Fatalf("Admit() error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if u := g.Usage(); u != 0 {
		t.Errorf("Usage() after window expiry = %d, want 0", u)
	}
	if err := g.Admit(context.Background(), "dns", 900); err != nil {
		t.Errorf("Admit() after expiry should succeed, got %v", err)
	}
}

// ─── Settle / EWMA Tests ────────────────────────────────────────────────────

func TestGovernor_Settle_AdjustsUsageByDelta(t *testing.T) {
	g := NewGovernor(GovernorConfig{WindowDuration: time.Hour, CapBytes: 10000, TickInterval: time.Second})
	g.Admit(context.Background(), "browse", 1000)
	g.Settle("browse", 1000, 1500)
	if g.Usage() != 1500 {
		t.Errorf("Usage() after Settle = %d, want 1500", g.Usage())
	}
}

func TestGovernor_EstimateBytes_FallsBackWithoutHistory(t *testing.T) {
	g := NewGovernor(DefaultGovernorConfig())
	if got := g.EstimateBytes("search", 4096); got != 4096 {
		t.Errorf("EstimateBytes() = %d, want fallback 4096", got)
	}
}

func TestGovernor_EstimateBytes_ConvergesTowardObserved(t *testing.T) {
	g := NewGovernor(DefaultGovernorConfig())
	for i := 0; i < 20; i++ {
		g.Settle("search", 1000, 5000)
	}
	got := g.EstimateBytes("search", 0)
	if got < 4000 || got > 5000 {
		t.Errorf("EstimateBytes() after repeated settle = %d, want close to 5000", got)
	}
}
