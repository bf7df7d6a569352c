// Package bandwidth implements the bandwidth governor: a rolling-window
// byte ledger that admits or rejects tasks before dispatch, plus a
// per-engine EWMA byte estimator (spec.md §4.4).
package bandwidth

import (
	"context"
	"sync"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// GovernorConfig controls rolling-window admission behavior.
type GovernorConfig struct {
	WindowDuration time.Duration // rolling window length (default 1h)
	CapBytes       int64         // max bytes allowed within the window
	TickInterval   time.Duration // how often old samples are pruned
}

// DefaultGovernorConfig returns conservative defaults.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		WindowDuration: time.Hour,
		CapBytes:       200 * 1024 * 1024, // 200MB/hour
		TickInterval:   10 * time.Second,
	}
}

type sample struct {
	at    time.Time
	bytes int64
}

// Governor admits tasks against a rolling byte budget and tracks a
// per-engine EWMA of bytes actually consumed, the way the teacher's
// resource governor ticks sensors into a ComputeBudget.
type Governor struct {
	mu       sync.Mutex
	cfg      GovernorConfig
	samples  []sample
	used     int64
	ewma     map[string]float64
	reserved map[string]int64 // outstanding reservations by engine, for Settle
}

// NewGovernor creates a bandwidth governor.
func NewGovernor(cfg GovernorConfig) *Governor {
	return &Governor{
		cfg:      cfg,
		ewma:     make(map[string]float64),
		reserved: make(map[string]int64),
	}
}

// Admit reserves estimatedBytes against the rolling window, rejecting with
// ErrBandwidthExceeded if estimatedBytes would push the window over cap. On
// rejection the caller should record a "skipped" activity outcome and move
// on — bandwidth exhaustion is never fatal to the session.
func (g *Governor) Admit(ctx context.Context, engine string, estimatedBytes int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(time.Now())
	if g.used+estimatedBytes > g.cfg.CapBytes {
		return domain.ErrBandwidthExceeded
	}

	now := time.Now()
	g.samples = append(g.samples, sample{at: now, bytes: estimatedBytes})
	g.used += estimatedBytes
	g.reserved[engine] += estimatedBytes
	return nil
}

// Settle reconciles a reservation with the bytes actually consumed and
// updates the per-engine EWMA estimate used to size future reservations.
func (g *Governor) Settle(engine string, estimatedBytes, actualBytes int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delta := actualBytes - estimatedBytes
	g.used += delta
	if delta != 0 {
		// the correction ages out of the window like any other sample
		g.samples = append(g.samples, sample{at: time.Now(), bytes: delta})
	}
	if g.used < 0 {
		g.used = 0
	}
	g.reserved[engine] -= estimatedBytes
	if g.reserved[engine] < 0 {
		g.reserved[engine] = 0
	}

	const alpha = 0.3
	if prev, ok := g.ewma[engine]; ok {
		g.ewma[engine] = alpha*float64(actualBytes) + (1-alpha)*prev
	} else {
		g.ewma[engine] = float64(actualBytes)
	}
}

// EstimateBytes returns the current EWMA byte estimate for an engine, or
// fallback if no observations exist yet.
func (g *Governor) EstimateBytes(engine string, fallback int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.ewma[engine]; ok {
		return int64(v)
	}
	return fallback
}

// Usage reports current rolling-window consumption in bytes.
func (g *Governor) Usage() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(time.Now())
	return g.used
}

// Run starts the background pruning loop. Call in a goroutine.
func (g *Governor) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.mu.Lock()
			g.prune(time.Now())
			g.mu.Unlock()
		}
	}
}

// prune drops samples that have aged out of the rolling window. Must be
// called with g.mu held.
func (g *Governor) prune(now time.Time) {
	cutoff := now.Add(-g.cfg.WindowDuration)
	i := 0
	for i < len(g.samples) && g.samples[i].at.Before(cutoff) {
		g.used -= g.samples[i].bytes
		i++
	}
	if i > 0 {
		g.samples = g.samples[i:]
	}
	if g.used < 0 {
		g.used = 0
	}
}
