// Package health provides automated health checks with auto-recovery.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
	"github.com/poisson-noise/poisson/internal/infra/dataload"
	"github.com/poisson-noise/poisson/internal/infra/sqlite"
	"github.com/poisson-noise/poisson/internal/infra/torprobe"
)

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker builds a checker with the standard set: sqlite connectivity,
// data-file freshness, and Tor proxy reachability (skipped when torEnabled
// is false — an operator who disabled Tor should not see it reported
// unhealthy).
func NewChecker(db *sqlite.DB, loader *dataload.Watcher, probe *torprobe.Probe, torEnabled bool) *Checker {
	checks := []Check{
		{
			Name: "sqlite",
			CheckFn: func(ctx context.Context) error {
				return db.Ping()
			},
			RecoverFn: func(ctx context.Context) error {
				return nil // SQLite auto-recovers via WAL
			},
		},
		{
			Name: "data_files",
			CheckFn: func(ctx context.Context) error {
				return checkDataFreshness(loader)
			},
		},
	}
	if torEnabled && probe != nil {
		checks = append(checks, Check{
			Name: "tor_proxy",
			CheckFn: func(ctx context.Context) error {
				return probe.Check(ctx)
			},
			RecoverFn: func(ctx context.Context) error {
				return nil // reconnection is handled by the probe's own poll loop
			},
		})
	}

	return &Checker{
		interval: 60 * time.Second,
		checks:   checks,
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
			if check.RecoverFn != nil {
				_ = check.RecoverFn(ctx)
			}
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkDataFreshness(loader *dataload.Watcher) error {
	if loader == nil {
		return fmt.Errorf("data loader not configured")
	}
	snap := loader.Current()
	if len(snap.Personas) == 0 {
		return fmt.Errorf("%w: persona pool is empty", domain.ErrDataCategoryMissing)
	}
	return nil
}
