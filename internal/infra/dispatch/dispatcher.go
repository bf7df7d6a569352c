// Package dispatch implements the engine dispatcher: weighted selection
// among enabled engines for a given Markov state, with safety defaults
// that keep higher-risk engines (tor, research, adclick) off unless an
// operator explicitly opts in (spec.md §4.6).
package dispatch

import (
	"math/rand"
	"sync"

	"github.com/poisson-noise/poisson/internal/domain"
)

// statePreference maps a Markov state to the ordered engine preference
// list consulted before falling back to the full weighted pool, mirroring
// the add-on's per-state dispatch table.
var statePreference = map[string][]string{
	"land":          {"browse", "search", "dns"},
	"read":          {"browse", "search"},
	"skim":          {"browse", "search"},
	"follow_link":   {"browse", "search"},
	"search_refine": {"search", "browse"},
	"ad_glance":     {"adclick"},
	"idle":          {"dns"},
}

// Dispatcher selects which engine produces the next task.
type Dispatcher struct {
	mu      sync.Mutex
	rng     *rand.Rand
	engines map[string]domain.Engine
	specs   map[string]*domain.EngineSpec
	recent  map[string]int // dispatches in the current accounting window
	total   int
}

// NewDispatcher builds a dispatcher from the configured engine specs. Each
// engine starts with the Enabled value its spec carries; the dispatcher
// does not consult AllowedBySafetyDefault.
func NewDispatcher(specs []domain.EngineSpec, seed int64) *Dispatcher {
	d := &Dispatcher{
		rng:     rand.New(rand.NewSource(seed)),
		engines: make(map[string]domain.Engine),
		specs:   make(map[string]*domain.EngineSpec),
		recent:  make(map[string]int),
	}
	for i := range specs {
		s := specs[i]
		d.specs[s.Name] = &s
	}
	return d
}

// Register wires a concrete Engine implementation into the dispatcher.
func (d *Dispatcher) Register(e domain.Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engines[e.Name()] = e
	if _, ok := d.specs[e.Name()]; !ok {
		d.specs[e.Name()] = &domain.EngineSpec{Name: e.Name(), Weight: 1}
	}
}

// Toggle enables or disables an engine by name; an explicit operator
// action always overrides the safety default.
func (d *Dispatcher) Toggle(name string, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	spec, ok := d.specs[name]
	if !ok {
		return domain.ErrEngineUnknown
	}
	spec.Enabled = enabled
	return nil
}

// Select picks an engine for the given Markov state: first among the
// state's enabled preferred engines (weighted by weight*(1-recent_share)),
// falling back to the full enabled pool if none of the preferred engines
// are enabled.
func (d *Dispatcher) Select(state string) (domain.Engine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	candidates := d.enabledFrom(statePreference[state])
	if len(candidates) == 0 {
		candidates = d.enabledFrom(d.allNames())
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoEnabledEngines
	}

	weights := make([]float64, len(candidates))
	var sum float64
	for i, name := range candidates {
		spec := d.specs[name]
		share := 0.0
		if d.total > 0 {
			share = float64(d.recent[name]) / float64(d.total)
		}
		w := spec.Weight * (1 - share)
		if w < 0.01 {
			w = 0.01
		}
		weights[i] = w
		sum += w
	}

	target := d.rng.Float64() * sum
	var cumulative float64
	chosen := candidates[len(candidates)-1]
	for i, name := range candidates {
		cumulative += weights[i]
		if target <= cumulative {
			chosen = name
			break
		}
	}

	d.recordLocked(chosen)
	return d.engines[chosen], nil
}

// enabledFrom filters names down to those that are both registered and
// enabled.
func (d *Dispatcher) enabledFrom(names []string) []string {
	var out []string
	for _, name := range names {
		spec, ok := d.specs[name]
		if !ok || !spec.Enabled {
			continue
		}
		if _, registered := d.engines[name]; !registered {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (d *Dispatcher) allNames() []string {
	names := make([]string, 0, len(d.specs))
	for name := range d.specs {
		names = append(names, name)
	}
	return names
}

// recordLocked updates the recent-dispatch accounting, halving all counts
// once the window grows large so the share never goes stale indefinitely.
func (d *Dispatcher) recordLocked(name string) {
	const windowCap = 500
	d.recent[name]++
	d.total++
	if d.total > windowCap {
		for n := range d.recent {
			d.recent[n] /= 2
		}
		d.total /= 2
	}
}

// Specs returns a snapshot of every engine's configuration and stats, for
// the control-plane /engines endpoint.
func (d *Dispatcher) Specs() []domain.EngineSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.EngineSpec, 0, len(d.specs))
	for _, s := range d.specs {
		out = append(out, *s)
	}
	return out
}

// RecordOutcome folds a completed task's outcome into the engine's live
// stats, for the control-plane /engines endpoint.
func (d *Dispatcher) RecordOutcome(name string, outcome domain.Outcome, bytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	spec, ok := d.specs[name]
	if !ok {
		return
	}
	spec.Stats.Requests++
	spec.Stats.Bytes += bytes
	switch outcome {
	case domain.OutcomeError:
		spec.Stats.Errors++
	case domain.OutcomeSkipped:
		spec.Stats.Skipped++
	}
}
