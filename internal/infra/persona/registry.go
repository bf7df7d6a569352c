// Package persona implements the persona registry: a weighted pool of
// browser identities, sticky per-session assignment, and fingerprint-bundle
// pinning for a single "matched" persona (spec.md §4.3).
package persona

import (
	"context"
	"math/rand"
	"sync"

	"github.com/poisson-noise/poisson/internal/domain"
)

// minPinnedShare is the floor from spec.md §4.3: once a fingerprint is
// pinned, that persona must be used for at least this share of sessions.
// It's a floor, not an exclusive lock — sessions above the floor still
// draw from the full weighted pool, pinned persona included.
const minPinnedShare = 0.30

// mobileShareDefault is the registry's default mobile/desktop soft ratio
// (spec.md §4.3: "default 30/70" — 30% mobile, 70% desktop).
const mobileShareDefault = 0.30

// Registry holds the loaded persona pool and the currently pinned persona,
// if any. The structure mirrors the teacher's engine pool: a map keyed by
// identity plus a single piece of mutable sticky state, guarded by one
// mutex, with no background eviction since personas are never unloaded.
type Registry struct {
	mu           sync.Mutex
	rng          *rand.Rand
	byName       map[string]domain.Persona
	order        []string // stable iteration order for weighted draws
	pinned       *domain.Persona
	drawn        map[string]int // name -> times drawn, for soft rebalancing
	drawnMobile  int
	drawnDesktop int
	totalDrawn   int
	pinnedDrawn  int
}

// NewRegistry builds a registry from the loaded persona pool.
func NewRegistry(personas []domain.Persona, seed int64) *Registry {
	r := &Registry{
		rng:    rand.New(rand.NewSource(seed)),
		byName: make(map[string]domain.Persona, len(personas)),
		drawn:  make(map[string]int, len(personas)),
	}
	for _, p := range personas {
		r.byName[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	return r
}

// Assign picks a persona for a new session. If a fingerprint is pinned and
// its session share has fallen below the floor, the pinned persona
// is served to catch it back up; otherwise the draw comes from the full
// weighted pool (the pinned persona included among the candidates), softly
// rebalanced both per-persona and toward the mobile/desktop soft ratio.
func (r *Registry) Assign(ctx context.Context) (domain.Persona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pinned != nil && r.totalDrawn > 0 {
		share := float64(r.pinnedDrawn) / float64(r.totalDrawn)
		if share < minPinnedShare {
			r.pinnedDrawn++
			r.totalDrawn++
			return *r.pinned, nil
		}
	}
	if len(r.order) == 0 {
		if r.pinned != nil {
			r.pinnedDrawn++
			r.totalDrawn++
			return *r.pinned, nil
		}
		return domain.Persona{}, domain.ErrNoPersonasLoaded
	}

	names := r.order
	if r.pinned != nil {
		names = append(append([]string{}, r.order...), r.pinned.Name)
	}

	var weights []float64
	var sum float64
	for _, name := range names {
		p := r.personaByName(name)
		w := p.Weight
		if w <= 0 {
			w = 1
		}
		if r.totalDrawn > 0 {
			expected := w / r.totalWeight(names) * float64(r.totalDrawn)
			actual := float64(r.drawn[name])
			if actual > expected {
				w *= expected / actual
				if w < 0.05 {
					w = 0.05
				}
			}
		}
		w *= r.categoryFactor(p)
		weights = append(weights, w)
		sum += w
	}

	target := r.rng.Float64() * sum
	var cumulative float64
	choice := names[len(names)-1]
	for i, name := range names {
		cumulative += weights[i]
		if target <= cumulative {
			choice = name
			break
		}
	}

	chosen := r.personaByName(choice)
	r.drawn[choice]++
	r.totalDrawn++
	if chosen.Mobile {
		r.drawnMobile++
	} else {
		r.drawnDesktop++
	}
	if r.pinned != nil && choice == r.pinned.Name {
		r.pinnedDrawn++
	}
	return chosen, nil
}

// personaByName resolves a name against the regular pool first, falling
// back to the pinned persona (which isn't stored in byName/order).
func (r *Registry) personaByName(name string) domain.Persona {
	if p, ok := r.byName[name]; ok {
		return p
	}
	if r.pinned != nil && r.pinned.Name == name {
		return *r.pinned
	}
	return domain.Persona{Name: name}
}

// categoryFactor softly discounts a persona's draw weight when its
// mobile/desktop category has drifted above the registry's target ratio,
// nudging the pool back toward the default 30/70 split over time.
func (r *Registry) categoryFactor(p domain.Persona) float64 {
	if r.totalDrawn == 0 {
		return 1
	}
	target := mobileShareDefault
	actual := float64(r.drawnMobile) / float64(r.totalDrawn)
	if !p.Mobile {
		target = 1 - mobileShareDefault
		actual = float64(r.drawnDesktop) / float64(r.totalDrawn)
	}
	if actual <= target || target <= 0 {
		return 1
	}
	factor := target / actual
	if factor < 0.2 {
		factor = 0.2
	}
	return factor
}

func (r *Registry) totalWeight(names []string) float64 {
	var sum float64
	for _, name := range names {
		w := r.personaByName(name).Weight
		if w <= 0 {
			w = 1
		}
		sum += w
	}
	if sum <= 0 {
		return 1
	}
	return sum
}

// Pin registers a fingerprint bundle as the "matched" persona, guaranteeing
// it at least minPinnedShare of sessions from here on (spec.md §4.3). It
// synthesizes a persona whose network-visible characteristics (accept
// encoding, languages) stay on the registry's pool but whose fingerprint
// fields mirror the operator's real browser — always seeded from a
// desktop persona, per spec.md §4.3's "at least one desktop persona is
// permanently aligned with it".
func (r *Registry) Pin(ctx context.Context, bundle domain.FingerprintBundle) (domain.Persona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := domain.Persona{Name: "matched"}
	for _, name := range r.order {
		if p := r.byName[name]; !p.Mobile {
			base = p
			break
		}
	}
	if base.Name == "matched" && len(r.order) > 0 {
		// no desktop persona loaded; fall back to the first persona rather
		// than a bare stub.
		base = r.byName[r.order[0]]
	}
	matched := base
	matched.Name = "matched"
	matched.Mobile = false
	matched.Fingerprint = &bundle
	matched.Matched = true

	r.pinned = &matched
	r.pinnedDrawn = 0
	r.totalDrawn = 0
	r.drawnMobile = 0
	r.drawnDesktop = 0
	r.drawn = make(map[string]int, len(r.order))
	return matched, nil
}

// Clear removes any pinned persona, reverting to unconstrained weighted
// draws.
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned = nil
	return nil
}

// List returns every persona currently loaded, including the pinned one if
// set.
func (r *Registry) List() []domain.Persona {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Persona, 0, len(r.order)+1)
	if r.pinned != nil {
		out = append(out, *r.pinned)
	}
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Reload atomically replaces the persona pool, used by the data-file
// hot-reload watcher. Sticky pins survive a reload; per-draw rebalancing
// counters reset since the pool composition changed.
func (r *Registry) Reload(personas []domain.Persona) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName = make(map[string]domain.Persona, len(personas))
	r.order = r.order[:0]
	r.drawn = make(map[string]int, len(personas))
	r.drawnMobile = 0
	r.drawnDesktop = 0
	for _, p := range personas {
		r.byName[p.Name] = p
		r.order = append(r.order, p.Name)
	}
}
