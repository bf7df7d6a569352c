// Package topic implements topic selection and the obsession tracker: a
// single sustained topical bias that can override the weighted draw for
// hours to days at a time (spec.md §3, §4.2).
package topic

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// genericTopics is the fallback draw pool used when no engine has
// registered a topic vocabulary yet, mirroring the add-on's built-in
// generic topic list.
var genericTopics = []string{
	"weather", "local news", "recipes", "sports scores", "travel deals",
	"home improvement", "product reviews", "health tips", "movie times",
	"used cars", "job listings", "real estate",
}

// defaultObsessionProbabilityPerDraw is the chance a draw starts a new
// obsession when none is currently active.
const defaultObsessionProbabilityPerDraw = 0.03

// Model draws topics for new sessions, biased by at most one active
// obsession at a time.
type Model struct {
	mu                   sync.Mutex
	rng                  *rand.Rand
	profiles             []domain.TopicProfile
	engine               map[string][]string // engine name -> topics it contributes
	obsession            *domain.Obsession
	obsessionProbability float64
}

// NewModel builds a topic model from the configured category weights.
func NewModel(profiles []domain.TopicProfile, seed int64) *Model {
	return &Model{
		rng:                  rand.New(rand.NewSource(seed)),
		profiles:             profiles,
		engine:               make(map[string][]string),
		obsessionProbability: defaultObsessionProbabilityPerDraw,
	}
}

// SetObsessionProbability overrides the per-draw obsession start chance.
// Not part of the data-file config table — exposed so tests can force
// deterministic obsession behavior (e.g. probability 1) instead of
// looping and hoping the default 3% chance fires.
func (m *Model) SetObsessionProbability(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obsessionProbability = p
}

// RegisterEngineTopics folds an engine's topic vocabulary into the draw
// pool (spec.md §4.6's per-engine topic contribution).
func (m *Model) RegisterEngineTopics(engine string, topics []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engine[engine] = topics
}

// pool returns the union of every registered engine's topics, or the
// generic fallback list if none are registered.
func (m *Model) pool() []string {
	seen := make(map[string]bool)
	var out []string
	for _, topics := range m.engine {
		for _, t := range topics {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	if len(out) == 0 {
		return genericTopics
	}
	return out
}

// Draw picks a topic for a new session: the active obsession's topic with
// probability equal to its strength, otherwise a weighted draw across
// configured categories (falling back to a uniform draw from the engine
// topic pool when categories carry no weight).
func (m *Model) Draw(ctx context.Context, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.obsession != nil && m.obsession.Active(now) {
		if m.rng.Float64() < m.obsession.Strength {
			return m.obsession.Topic, nil
		}
	}

	if len(m.profiles) > 0 {
		return m.weightedCategoryDraw(), nil
	}

	pool := m.pool()
	return pool[m.rng.Intn(len(pool))], nil
}

func (m *Model) weightedCategoryDraw() string {
	var total float64
	for _, p := range m.profiles {
		total += p.Weight
	}
	if total <= 0 {
		return m.profiles[m.rng.Intn(len(m.profiles))].Category
	}
	r := m.rng.Float64() * total
	var cumulative float64
	for _, p := range m.profiles {
		cumulative += p.Weight
		if r <= cumulative {
			return p.Category
		}
	}
	return m.profiles[len(m.profiles)-1].Category
}

// MaybeStartObsession rolls to begin a new obsession when none is active.
// Returns the started obsession, or nil if no roll succeeded or one is
// already in progress.
func (m *Model) MaybeStartObsession(ctx context.Context, now time.Time) *domain.Obsession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.obsession != nil && m.obsession.Active(now) {
		return nil
	}
	if m.rng.Float64() >= m.obsessionProbability {
		return nil
	}

	topic := m.weightedCategoryDrawOrPool()
	horizon := m.obsessionHorizon(topic)
	durationHours := horizon.Hours()
	if durationHours <= 0 {
		durationHours = 12 + m.rng.Float64()*60 // 12h-3d default spread
	} else {
		// jitter within +/-30% of the configured horizon
		durationHours *= 0.7 + m.rng.Float64()*0.6
	}

	m.obsession = &domain.Obsession{
		Topic:     topic,
		ExpiresAt: now.Add(time.Duration(durationHours * float64(time.Hour))),
		Strength:  0.5 + m.rng.Float64()*0.4, // [0.5, 0.9]
	}
	return m.obsession
}

func (m *Model) weightedCategoryDrawOrPool() string {
	if len(m.profiles) > 0 {
		return m.weightedCategoryDraw()
	}
	pool := m.pool()
	return pool[m.rng.Intn(len(pool))]
}

func (m *Model) obsessionHorizon(topic string) time.Duration {
	for _, p := range m.profiles {
		if p.Category == topic {
			return p.ObsessionHorizon
		}
	}
	return 0
}

// ActiveObsession returns the current obsession if it is still live at
// now, or nil.
func (m *Model) ActiveObsession(now time.Time) *domain.Obsession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.obsession != nil && m.obsession.Active(now) {
		return m.obsession
	}
	return nil
}
