package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/poisson-noise/poisson/internal/domain"
)

// AdClickEngine simulates occasional ad impressions/clicks during the
// "ad_glance" Markov state. Disabled by safety default (spec.md §4.6):
// repeatedly hitting ad networks is the easiest engine to fingerprint as
// synthetic, so it stays opt-in.
type AdClickEngine struct {
	mu       sync.Mutex
	rng      *rand.Rand
	networks []string // ad network landing URLs to rotate across
	requests atomic.Int64
	errors   atomic.Int64
}

// NewAdClickEngine builds an AdClickEngine over the configured ad network
// endpoints.
func NewAdClickEngine(networks []string, seed int64) *AdClickEngine {
	if len(networks) == 0 {
		networks = []string{"https://www.google.com/ads/"}
	}
	return &AdClickEngine{rng: rand.New(rand.NewSource(seed)), networks: networks}
}

func (e *AdClickEngine) Name() string     { return "adclick" }
func (e *AdClickEngine) Topics() []string { return nil }

// ProduceTask builds an ad-click task against one of the configured
// networks.
func (e *AdClickEngine) ProduceTask(ctx context.Context, sess *domain.Session, state string) (domain.Task, error) {
	e.mu.Lock()
	picked := e.networks[e.rng.Intn(len(e.networks))]
	e.mu.Unlock()

	return domain.Task{
		EngineName: e.Name(),
		URL:        picked,
		Method:     "GET",
		Kind:       domain.TaskKindPage,
		SessionID:  sess.ID,
		Persona:    sess.Persona,
		Topic:      sess.Topic,
	}, nil
}

// OnComplete updates the engine's live request/error counters.
func (e *AdClickEngine) OnComplete(task domain.Task, result domain.PageResult, outcome domain.Outcome, err error) {
	e.requests.Add(1)
	if outcome == domain.OutcomeError {
		e.errors.Add(1)
	}
}
