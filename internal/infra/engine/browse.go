package engine

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/poisson-noise/poisson/internal/domain"
)

// BrowseEngine simulates general page browsing: landing on a topic's seed
// page, then following links drawn from a per-topic sitemap.
type BrowseEngine struct {
	mu       sync.Mutex
	rng      *rand.Rand
	sitemaps map[string][]string // topic -> candidate URLs
	requests atomic.Int64
	errors   atomic.Int64
}

// NewBrowseEngine builds a BrowseEngine from a topic->URLs sitemap, loaded
// from the hot-reloadable data files.
func NewBrowseEngine(sitemaps map[string][]string, seed int64) *BrowseEngine {
	return &BrowseEngine{rng: rand.New(rand.NewSource(seed)), sitemaps: sitemaps}
}

func (e *BrowseEngine) Name() string { return "browse" }

// Topics returns every topic this engine has a sitemap entry for.
func (e *BrowseEngine) Topics() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.sitemaps))
	for t := range e.sitemaps {
		out = append(out, t)
	}
	return out
}

// ProduceTask picks a URL for the session's topic. On "land" it treats the
// pick as a fresh navigation; on any other state it treats it as following
// a link from the session's most recently visited page.
func (e *BrowseEngine) ProduceTask(ctx context.Context, sess *domain.Session, state string) (domain.Task, error) {
	e.mu.Lock()
	urls := e.sitemaps[sess.Topic]
	if len(urls) == 0 {
		urls = []string{"https://example.com/"}
	}
	picked := urls[e.rng.Intn(len(urls))]
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
func (e *BrowseEngine) OnComplete(task domain.Task, result domain.PageResult, outcome domain.Outcome, err error) {
	e.requests.Add(1)
	if outcome == domain.OutcomeError {
		e.errors.Add(1)
	}
}

// Reload atomically swaps the sitemap, used by the data-file hot-reload
// watcher.
func (e *BrowseEngine) Reload(sitemaps map[string][]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sitemaps = sitemaps
}
