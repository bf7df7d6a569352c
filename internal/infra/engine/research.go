package engine

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/poisson-noise/poisson/internal/domain"
)

// researchTopics is the deeper, more deliberate vocabulary this engine
// contributes — longer dwell, multi-page reading sessions rather than
// quick searches.
var researchTopics = []string{
	"academic papers", "technical documentation", "open source projects",
	"historical archives", "scientific journals", "government reports",
}

// ResearchEngine simulates slower, deliberate reading sessions against a
// set of reference/documentation-style endpoints. It is disabled by
// safety default (spec.md §4.6): research-style traffic concentrates on a
// narrow set of sites and is more identifiable than generic browsing, so
// an operator must explicitly opt in.
type ResearchEngine struct {
	mu        sync.Mutex
	rng       *rand.Rand
	endpoints []string
	requests  atomic.Int64
	errors    atomic.Int64
}

// NewResearchEngine builds a ResearchEngine over the configured endpoints.
func NewResearchEngine(endpoints []string, seed int64) *ResearchEngine {
	if len(endpoints) == 0 {
		endpoints = []string{"https://en.wikipedia.org/wiki/Special:Random"}
	}
	return &ResearchEngine{rng: rand.New(rand.NewSource(seed)), endpoints: endpoints}
}

func (e *ResearchEngine) Name() string     { return "research" }
func (e *ResearchEngine) Topics() []string { return researchTopics }

// ProduceTask builds a task against one of the configured reference
// endpoints, tagged with the session's topic as a query hint where the
// endpoint supports one.
func (e *ResearchEngine) ProduceTask(ctx context.Context, sess *domain.Session, state string) (domain.Task, error) {
	e.mu.Lock()
	base := e.endpoints[e.rng.Intn(len(e.endpoints))]
	e.mu.Unlock()

	u, err := url.Parse(base)
	if err != nil {
		return domain.Task{}, fmt.Errorf("research engine: parse endpoint %q: %w", base, err)
	}
	if u.RawQuery == "" && sess.Topic != "" {
		q := u.Query()
		q.Set("search", sess.Topic)
		u.RawQuery = q.Encode()
	}

	return domain.Task{
		EngineName: e.Name(),
		URL:        u.String(),
		Method:     "GET",
		Kind:       domain.TaskKindPage,
		SessionID:  sess.ID,
		Persona:    sess.Persona,
		Topic:      sess.Topic,
	}, nil
}

// OnComplete updates the engine's live request/error counters.
func (e *ResearchEngine) OnComplete(task domain.Task, result domain.PageResult, outcome domain.Outcome, err error) {
	e.requests.Add(1)
	if outcome == domain.OutcomeError {
		e.errors.Add(1)
	}
}
