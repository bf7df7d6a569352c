package engine

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/poisson-noise/poisson/internal/domain"
)

// searchTopics is the vocabulary this engine contributes to the topic
// model's draw pool.
var searchTopics = []string{
	"weather forecast", "recipe ideas", "local news today", "sports scores",
	"stock market today", "travel destinations", "product reviews",
	"home renovation tips", "fitness routines", "movie showtimes",
}

// searchEngineHost is one weighted entry in the engine-host rotation.
type searchEngineHost struct {
	name       string
	urlTmpl    string // "%s" placeholder for the URL-encoded query
	weight     float64
}

// searchEngines mirrors the add-on's own SEARCH_ENGINES weight table:
// Google dominates real-world share, Yahoo trails.
var searchEngines = []searchEngineHost{
	{name: "Google", urlTmpl: "https://www.google.com/search?q=%s", weight: 0.55},
	{name: "Bing", urlTmpl: "https://www.bing.com/search?q=%s", weight: 0.15},
	{name: "DuckDuckGo", urlTmpl: "https://duckduckgo.com/?q=%s", weight: 0.20},
	{name: "Yahoo", urlTmpl: "https://search.yahoo.com/search?p=%s", weight: 0.10},
}

// resultClickDomains stands in for "a random result link" when a session
// follows through from a search, since this engine never actually crawls
// real result pages to click from.
var resultClickDomains = []string{
	"en.wikipedia.org/wiki/",
	"www.reddit.com/r/all/comments/",
	"stackoverflow.com/questions/",
	"www.nytimes.com/topic/",
	"medium.com/search?q=",
}

// SearchEngine issues search-style queries against a weighted rotation of
// search engine hosts, with a chance of following through to a result
// link rather than issuing a fresh query, mirroring the add-on's own
// click-through behavior (now expressed as the follow_link Markov state
// instead of an inline probability check).
type SearchEngine struct {
	mu       sync.Mutex
	rng      *rand.Rand
	requests atomic.Int64
	errors   atomic.Int64
}

// NewSearchEngine builds a SearchEngine. The endpoints argument is kept
// for config-file compatibility but is no longer used for host selection;
// the weighted SEARCH_ENGINES table always drives it.
func NewSearchEngine(endpoints []string, seed int64) *SearchEngine {
	return &SearchEngine{rng: rand.New(rand.NewSource(seed))}
}

func (e *SearchEngine) Name() string     { return "search" }
func (e *SearchEngine) Topics() []string { return searchTopics }

// ProduceTask builds a search-query task for the session's topic on the
// land and search_refine states (a fresh or refined query), and a
// click-through task on every other state (following a result link).
func (e *SearchEngine) ProduceTask(ctx context.Context, sess *domain.Session, state string) (domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state != "land" && state != "search_refine" {
		domainPick := resultClickDomains[e.rng.Intn(len(resultClickDomains))]
		return domain.Task{
			EngineName: e.Name(),
			URL:        "https://" + domainPick + url.PathEscape(sess.Topic),
			Method:     "GET",
			Kind:       domain.TaskKindPage,
			SessionID:  sess.ID,
			Persona:    sess.Persona,
			Topic:      sess.Topic,
		}, nil
	}

	host := e.pickHost()
	query := url.QueryEscape(sess.Topic)
	return domain.Task{
		EngineName: e.Name(),
		URL:        strings.Replace(host.urlTmpl, "%s", query, 1),
		Method:     "GET",
		Kind:       domain.TaskKindPage,
		SessionID:  sess.ID,
		Persona:    sess.Persona,
		Topic:      sess.Topic,
	}, nil
}

// pickHost draws a search engine host by the weighted SEARCH_ENGINES
// table. Caller must hold e.mu.
func (e *SearchEngine) pickHost() searchEngineHost {
	var total float64
	for _, h := range searchEngines {
		total += h.weight
	}
	target := e.rng.Float64() * total
	var cumulative float64
	for _, h := range searchEngines {
		cumulative += h.weight
		if target <= cumulative {
			return h
		}
	}
	return searchEngines[len(searchEngines)-1]
}

// OnComplete updates the engine's live request/error counters.
func (e *SearchEngine) OnComplete(task domain.Task, result domain.PageResult, outcome domain.Outcome, err error) {
	e.requests.Add(1)
	if outcome == domain.OutcomeError {
		e.errors.Add(1)
	}
}
