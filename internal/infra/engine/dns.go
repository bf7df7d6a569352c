package engine

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// dnsLookupPool is the rotating list of hostnames the DNS engine resolves
// during idle states — plausible, low-noise background lookups.
var dnsLookupPool = []string{
	"www.google.com", "www.cloudflare.com", "www.wikipedia.org",
	"www.amazon.com", "www.github.com", "www.apple.com",
	"www.microsoft.com", "www.reddit.com",
}

// DNSEngine performs plain DNS lookups with no HTTP follow-through, for
// the "idle" Markov state where a real browser's background tabs still
// trickle a little traffic. It resolves directly via net.Resolver — no
// third-party DNS client appears anywhere in the reference corpus, so the
// standard library is the correct tool here.
type DNSEngine struct {
	mu       sync.Mutex
	rng      *rand.Rand
	resolver *net.Resolver
	requests atomic.Int64
	errors   atomic.Int64
}

// NewDNSEngine builds a DNSEngine using the system resolver.
func NewDNSEngine(seed int64) *DNSEngine {
	return &DNSEngine{rng: rand.New(rand.NewSource(seed)), resolver: net.DefaultResolver}
}

func (e *DNSEngine) Name() string     { return "dns" }
func (e *DNSEngine) Topics() []string { return nil }

// ProduceTask builds a DNS-kind task against a rotating hostname; the task
// carries no URL in the HTTP sense, only a hostname in Task.URL.
func (e *DNSEngine) ProduceTask(ctx context.Context, sess *domain.Session, state string) (domain.Task, error) {
	e.mu.Lock()
	host := dnsLookupPool[e.rng.Intn(len(dnsLookupPool))]
	e.mu.Unlock()

	return domain.Task{
		EngineName: e.Name(),
		URL:        host,
		Kind:       domain.TaskKindDNS,
		SessionID:  sess.ID,
		Persona:    sess.Persona,
		Topic:      sess.Topic,
	}, nil
}

// Resolve performs the actual lookup for a DNS-kind task; called by the
// orchestrator instead of a PageDriver since there is no page to fetch.
func (e *DNSEngine) Resolve(ctx context.Context, host string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := e.resolver.LookupHost(ctx, host); err != nil {
		return fmt.Errorf("dns engine: lookup %q: %w", host, err)
	}
	return nil
}

// OnComplete updates the engine's live request/error counters.
func (e *DNSEngine) OnComplete(task domain.Task, result domain.PageResult, outcome domain.Outcome, err error) {
	e.requests.Add(1)
	if outcome == domain.OutcomeError {
		e.errors.Add(1)
	}
}
