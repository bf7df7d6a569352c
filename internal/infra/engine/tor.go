package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/proxy"

	"github.com/poisson-noise/poisson/internal/domain"
)

// TorEngine routes its page tasks through a local Tor SOCKS5 proxy, via
// golang.org/x/net/proxy's SOCKS5 dialer. Disabled by safety default
// (spec.md §4.6): Tor traffic is the highest-signal engine to leave
// running unattended, so an operator must explicitly opt in.
type TorEngine struct {
	mu        sync.Mutex
	endpoints []string
	driver    *HTTPDriver
	status    domain.TorStatus
	requests  atomic.Int64
	errors    atomic.Int64
}

// NewTorEngine dials the Tor daemon's SOCKS5 listener (commonly
// 127.0.0.1:9050) and wraps it in an HTTPDriver whose transport routes
// every request through that proxy.
func NewTorEngine(socksAddr string, endpoints []string) (*TorEngine, error) {
	if len(endpoints) == 0 {
		endpoints = []string{"https://check.torproject.org/"}
	}
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("tor engine: build socks5 dialer: %w", err)
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		},
	}

	return &TorEngine{
		endpoints: endpoints,
		driver:    NewHTTPDriverWithTransport(torDriverTimeout, transport),
		status:    domain.TorConnecting,
	}, nil
}

// torDriverTimeout is generous relative to the clearnet driver's default
// since circuits add latency.
const torDriverTimeout = 30 * time.Second

func (e *TorEngine) Name() string     { return "tor" }
func (e *TorEngine) Topics() []string { return nil }

// ProduceTask builds a page task against a .onion or clearnet endpoint to
// be fetched through the SOCKS5 proxy.
func (e *TorEngine) ProduceTask(ctx context.Context, sess *domain.Session, state string) (domain.Task, error) {
	e.mu.Lock()
	picked := e.endpoints[int(e.requests.Load())%len(e.endpoints)]
	e.mu.Unlock()

	if _, err := url.Parse(picked); err != nil {
		return domain.Task{}, fmt.Errorf("tor engine: parse endpoint %q: %w", picked, err)
	}

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

// Driver returns the proxied page driver backing this engine, for the
// orchestrator to dispatch the produced task through.
func (e *TorEngine) Driver() domain.PageDriver { return e.driver }

// Status reports the last known health of the SOCKS5 proxy.
func (e *TorEngine) Status() domain.TorStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetStatus is called by the torprobe health checker to update status.
func (e *TorEngine) SetStatus(s domain.TorStatus) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// OnComplete updates the engine's live request/error counters. It does not
// change the proxy status; that changes only through SetStatus.
func (e *TorEngine) OnComplete(task domain.Task, result domain.PageResult, outcome domain.Outcome, err error) {
	e.requests.Add(1)
	if outcome == domain.OutcomeError {
		e.errors.Add(1)
	}
}
