// Package torprobe periodically checks whether the configured Tor SOCKS5
// proxy is reachable, feeding the result into the Tor engine's status and
// the control-plane health check (spec.md §4.6).
package torprobe

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// Probe checks SOCKS5 proxy reachability by dialing it directly — a
// successful TCP connect is enough to call the proxy "up" without routing
// an actual request through it.
type Probe struct {
	addr    string
	timeout time.Duration
	status  atomic.Value // domain.TorStatus
}

// NewProbe builds a Probe against the given SOCKS5 listener address.
// The probe starts in TorConnecting until its first Run tick resolves.
func NewProbe(addr string, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &Probe{addr: addr, timeout: timeout}
	p.status.Store(domain.TorConnecting)
	return p
}

// Status returns the most recently observed proxy status, for /status.
func (p *Probe) Status() domain.TorStatus {
	return p.status.Load().(domain.TorStatus)
}

// Check dials the proxy and reports whether it accepted the connection.
func (p *Probe) Check(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("torprobe: dial %s: %w", p.addr, err)
	}
	return conn.Close()
}

// Run polls Check on an interval, invoking onStatus with each result.
// Call in a goroutine.
func (p *Probe) Run(ctx context.Context, interval time.Duration, onStatus func(up bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	report := func(up bool) {
		if ctx.Err() != nil {
			// a check cut short by shutdown says nothing about the proxy
			return
		}
		if up {
			p.status.Store(domain.TorConnected)
		} else {
			p.status.Store(domain.TorOffline)
		}
		onStatus(up)
	}

	report(p.Check(ctx) == nil)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report(p.Check(ctx) == nil)
		}
	}
}
