// Package engine holds the concrete page driver and the six traffic
// engines: search, browse, dns, research, tor, adclick.
package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// HTTPDriver is the production domain.PageDriver: a plain net/http client
// that wears each session's persona as request headers, the way a real
// browser would announce itself. It carries no cookie-jar persistence
// across sessions by design — sessions are independent personas, not
// a single returning visitor.
type HTTPDriver struct {
	client *http.Client
}

// NewHTTPDriver builds an HTTPDriver with the given timeout.
func NewHTTPDriver(timeout time.Duration) *HTTPDriver {
	return &HTTPDriver{client: &http.Client{Timeout: timeout}}
}

// NewHTTPDriverWithTransport builds an HTTPDriver over a caller-supplied
// transport, used by the Tor engine to route through a SOCKS5 proxy.
func NewHTTPDriverWithTransport(timeout time.Duration, transport http.RoundTripper) *HTTPDriver {
	return &HTTPDriver{client: &http.Client{Timeout: timeout, Transport: transport}}
}

func (d *HTTPDriver) do(ctx context.Context, persona domain.Persona, method, url, referrer string) (domain.PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("build request: %w", err)
	}
	applyPersonaHeaders(req, persona, referrer)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("read body of %s: %w", url, err)
	}

	return domain.PageResult{
		Bytes:    n,
		Status:   resp.StatusCode,
		Elapsed:  time.Since(start),
		FinalURL: resp.Request.URL.String(),
	}, nil
}

// Open fetches url as a fresh navigation.
func (d *HTTPDriver) Open(ctx context.Context, persona domain.Persona, url string) (domain.PageResult, error) {
	return d.do(ctx, persona, http.MethodGet, url, "")
}

// Follow simulates clicking a link from fromURL to toURL.
func (d *HTTPDriver) Follow(ctx context.Context, persona domain.Persona, fromURL, toURL string) (domain.PageResult, error) {
	return d.do(ctx, persona, http.MethodGet, toURL, fromURL)
}

// ClickAd simulates an ad impression/click against url.
func (d *HTTPDriver) ClickAd(ctx context.Context, persona domain.Persona, url string) (domain.PageResult, error) {
	return d.do(ctx, persona, http.MethodGet, url, "")
}

// Close is a no-op: HTTPDriver holds no per-session resources.
func (d *HTTPDriver) Close(ctx context.Context) error { return nil }

// applyPersonaHeaders sets the request headers a real browser matching
// persona would send.
func applyPersonaHeaders(req *http.Request, persona domain.Persona, referrer string) {
	if persona.UserAgent != "" {
		req.Header.Set("User-Agent", persona.UserAgent)
	}
	if len(persona.Languages) > 0 {
		req.Header.Set("Accept-Language", strings.Join(persona.Languages, ","))
	}
	if persona.AcceptEncoding != "" {
		req.Header.Set("Accept-Encoding", persona.AcceptEncoding)
	}
	if referrer != "" {
		req.Header.Set("Referer", referrer)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
}
