package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// MockDriver implements domain.PageDriver for testing without making real
// network requests. It simulates a fixed fake payload size and a small
// artificial delay per call, the way the teacher's MockModelHandle
// simulates token generation without a real inference backend.
type MockDriver struct {
	FakeBytes int64
	FakeDelay time.Duration
	closed    bool
	Calls     []string
}

// NewMockDriver builds a MockDriver with reasonable simulated defaults.
func NewMockDriver() *MockDriver {
	return &MockDriver{FakeBytes: 1024 * 32, FakeDelay: time.Millisecond}
}

func (m *MockDriver) fakeResult(url string) (domain.PageResult, error) {
	if m.closed {
		return domain.PageResult{}, fmt.Errorf("driver is closed")
	}
	if m.FakeDelay > 0 {
		time.Sleep(m.FakeDelay)
	}
	m.Calls = append(m.Calls, url)
	return domain.PageResult{Bytes: m.FakeBytes, Status: 200, Elapsed: m.FakeDelay, FinalURL: url}, nil
}

// Open simulates fetching url.
func (m *MockDriver) Open(ctx context.Context, persona domain.Persona, url string) (domain.PageResult, error) {
	return m.fakeResult(url)
}

// Follow simulates following a link to toURL.
func (m *MockDriver) Follow(ctx context.Context, persona domain.Persona, fromURL, toURL string) (domain.PageResult, error) {
	return m.fakeResult(toURL)
}

// ClickAd simulates an ad click against url.
func (m *MockDriver) ClickAd(ctx context.Context, persona domain.Persona, url string) (domain.PageResult, error) {
	return m.fakeResult(url)
}

// Close marks the driver closed; subsequent calls return an error.
func (m *MockDriver) Close(ctx context.Context) error {
	m.closed = true
	return nil
}
