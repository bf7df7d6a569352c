// Package session implements the session manager: bounded-concurrency
// slots for in-flight browsing sessions, admit/run/cancel lifecycle, and a
// background auditor that catches goroutines which outlive their slot
// (spec.md §4.5). The slot bookkeeping mirrors the teacher's LRU model
// pool — a map plus reference counts under one mutex — adapted from
// memory-bounded model eviction to concurrency-bounded session admission.
package session

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// Runner drives one session to completion. Implemented by the
// orchestrator; kept as an interface here so the manager has no
// dependency on the dispatcher or engines.
type Runner func(ctx context.Context, sess *domain.Session) error

// GraceWindow is how long Cancel waits for a session's context to be
// observed before the manager force-marks it failed regardless.
const GraceWindow = 5 * time.Second

type slot struct {
	sess    *domain.Session
	cancel  context.CancelFunc
	done    chan struct{}
	element *list.Element
	active  int32 // 1 while the runner goroutine is executing
}

// Manager bounds how many sessions may run concurrently and tracks their
// lifecycle from admission through completion or cancellation.
type Manager struct {
	mu          sync.Mutex
	slots       map[string]*slot
	order       *list.List
	maxConc     int
	runner      Runner
	auditPeriod time.Duration
}

// NewManager creates a session manager allowing at most maxConcurrent
// sessions to run at once.
func NewManager(maxConcurrent int, runner Runner) *Manager {
	return &Manager{
		slots:       make(map[string]*slot),
		order:       list.New(),
		maxConc:     maxConcurrent,
		runner:      runner,
		auditPeriod: 30 * time.Second,
	}
}

// Admit reserves a slot for sess and starts its runner in a new goroutine.
// Returns ErrNoFreeSlot if every slot is occupied.
func (m *Manager) Admit(ctx context.Context, sess *domain.Session) error {
	m.mu.Lock()
	if len(m.slots) >= m.maxConc {
		m.mu.Unlock()
		return domain.ErrNoFreeSlot
	}

	sessCtx, cancel := context.WithTimeout(ctx, sess.HardCap())
	s := &slot{sess: sess, cancel: cancel, done: make(chan struct{})}
	s.element = m.order.PushFront(s)
	m.slots[sess.ID] = s
	m.mu.Unlock()

	sess.State = domain.SessionRunning
	atomic.StoreInt32(&s.active, 1)

	go func() {
		defer close(s.done)
		defer atomic.StoreInt32(&s.active, 0)
		defer cancel()

		err := m.runner(sessCtx, sess)

		m.mu.Lock()
		if err != nil {
			sess.State = domain.SessionFailed
		} else if sess.State != domain.SessionFailed {
			sess.State = domain.SessionDone
		}
		m.mu.Unlock()
		m.release(sess.ID)
	}()

	return nil
}

// Cancel requests an early stop for the named session, waiting up to
// GraceWindow for the runner goroutine to observe ctx cancellation before
// force-marking the session failed and releasing its slot regardless.
func (m *Manager) Cancel(sessionID string) error {
	m.mu.Lock()
	s, ok := m.slots[sessionID]
	m.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotRunning
	}

	s.sess.State = domain.SessionStopping
	s.cancel()

	select {
	case <-s.done:
	case <-time.After(GraceWindow):
		s.sess.State = domain.SessionFailed
	}

	m.release(sessionID)
	return nil
}

// release removes a slot once its runner has finished, called from the
// runner goroutine in Admit, from Cancel and from the auditor below.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[sessionID]; ok {
		m.order.Remove(s.element)
		delete(m.slots, sessionID)
	}
}

// Running returns the sessions currently occupying a slot.
func (m *Manager) Running() []*domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Session, 0, len(m.slots))
	for e := m.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*slot).sess)
	}
	return out
}

// FreeSlots reports how many concurrency slots remain unoccupied.
func (m *Manager) FreeSlots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConc - len(m.slots)
}

// Auditor runs in the background, reclaiming slots whose runner goroutine
// has finished (done closed) but is still held — a backstop, since a
// runner that completes on its own releases its slot itself. It also
// surfaces ErrSlotLeakDetected via report if a slot's
// runner is still marked active well past the session's hard cap.
func (m *Manager) Auditor(ctx context.Context, report func(error)) {
	ticker := time.NewTicker(m.auditPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(report)
		}
	}
}

func (m *Manager) sweep(report func(error)) {
	m.mu.Lock()
	var finished, leaked []string
	now := time.Now()
	for id, s := range m.slots {
		select {
		case <-s.done:
			finished = append(finished, id)
		default:
			if atomic.LoadInt32(&s.active) == 1 && now.Sub(s.sess.StartTS) > s.sess.HardCap()+GraceWindow {
				leaked = append(leaked, id)
			}
		}
	}
	m.mu.Unlock()

	for _, id := range finished {
		m.release(id)
	}
	if len(leaked) > 0 && report != nil {
		report(domain.ErrSlotLeakDetected)
	}
}
