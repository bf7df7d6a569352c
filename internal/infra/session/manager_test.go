package session

import (
	"context"
	"testing"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
	"go.uber.org/goleak"
)

func newTestSession(id string) *domain.Session {
	return &domain.Session{
		ID:              id,
		StartTS:         time.Now(),
		PlannedDuration: 50 * time.Millisecond,
		State:           domain.SessionPending,
	}
}

func TestManager_Admit_RunsToCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(2, func(ctx context.Context, sess *domain.Session) error {
		return nil
	})

	sess := newTestSession("s1")
	if err := m.Admit(context.Background(), sess); err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		m.mu.Lock()
		_, running := m.slots["s1"]
		m.mu.Unlock()
		if !running {
			break
		}
		select {
		case <-deadline:
			t.Fatal("session never released its slot")
		case <-time.After(time.Millisecond):
		}
	}
	m.sweep(nil)

	if sess.State != domain.SessionDone {
		t.Errorf("session state = %v, want %v", sess.State, domain.SessionDone)
	}
}

func TestManager_Admit_RejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	m := NewManager(1, func(ctx context.Context, sess *domain.Session) error {
		<-block
		return nil
	})
	defer close(block)

	if err := m.Admit(context.Background(), newTestSession("a")); err != nil {
		t.Fatalf("first Admit() error: %v", err)
	}
	if err := m.Admit(context.Background(), newTestSession("b")); err != domain.ErrNoFreeSlot {
		t.Errorf("second Admit() err = %v, want %v", err, domain.ErrNoFreeSlot)
	}
}

func TestManager_Cancel_MarksFailedOnError(t *testing.T) {
	m := NewManager(2, func(ctx context.Context, sess *domain.Session) error {
		<-ctx.Done()
		return ctx.Err()
	})

	sess := newTestSession("c1")
	m.Admit(context.Background(), sess)
	if err := m.Cancel("c1"); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if sess.State != domain.SessionFailed {
		t.Errorf("session state after Cancel = %v, want %v", sess.State, domain.SessionFailed)
	}
}

func TestManager_Cancel_UnknownSession(t *testing.T) {
	m := NewManager(2, func(ctx context.Context, sess *domain.Session) error { return nil })
	if err := m.Cancel("nope"); err != domain.ErrSessionNotRunning {
		t.Errorf("Cancel() err = %v, want %v", err, domain.ErrSessionNotRunning)
	}
}

func TestManager_FreeSlots(t *testing.T) {
	block := make(chan struct{})
	m := NewManager(3, func(ctx context.Context, sess *domain.Session) error {
		<-block
		return nil
	})
	defer close(block)

	m.Admit(context.Background(), newTestSession("x"))
	if got := m.FreeSlots(); got != 2 {
		t.Errorf("FreeSlots() = %d, want 2", got)
	}
}
