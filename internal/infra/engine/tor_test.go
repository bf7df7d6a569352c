package engine

import (
	"context"
	"testing"

	"github.com/poisson-noise/poisson/internal/domain"
)

func TestNewTorEngine_StartsConnecting(t *testing.T) {
	e, err := NewTorEngine("127.0.0.1:9050", nil)
	if err != nil {
		t.Fatalf("NewTorEngine() error: %v", err)
	}
	if e.Status() != domain.TorConnecting {
		t.Errorf("initial Status() = %v, want %v", e.Status(), domain.TorConnecting)
	}
}

func TestTorEngine_SetStatus(t *testing.T) {
	e, err := NewTorEngine("127.0.0.1:9050", nil)
	if err != nil {
		t.Fatalf("NewTorEngine() error: %v", err)
	}
	e.SetStatus(domain.TorOffline)
	if e.Status() != domain.TorOffline {
		t.Errorf("Status() after SetStatus = %v, want %v", e.Status(), domain.TorOffline)
	}
}

func TestTorEngine_ProduceTask_UsesConfiguredEndpoint(t *testing.T) {
	e, err := NewTorEngine("127.0.0.1:9050", []string{"https://example.onion/"})
	if err != nil {
		t.Fatalf("NewTorEngine() error: %v", err)
	}
	task, err := e.ProduceTask(context.Background(), &domain.Session{ID: "s1", Topic: "x"}, "read")
	if err != nil {
		t.Fatalf("ProduceTask() error: %v", err)
	}
	if task.URL != "https://example.onion/" {
		t.Errorf("task.URL = %q, want %q", task.URL, "https://example.onion/")
	}
}
