package persona

import (
	"context"
	"testing"

	"github.com/poisson-noise/poisson/internal/domain"
)

func samplePersonas() []domain.Persona {
	return []domain.Persona{
		{Name: "desktop-chrome", Weight: 3, UserAgent: "chrome-ua"},
		{Name: "mobile-safari", Weight: 1, UserAgent: "safari-ua", Mobile: true},
	}
}

func TestRegistry_Assign_ErrorsWhenEmpty(t *testing.T) {
	r := NewRegistry(nil, 1)
	if _, err := r.Assign(context.Background()); err != domain.ErrNoPersonasLoaded {
		t.Errorf("Assign() err = %v, want %v", err, domain.ErrNoPersonasLoaded)
	}
}

func TestRegistry_Assign_PicksFromPool(t *testing.T) {
	r := NewRegistry(samplePersonas(), 2)
	p, err := r.Assign(context.Background())
	if err != nil {
		t.Fatalf("Assign() error: %v", err)
	}
	if p.Name != "desktop-chrome" && p.Name != "mobile-safari" {
		t.Errorf("Assign() = %q, want a known persona", p.Name)
	}
}

func TestRegistry_Pin_GuaranteesFloorNotExclusiveUse(t *testing.T) {
	r := NewRegistry(samplePersonas(), 3)
	bundle := domain.FingerprintBundle{CanvasHash: "abc"}
	pinned, err := r.Pin(context.Background(), bundle)
	if err != nil {
		t.Fatalf("Pin() error: %v", err)
	}
	if !pinned.Matched {
		t.Error("pinned persona should be marked Matched")
	}
	if pinned.Mobile {
		t.Error("pinned persona should always be seeded from a desktop persona")
	}

	matchedCount := 0
	const draws = 500
	for i := 0; i < draws; i++ {
		got, _ := r.Assign(context.Background())
		if got.Name == "matched" {
			matchedCount++
		}
	}
	share := float64(matchedCount) / float64(draws)
	if share < minPinnedShare-0.02 {
		t.Errorf("pinned share = %.2f, want >= %.2f", share, minPinnedShare)
	}
	if matchedCount == draws {
		t.Error("pinned persona should not be used exclusively — other personas must still be drawn")
	}
}

func TestRegistry_Clear_RevertsToWeightedDraw(t *testing.T) {
	r := NewRegistry(samplePersonas(), 4)
	r.Pin(context.Background(), domain.FingerprintBundle{})
	r.Clear(context.Background())
	got, _ := r.Assign(context.Background())
	if got.Name == "matched" {
		t.Error("Assign() after Clear should not return the cleared pin")
	}
}

func TestRegistry_Assign_SoftRebalancesTowardUnderdrawn(t *testing.T) {
	r := NewRegistry([]domain.Persona{
		{Name: "a", Weight: 1},
		{Name: "b", Weight: 1},
	}, 5)

	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		p, _ := r.Assign(context.Background())
		counts[p.Name]++
	}
	diff := counts["a"] - counts["b"]
	if diff > 60 || diff < -60 {
		t.Errorf("draw counts %v too skewed for equal weights over 200 draws", counts)
	}
}

func TestRegistry_List_IncludesPinned(t *testing.T) {
	r := NewRegistry(samplePersonas(), 6)
	r.Pin(context.Background(), domain.FingerprintBundle{})
	list := r.List()
	if list[0].Name != "matched" {
		t.Errorf("List()[0] = %q, want %q first", list[0].Name, "matched")
	}
	if len(list) != 3 {
		t.Errorf("len(List()) = %d, want 3 (matched + 2 pool personas)", len(list))
	}
}

func TestRegistry_Reload_ReplacesPool(t *testing.T) {
	r := NewRegistry(samplePersonas(), 7)
	r.Reload([]domain.Persona{{Name: "only", Weight: 1}})
	p, err := r.Assign(context.Background())
	if err != nil {
		t.Fatalf("Assign() after Reload error: %v", err)
	}
	if p.Name != "only" {
		t.Errorf("Assign() after Reload = %q, want %q", p.Name, "only")
	}
}
