package ring

import (
	"testing"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

func entry(engine string) domain.ActivityEntry {
	return domain.ActivityEntry{Timestamp: time.Now(), Engine: engine, Outcome: domain.OutcomeOK}
}

func TestRing_Push_TracksLen(t *testing.T) {
	r := NewRing(3)
	r.Push(entry("a"))
	r.Push(entry("b"))
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRing_Push_EvictsOldestWhenFull(t *testing.T) {
	r := NewRing(2)
	r.Push(entry("a"))
	r.Push(entry("b"))
	r.Push(entry("c"))

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("len(All()) = %d, want 2", len(all))
	}
	if all[0].Engine != "b" || all[1].Engine != "c" {
		t.Errorf("All() = %v, want [b c]", all)
	}
}

func TestRing_Recent_NewestFirst(t *testing.T) {
	r := NewRing(5)
	r.Push(entry("a"))
	r.Push(entry("b"))
	r.Push(entry("c"))

	recent := r.Recent(2)
	if recent[0].Engine != "c" || recent[1].Engine != "b" {
		t.Errorf("Recent(2) = %v, want [c b]", recent)
	}
}

func TestRing_Recent_CappedToSize(t *testing.T) {
	r := NewRing(5)
	r.Push(entry("a"))
	if got := r.Recent(100); len(got) != 1 {
		t.Errorf("len(Recent(100)) = %d, want 1", len(got))
	}
}
