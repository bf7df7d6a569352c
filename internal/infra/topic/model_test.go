package topic

import (
	"context"
	"testing"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

func TestModel_Draw_FallsBackToGeneric(t *testing.T) {
	m := NewModel(nil, 1)
	topic, err := m.Draw(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Draw returned error: %v", err)
	}
	found := false
	for _, g := range genericTopics {
		if g == topic {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Draw() = %q, want a member of the generic topic pool", topic)
	}
}

func TestModel_Draw_UsesRegisteredEngineTopics(t *testing.T) {
	m := NewModel(nil, 2)
	m.RegisterEngineTopics("search", []string{"gardening", "astronomy"})
	topic, _ := m.Draw(context.Background(), time.Now())
	if topic != "gardening" && topic != "astronomy" {
		t.Errorf("Draw() = %q, want gardening or astronomy", topic)
	}
}

func TestModel_Draw_WeightedCategories(t *testing.T) {
	profiles := []domain.TopicProfile{
		{Category: "only", Weight: 1},
	}
	m := NewModel(profiles, 3)
	topic, _ := m.Draw(context.Background(), time.Now())
	if topic != "only" {
		t.Errorf("Draw() = %q, want %q", topic, "only")
	}
}

func TestModel_MaybeStartObsession_SetsExpiry(t *testing.T) {
	m := NewModel(nil, 4)
	m.SetObsessionProbability(1)
	now := time.Now()
	started := m.MaybeStartObsession(context.Background(), now)
	if started == nil {
		t.Fatal("obsession should start on the very first draw with probability 1")
	}
	if !started.ExpiresAt.After(now) {
		t.Error("obsession should expire after now")
	}
	if started.Strength <= 0 || started.Strength > 1 {
		t.Errorf("obsession strength = %f, want in (0,1]", started.Strength)
	}
}

// TestModel_MaybeStartObsession_AllSessionsDrawObsessedCategoryUntilExpiry
// exercises the full documented invariant: with obsession_probability=1
// and strength forced to 1 over a two-category pool, every session after
// the first draws the obsessed category until it expires.
func TestModel_MaybeStartObsession_AllSessionsDrawObsessedCategoryUntilExpiry(t *testing.T) {
	profiles := []domain.TopicProfile{
		{Category: "gardening", Weight: 1},
		{Category: "astronomy", Weight: 1},
	}
	m := NewModel(profiles, 9)
	m.SetObsessionProbability(1)
	now := time.Now()

	started := m.MaybeStartObsession(context.Background(), now)
	if started == nil {
		t.Fatal("obsession should start with probability 1")
	}
	// Force deterministic selection of the obsessed topic on every draw.
	m.obsession.Strength = 1

	for i := 0; i < 20; i++ {
		topic, err := m.Draw(context.Background(), now)
		if err != nil {
			t.Fatalf("Draw() error: %v", err)
		}
		if topic != started.Topic {
			t.Errorf("Draw() #%d = %q, want the obsessed topic %q", i, topic, started.Topic)
		}
	}

	afterExpiry := started.ExpiresAt.Add(time.Second)
	if got := m.ActiveObsession(afterExpiry); got != nil {
		t.Error("obsession should no longer be active past its expiry")
	}
}

func TestModel_ActiveObsession_NilWhenExpired(t *testing.T) {
	m := NewModel(nil, 5)
	now := time.Now()
	m.obsession = &domain.Obsession{Topic: "x", ExpiresAt: now.Add(-time.Minute), Strength: 0.9}
	if got := m.ActiveObsession(now); got != nil {
		t.Errorf("ActiveObsession() = %v, want nil for an expired obsession", got)
	}
}

func TestModel_ActiveObsession_NonNilWhenLive(t *testing.T) {
	m := NewModel(nil, 6)
	now := time.Now()
	m.obsession = &domain.Obsession{Topic: "x", ExpiresAt: now.Add(time.Hour), Strength: 0.9}
	if got := m.ActiveObsession(now); got == nil {
		t.Error("ActiveObsession() = nil, want the live obsession")
	}
}
