package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/poisson-noise/poisson/internal/domain"
)

func testSession(topic string) *domain.Session {
	return &domain.Session{ID: "s1", Persona: "p1", Topic: topic}
}

func TestSearchEngine_ProduceTask_EncodesTopicAsQuery(t *testing.T) {
	e := NewSearchEngine(nil, 1)
	task, err := e.ProduceTask(context.Background(), testSession("gardening tips"), "land")
	if err != nil {
		t.Fatalf("ProduceTask() error: %v", err)
	}
	if !strings.Contains(task.URL, "gardening+tips") {
		t.Errorf("task.URL = %q, want it to contain the url-encoded topic", task.URL)
	}
	if task.Kind != domain.TaskKindPage {
		t.Errorf("task.Kind = %v, want %v", task.Kind, domain.TaskKindPage)
	}
}

func TestSearchEngine_ProduceTask_FollowsResultLinkOffLand(t *testing.T) {
	e := NewSearchEngine(nil, 1)
	task, err := e.ProduceTask(context.Background(), testSession("gardening tips"), "follow_link")
	if err != nil {
		t.Fatalf("ProduceTask() error: %v", err)
	}
	found := false
	for _, d := range resultClickDomains {
		if strings.Contains(task.URL, d) {
			found = true
		}
	}
	if !found {
		t.Errorf("task.URL = %q, want a result-click domain", task.URL)
	}
}

func TestSearchEngine_OnComplete_CountsErrors(t *testing.T) {
	e := NewSearchEngine(nil, 2)
	e.OnComplete(domain.Task{}, domain.PageResult{}, domain.OutcomeOK, nil)
	e.OnComplete(domain.Task{}, domain.PageResult{}, domain.OutcomeError, nil)
	if e.requests.Load() != 2 {
		t.Errorf("requests = %d, want 2", e.requests.Load())
	}
	if e.errors.Load() != 1 {
		t.Errorf("errors = %d, want 1", e.errors.Load())
	}
}

func TestBrowseEngine_ProduceTask_UsesSitemapForTopic(t *testing.T) {
	e := NewBrowseEngine(map[string][]string{"sports": {"https://espn.com/"}}, 1)
	task, err := e.ProduceTask(context.Background(), testSession("sports"), "read")
	if err != nil {
		t.Fatalf("ProduceTask() error: %v", err)
	}
	if task.URL != "https://espn.com/" {
		t.Errorf("task.URL = %q, want %q", task.URL, "https://espn.com/")
	}
}

func TestBrowseEngine_ProduceTask_FallsBackWithoutSitemap(t *testing.T) {
	e := NewBrowseEngine(nil, 2)
	task, err := e.ProduceTask(context.Background(), testSession("unknown-topic"), "read")
	if err != nil {
		t.Fatalf("ProduceTask() error: %v", err)
	}
	if task.URL == "" {
		t.Error("task.URL should not be empty even without a sitemap entry")
	}
}

func TestBrowseEngine_Reload_SwapsSitemap(t *testing.T) {
	e := NewBrowseEngine(map[string][]string{"a": {"https://old.example/"}}, 3)
	e.Reload(map[string][]string{"a": {"https://new.example/"}})
	task, _ := e.ProduceTask(context.Background(), testSession("a"), "read")
	if task.URL != "https://new.example/" {
		t.Errorf("task.URL after Reload = %q, want %q", task.URL, "https://new.example/")
	}
}

func TestDNSEngine_ProduceTask_PicksFromPool(t *testing.T) {
	e := NewDNSEngine(4)
	task, err := e.ProduceTask(context.Background(), testSession("idle"), "idle")
	if err != nil {
		t.Fatalf("ProduceTask() error: %v", err)
	}
	if task.Kind != domain.TaskKindDNS {
		t.Errorf("task.Kind = %v, want %v", task.Kind, domain.TaskKindDNS)
	}
	found := false
	for _, h := range dnsLookupPool {
		if h == task.URL {
			found = true
		}
	}
	if !found {
		t.Errorf("task.URL = %q, want a member of dnsLookupPool", task.URL)
	}
}

func TestResearchEngine_ProduceTask_AddsSearchQueryHint(t *testing.T) {
	e := NewResearchEngine([]string{"https://docs.example.com/"}, 5)
	task, err := e.ProduceTask(context.Background(), testSession("open source projects"), "read")
	if err != nil {
		t.Fatalf("ProduceTask() error: %v", err)
	}
	if !strings.Contains(task.URL, "search=open") {
		t.Errorf("task.URL = %q, want a search query hint", task.URL)
	}
}

func TestAdClickEngine_ProduceTask_PicksNetwork(t *testing.T) {
	e := NewAdClickEngine([]string{"https://ads.example.com/"}, 6)
	task, err := e.ProduceTask(context.Background(), testSession("anything"), "ad_glance")
	if err != nil {
		t.Fatalf("ProduceTask() error: %v", err)
	}
	if task.URL != "https://ads.example.com/" {
		t.Errorf("task.URL = %q, want %q", task.URL, "https://ads.example.com/")
	}
}

func TestMockDriver_OpenThenClose(t *testing.T) {
	d := NewMockDriver()
	res, err := d.Open(context.Background(), domain.Persona{}, "https://example.com/")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if res.Bytes != d.FakeBytes {
		t.Errorf("Bytes = %d, want %d", res.Bytes, d.FakeBytes)
	}
	d.Close(context.Background())
	if _, err := d.Open(context.Background(), domain.Persona{}, "https://example.com/"); err == nil {
		t.Error("Open() after Close() should error")
	}
}
