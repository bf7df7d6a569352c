package dataload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poisson-noise/poisson/internal/domain"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoad_ReadsAllThreeFiles(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		PersonasPath: writeTempFile(t, dir, "personas.yaml", "personas:\n  - name: desktop\n    weight: 1\n"),
		TopicsPath:   writeTempFile(t, dir, "topics.yaml", "topics:\n  - category: gardening\n    weight: 1\n"),
		SitemapsPath: writeTempFile(t, dir, "sitemaps.yaml", "sitemaps:\n  gardening:\n    - https://example.com/garden\n"),
	}

	snap, err := Load(paths)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(snap.Personas) != 1 || snap.Personas[0].Name != "desktop" {
		t.Errorf("Personas = %v, want one persona named desktop", snap.Personas)
	}
	if len(snap.Topics) != 1 || snap.Topics[0].Category != "gardening" {
		t.Errorf("Topics = %v, want one topic gardening", snap.Topics)
	}
	if len(snap.Sitemaps["gardening"]) != 1 {
		t.Errorf("Sitemaps[gardening] = %v, want one URL", snap.Sitemaps["gardening"])
	}
}

func TestLoad_MissingPersonasFileErrors(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		PersonasPath: filepath.Join(dir, "missing.yaml"),
		TopicsPath:   writeTempFile(t, dir, "topics.yaml", "topics: []\n"),
		SitemapsPath: writeTempFile(t, dir, "sitemaps.yaml", "sitemaps: {}\n"),
	}
	_, err := Load(paths)
	if err == nil {
		t.Fatal("Load() should error on a missing personas file")
	}
}

func TestLoad_EmptyPersonasErrorsDataCategoryMissing(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		PersonasPath: writeTempFile(t, dir, "personas.yaml", "personas: []\n"),
		TopicsPath:   writeTempFile(t, dir, "topics.yaml", "topics: []\n"),
		SitemapsPath: writeTempFile(t, dir, "sitemaps.yaml", "sitemaps: {}\n"),
	}
	_, err := Load(paths)
	if err == nil {
		t.Fatal("Load() should error when no personas are defined")
	}
}

func TestLoad_MalformedYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		PersonasPath: writeTempFile(t, dir, "personas.yaml", "not: [valid: yaml"),
		TopicsPath:   writeTempFile(t, dir, "topics.yaml", "topics: []\n"),
		SitemapsPath: writeTempFile(t, dir, "sitemaps.yaml", "sitemaps: {}\n"),
	}
	_, err := Load(paths)
	if err == nil {
		t.Fatal("Load() should error on malformed YAML")
	}
}

func TestReloadFunc_CallsWrappedFunction(t *testing.T) {
	called := false
	var r Reloadable = ReloadFunc(func(s Snapshot) { called = true })
	r.Reload(Snapshot{Personas: []domain.Persona{{Name: "x"}}})
	if !called {
		t.Error("ReloadFunc should invoke the wrapped function")
	}
}
