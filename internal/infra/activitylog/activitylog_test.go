package activitylog

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

func TestWriter_Write_EmitsFixedFieldNames(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.Write(domain.ActivityEntry{
		Timestamp: time.Unix(0, 0),
		Engine:    "search",
		URL:       "https://example.com/",
		Bytes:     2048,
		Outcome:   domain.OutcomeOK,
		Persona:   "desktop-chrome",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	for _, field := range []string{"ts", "engine", "url", "bytes", "outcome", "persona", "session_id"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("missing expected field %q in %v", field, decoded)
		}
	}
}

func TestWriter_Write_OmitsEmptyOptionalFields(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.Write(domain.ActivityEntry{Timestamp: time.Now(), Engine: "dns", Outcome: domain.OutcomeOK})

	var decoded map[string]any
	json.Unmarshal(buf.Bytes(), &decoded)
	if _, ok := decoded["url"]; ok {
		t.Error("url should be omitted when empty")
	}
	if _, ok := decoded["persona"]; ok {
		t.Error("persona should be omitted when empty")
	}
}

func TestWriter_Write_OneLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Write(domain.ActivityEntry{Engine: "a", Outcome: domain.OutcomeOK})
	w.Write(domain.ActivityEntry{Engine: "b", Outcome: domain.OutcomeOK})

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	if len(lines) != 2 {
		t.Errorf("got %d lines, want 2", len(lines))
	}
}
