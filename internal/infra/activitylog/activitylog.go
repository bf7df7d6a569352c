// Package activitylog writes the fixed-format JSON-lines activity log to
// an external writer (normally stderr), independent of the application's
// structured zap logger. Operators grep this stream directly, so its
// field names are a wire contract (spec.md §6) that must not drift with
// the app log's own conventions.
package activitylog

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/poisson-noise/poisson/internal/domain"
)

// line is the exact exported shape of one activity-log record.
type line struct {
	Timestamp string `json:"ts"`
	Engine    string `json:"engine"`
	URL       string `json:"url,omitempty"`
	Bytes     int64  `json:"bytes"`
	Outcome   string `json:"outcome"`
	Persona   string `json:"persona,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Writer emits activity entries as JSON lines to an underlying io.Writer.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
	enc *json.Encoder
}

// NewWriter builds a Writer over out (typically os.Stderr).
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, enc: json.NewEncoder(out)}
}

// Write emits one activity entry as a single JSON line.
func (w *Writer) Write(e domain.ActivityEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	l := line{
		Timestamp: e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Engine:    e.Engine,
		URL:       e.URL,
		Bytes:     e.Bytes,
		Outcome:   string(e.Outcome),
		Persona:   e.Persona,
		SessionID: e.SessionID,
	}
	if err := w.enc.Encode(l); err != nil {
		return fmt.Errorf("activitylog: encode entry: %w", err)
	}
	return nil
}
