// Package extcollab tracks the optional browser-extension collaborator
// described in spec.md §6: a remote client that polls for small tasks and
// reports back counters, treated as one additional engine instance whose
// execution happens off-box and which is never on the scheduling critical
// path.
package extcollab

import (
	"sync"
	"time"

	"github.com/poisson-noise/poisson/internal/domain"
)

// Task is one unit of work handed to the extension, matching the wire
// shape spec.md §6 specifies for /ext/next-task.
type Task struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	DelayMS int64  `json:"delay_ms"`
}

// Counters is what the extension reports back on each heartbeat.
type Counters struct {
	Completed int64 `json:"completed"`
	Errors    int64 `json:"errors"`
	BytesIn   int64 `json:"bytes_in"`
}

// Collab holds the extension's registration state, pending task queue, and
// last-reported counters. One Collab per daemon; the extension is a
// singleton client, not a pool.
type Collab struct {
	mu         sync.Mutex
	registered bool
	lastSeen   time.Time
	queue      []Task
	totals     Counters
}

// NewCollab builds an empty, unregistered collaborator.
func NewCollab() *Collab {
	return &Collab{}
}

// Register marks the extension as present. Safe to call repeatedly (the
// extension may re-register after a restart).
func (c *Collab) Register() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = true
	c.lastSeen = time.Now()
}

// Heartbeat folds in the extension's self-reported counters. Returns
// ErrExtNotRegistered if the extension never registered.
func (c *Collab) Heartbeat(counters Counters) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.registered {
		return domain.ErrExtNotRegistered
	}
	c.lastSeen = time.Now()
	c.totals.Completed += counters.Completed
	c.totals.Errors += counters.Errors
	c.totals.BytesIn += counters.BytesIn
	return nil
}

// Enqueue adds a task for the extension to pick up on its next poll.
// Called by the side of the system that wants the extension to act —
// never blocks, never required for the scheduling loop to progress.
func (c *Collab) Enqueue(t Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, t)
}

// NextTask pops the oldest queued task, if any.
func (c *Collab) NextTask() (Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return Task{}, false
	}
	t := c.queue[0]
	c.queue = c.queue[1:]
	return t, true
}

// Connected reports whether a heartbeat or registration has been seen
// within the given window.
func (c *Collab) Connected(within time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered && time.Since(c.lastSeen) <= within
}

// Totals returns a snapshot of cumulative self-reported counters.
func (c *Collab) Totals() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals
}
