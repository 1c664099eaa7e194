// Package progress tracks crawl progress for logs and the debug API.
package progress

import (
	"sync"
	"time"

	"github.com/iiadata/treaty-crawler/internal/clock"
)

// Phase names the orchestrator states surfaced to observers.
type Phase string

// Crawl phases in execution order.
const (
	PhaseIdle           Phase = "idle"
	PhaseDiscovering    Phase = "discovering"
	PhaseCrawling       Phase = "crawling"
	PhasePostProcessing Phase = "post_processing"
	PhaseEnriching      Phase = "enriching"
	PhaseExporting      Phase = "exporting"
	PhaseDone           Phase = "done"
)

// Snapshot is a point-in-time view of crawl progress.
type Snapshot struct {
	RunID        string    `json:"run_id"`
	Phase        Phase     `json:"phase"`
	AnchorsTotal int       `json:"countries_total"`
	AnchorsDone  int       `json:"countries_done"`
	RawItems     int       `json:"raw_items"`
	UniqueItems  int       `json:"unique_items"`
	Retries      int       `json:"retries"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Tracker is a mutex-guarded progress accumulator. All methods are safe for
// concurrent use.
type Tracker struct {
	mu    sync.Mutex
	snap  Snapshot
	clock clock.Clock
}

// NewTracker creates a tracker for one run using the system clock.
func NewTracker(runID string) *Tracker {
	return NewTrackerWithClock(runID, clock.NewSystem())
}

// NewTrackerWithClock creates a tracker with an injected clock.
func NewTrackerWithClock(runID string, c clock.Clock) *Tracker {
	now := c.Now()
	return &Tracker{
		snap: Snapshot{
			RunID:     runID,
			Phase:     PhaseIdle,
			StartedAt: now,
			UpdatedAt: now,
		},
		clock: c,
	}
}

// SetPhase records a state-machine transition.
func (t *Tracker) SetPhase(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Phase = p
	t.snap.UpdatedAt = t.clock.Now()
}

// SetTotals records the discovered anchor count and any resumed progress.
func (t *Tracker) SetTotals(anchorsTotal, anchorsDone, rawItems int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.AnchorsTotal = anchorsTotal
	t.snap.AnchorsDone = anchorsDone
	t.snap.RawItems = rawItems
	t.snap.UpdatedAt = t.clock.Now()
}

// AnchorDone records one completed country page and its extracted rows.
func (t *Tracker) AnchorDone(items int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.AnchorsDone++
	t.snap.RawItems += items
	t.snap.UpdatedAt = t.clock.Now()
}

// SetUnique records the post-dedup item count.
func (t *Tracker) SetUnique(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.UniqueItems = n
	t.snap.UpdatedAt = t.clock.Now()
}

// Retry counts one retried operation.
func (t *Tracker) Retry() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Retries++
	t.snap.UpdatedAt = t.clock.Now()
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
