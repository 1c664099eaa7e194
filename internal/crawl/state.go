package crawl

import (
	"sort"
	"sync"
)

// State is the single shared mutable value of a crawl: the completed anchor
// set and the raw item accumulator. Commit moves both together under one
// lock, so at any observation point the completed set exactly reflects
// which anchors' items are present. Per-anchor work stays worker-local
// until it is merged here.
type State struct {
	mu        sync.Mutex
	completed map[int]struct{}
	items     []RawItem
}

// NewState builds a State, optionally seeded from a loaded checkpoint.
func NewState(completed map[int]struct{}, items []RawItem) *State {
	if completed == nil {
		completed = make(map[int]struct{})
	}
	return &State{
		completed: completed,
		items:     items,
	}
}

// Done reports whether the anchor has already been committed.
func (s *State) Done(anchorID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[anchorID]
	return ok
}

// Commit atomically records the anchor as completed together with its
// extracted items, returning the new completed count.
func (s *State) Commit(anchorID int, items []RawItem) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[anchorID] = struct{}{}
	s.items = append(s.items, items...)
	return len(s.completed)
}

// Snapshot returns the sorted completed ids and a copy of the accumulated
// items, suitable for a checkpoint write.
func (s *State) Snapshot() ([]int, []RawItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.completed))
	for id := range s.completed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	items := make([]RawItem, len(s.items))
	copy(items, s.items)
	return ids, items
}

// Counts returns the completed anchor count and accumulated item count.
func (s *State) Counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed), len(s.items)
}
