package todolist

import (
	"fmt"
	"sync"
	"time"

	"github.com/todopad/todopad/internal/todoapi"
)

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Items               []todoapi.Item
	TotalPages          int
	Query               Query
	Editing             *Edit
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // number of consecutive fetch failures
}

// IsOffline returns true when the backend has been unreachable for several fetches.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Pages returns the page count to display, never less than one.
func (s Snapshot) Pages() int {
	if s.TotalPages < 1 {
		return 1
	}
	return s.TotalPages
}

// Item returns the cached item with id.
func (s Snapshot) Item(id string) (todoapi.Item, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return todoapi.Item{}, false
}

// Store coordinates concurrent fetch results. Results are tagged with the
// sequence number of the fetch that produced them; a result older than one
// already applied is dropped.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	applied  uint64
}

// Update records the outcome of fetch seq and reports whether it was applied.
// When err is non-nil the previous items are kept but the error is recorded.
func (s *Store) Update(seq uint64, page *todoapi.Page, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.applied {
		return false
	}
	s.applied = seq

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return true
	}

	if page != nil {
		s.snapshot.Items = cloneItems(page.Items)
		s.snapshot.TotalPages = page.TotalPages
	} else {
		s.snapshot.Items = nil
		s.snapshot.TotalPages = 0
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
	return true
}

// Snapshot returns a deep copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Items = cloneItems(s.snapshot.Items)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneItems(items []todoapi.Item) []todoapi.Item {
	if len(items) == 0 {
		return nil
	}
	dup := make([]todoapi.Item, len(items))
	copy(dup, items)
	for i := range dup {
		if items[i].Tags != nil {
			dup[i].Tags = append([]string(nil), items[i].Tags...)
		}
	}
	return dup
}
