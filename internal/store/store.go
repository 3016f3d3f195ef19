// Package store provides the outcome history for watcher runs.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/classbell/internal/model"
)

// FilterOptions specifies criteria for filtering outcomes.
type FilterOptions struct {
	Since time.Duration // Outcomes finished after now-since (0=all)
	State model.State   // Exact state match (empty=any)
	Name  string        // Exact class name match (empty=any)
	Limit int           // Maximum results (0=unlimited)
	Order string        // "asc" or "desc" by finish time (default: "desc")
}

// Store keeps recorded outcomes in memory, backed by optional persistence.
type Store struct {
	mu       sync.RWMutex
	outcomes []model.Outcome
	index    map[string]int // outcome id -> slice index

	persistence Persistence
	closed      bool

	now func() time.Time
}

// NewStore creates a new Store.
// If persistence is not nil, it will be used to persist outcomes.
func NewStore(persistence Persistence) *Store {
	return &Store{
		outcomes:    make([]model.Outcome, 0),
		index:       make(map[string]int),
		persistence: persistence,
		now:         time.Now,
	}
}

// Add records a single outcome.
func (s *Store) Add(o model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, exists := s.index[o.ID]; exists {
		return nil // Already recorded
	}

	s.index[o.ID] = len(s.outcomes)
	s.outcomes = append(s.outcomes, o)

	if s.persistence != nil {
		if err := s.persistence.Append(o); err != nil {
			return err
		}
	}
	return nil
}

// All returns all outcomes, newest first.
func (s *Store) All() []model.Outcome {
	return s.Filter(FilterOptions{})
}

// Filter returns outcomes matching the criteria.
func (s *Store) Filter(opts FilterOptions) []model.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cutoff time.Time
	if opts.Since > 0 {
		cutoff = s.now().Add(-opts.Since)
	}

	result := make([]model.Outcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		if !cutoff.IsZero() && o.FinishedTime().Before(cutoff) {
			continue
		}
		if opts.State != "" && o.State != opts.State {
			continue
		}
		if opts.Name != "" && o.Entry.Name != opts.Name {
			continue
		}
		result = append(result, o)
	}

	desc := opts.Order != "asc"
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].FinishedAt != result[j].FinishedAt {
			if desc {
				return result[i].FinishedAt > result[j].FinishedAt
			}
			return result[i].FinishedAt < result[j].FinishedAt
		}
		// ULIDs sort by time, which breaks ties within one second
		if desc {
			return result[i].ID > result[j].ID
		}
		return result[i].ID < result[j].ID
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// GetByID returns an outcome by its ULID.
func (s *Store) GetByID(id string) *model.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx, exists := s.index[id]; exists {
		o := s.outcomes[idx]
		return &o
	}
	return nil
}

// Count returns the total number of outcomes.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outcomes)
}

// Prune removes outcomes older than olderThan, always keeping the newest keep
// outcomes. Returns the number removed.
func (s *Store) Prune(olderThan time.Duration, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	sorted := make([]model.Outcome, len(s.outcomes))
	copy(sorted, s.outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FinishedAt > sorted[j].FinishedAt
	})

	cutoff := s.now().Add(-olderThan)
	kept := make([]model.Outcome, 0, len(sorted))
	for i, o := range sorted {
		if i < keep || !o.FinishedTime().Before(cutoff) {
			kept = append(kept, o)
		}
	}

	removed := len(s.outcomes) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	// Oldest first on disk, matching append order
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].FinishedAt < kept[j].FinishedAt
	})
	s.outcomes = kept
	s.rebuildIndex()

	if s.persistence != nil {
		if err := s.persistence.Rewrite(s.outcomes); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Clear removes all outcomes from the store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.outcomes = make([]model.Outcome, 0)
	s.index = make(map[string]int)

	if s.persistence != nil {
		return s.persistence.Clear()
	}
	return nil
}

// Hydrate loads outcomes from persistence into the store.
func (s *Store) Hydrate() error {
	if s.persistence == nil {
		return nil
	}

	outcomes, err := s.persistence.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range outcomes {
		if _, exists := s.index[o.ID]; exists {
			continue
		}
		s.index[o.ID] = len(s.outcomes)
		s.outcomes = append(s.outcomes, o)
	}
	return nil
}

// Close releases the persistence layer.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.persistence != nil {
		return s.persistence.Close()
	}
	return nil
}

func (s *Store) rebuildIndex() {
	s.index = make(map[string]int, len(s.outcomes))
	for i, o := range s.outcomes {
		s.index[o.ID] = i
	}
}

// Errors
var (
	ErrStoreClosed = storeError("store is closed")
)

type storeError string

func (e storeError) Error() string {
	return string(e)
}
