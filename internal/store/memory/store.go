// Package memory contains an in-memory record store for tests and dry
// runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

// Store keeps records in a slice guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	records []crawler.ProductRecord
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// InsertRecord appends the record. Duplicates are allowed, matching the
// durable store's behavior.
func (s *Store) InsertRecord(_ context.Context, rec crawler.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// RecordsByRun returns the run's records ordered by name ascending.
func (s *Store) RecordsByRun(_ context.Context, runID string) ([]crawler.ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.ProductRecord
	for _, rec := range s.records {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Len reports the total number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
