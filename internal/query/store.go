package query

import (
	"TrialStats/internal/core/model"
	"sync"
	"time"
)

// Store holds the batch served by the APIs. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	batch *model.Batch
}

// NewStore creates a store, optionally seeded with a batch.
func NewStore(initial *model.Batch) *Store {
	return &Store{batch: initial}
}

// Set replaces the current batch.
func (s *Store) Set(b *model.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = b
}

// Batch returns the current batch, or nil before the first analysis.
func (s *Store) Batch() *model.Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch
}

// Report returns the current report of a protocol, or nil.
func (s *Store) Report(protocol string) *model.Report {
	return s.Batch().Report(protocol)
}

// Upsert replaces one protocol's report. A different batchID starts a new batch that
// still carries the reports of the other protocols.
func (s *Store) Upsert(batchID string, createdAt time.Time, report *model.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &model.Batch{ID: batchID, CreatedAt: createdAt}
	replaced := false
	if s.batch != nil {
		for _, r := range s.batch.Reports {
			if r.Protocol == report.Protocol {
				r = report
				replaced = true
			}
			next.Reports = append(next.Reports, r)
		}
	}
	if !replaced {
		next.Reports = append(next.Reports, report)
	}
	s.batch = next
}
