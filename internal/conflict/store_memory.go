package conflict

import (
	"context"
	"sync"
)

// InMemoryStore collects conflict records for unit tests.
type InMemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = int64(len(s.records) + 1)
	s.records = append(s.records, *rec)
	return nil
}

// Records returns a copy of everything appended so far.
func (s *InMemoryStore) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
