package resultcache

import (
	"context"
	"sync"
	"time"

	"eligibility/pkg/platform/sentinel"
)

// InMemoryStore mirrors PostgresStore semantics for unit tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []Entry
}

func NewMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Latest(_ context.Context, fingerprint string, notBefore time.Time) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *Entry
	for i := range s.entries {
		e := &s.entries[i]
		if e.Fingerprint != fingerprint || e.Submitted.Before(notBefore) {
			continue
		}
		if best == nil || e.Submitted.After(best.Submitted) {
			best = e
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	clone := *best
	return &clone, nil
}

func (s *InMemoryStore) Insert(_ context.Context, entry *Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, *entry)
	return entry.ID, nil
}

// Entries returns a copy of the append log for assertions.
func (s *InMemoryStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
