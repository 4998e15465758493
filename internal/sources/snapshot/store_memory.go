package snapshot

import (
	"context"
	"strings"
	"sync"
)

// InMemoryStore mirrors PostgresStore semantics for unit tests.
type InMemoryStore struct {
	mu          sync.RWMutex
	tax         []Row
	immigration []Row
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddTax(rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tax = append(s.tax, rows...)
}

func (s *InMemoryStore) AddImmigration(rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.immigration = append(s.immigration, rows...)
}

func (s *InMemoryStore) FindTax(_ context.Context, nino, dateOfBirth string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return match(s.tax, nino, dateOfBirth), nil
}

func (s *InMemoryStore) FindImmigration(_ context.Context, number, dateOfBirth string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return match(s.immigration, number, dateOfBirth), nil
}

func match(rows []Row, number, dateOfBirth string) []Row {
	var out []Row
	for _, r := range rows {
		if strings.EqualFold(r.Number, number) && r.DateOfBirth == dateOfBirth {
			out = append(out, r)
		}
	}
	return out
}
