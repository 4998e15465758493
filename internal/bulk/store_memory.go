package bulk

import (
	"context"
	"sync"
	"time"

	"eligibility/internal/domain"
	"eligibility/pkg/platform/sentinel"
)

// InMemoryStore keeps groups in a map for unit tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	groups map[string]Group
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{groups: make(map[string]Group)}
}

func (s *InMemoryStore) Create(_ context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = *g
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := g
	return &out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id string, status domain.GroupStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	g.Status = status
	g.Updated = time.Now()
	s.groups[id] = g
	return nil
}
