package events

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryStore mirrors PostgresStore semantics for unit tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Add(evs ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evs...)
}

func (s *InMemoryStore) FindLatest(_ context.Context, code, nino, childDateOfBirth, lastName string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	surname := strings.ToUpper(strings.TrimSpace(lastName))
	var matched []Event
	for _, e := range s.events {
		if e.EligibilityCode != code || e.ChildDateOfBirth != childDateOfBirth {
			continue
		}
		if !strings.EqualFold(e.ParentNino, nino) && !strings.EqualFold(e.PartnerNino, nino) {
			continue
		}
		if surname != "" &&
			!strings.EqualFold(e.ParentLastName, surname) &&
			!strings.EqualFold(e.PartnerLastName, surname) {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})
	if len(matched) > 2 {
		matched = matched[:2]
	}
	return matched, nil
}
