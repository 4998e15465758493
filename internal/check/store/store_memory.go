package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"eligibility/internal/check/models"
	"eligibility/internal/domain"
	"eligibility/pkg/platform/sentinel"
)

// InMemoryStore mirrors PostgresStore semantics for unit tests, including
// version-guarded writes and deleted-record invisibility.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Record
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.Record)}
}

func (s *InMemoryStore) Create(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	clone.Version = 1
	if clone.Updated.IsZero() {
		clone.Updated = clone.Created
	}
	s.records[rec.ID] = &clone
	rec.Version = 1
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok || rec.Status == domain.StatusDeleted {
		return nil, sentinel.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id string, status domain.CheckStatus, resultCacheID *int64, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	rec.Status = status
	if resultCacheID != nil {
		rec.ResultCacheID = resultCacheID
	}
	rec.Version++
	rec.Updated = time.Now()
	return nil
}

func (s *InMemoryStore) ListByGroup(_ context.Context, groupID string) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []*models.Record
	for _, rec := range s.records {
		if rec.GroupID == groupID && rec.Status != domain.StatusDeleted {
			clone := *rec
			records = append(records, &clone)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Sequence != records[j].Sequence {
			return records[i].Sequence < records[j].Sequence
		}
		return records[i].Created.Before(records[j].Created)
	})
	return records, nil
}

func (s *InMemoryStore) CountByGroup(_ context.Context, groupID string) (StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts StatusCounts
	for _, rec := range s.records {
		if rec.GroupID != groupID {
			continue
		}
		counts.Total++
		switch rec.Status {
		case domain.StatusQueued:
			counts.Queued++
		case domain.StatusError:
			counts.Errors++
		case domain.StatusDeleted:
			counts.Deleted++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) SoftDeleteByGroup(_ context.Context, groupID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, rec := range s.records {
		if rec.GroupID == groupID && rec.Status != domain.StatusDeleted {
			rec.Status = domain.StatusDeleted
			rec.Version++
			rec.Updated = time.Now()
			deleted++
		}
	}
	return deleted, nil
}
