package store

import (
	"context"

	"eligibility/internal/check/models"
	"eligibility/internal/domain"
)

// StatusCounts summarises a bulk group's members for aggregate rollup.
// Deleted members are counted separately so the rollup can distinguish
// "all deleted" from "nothing queued".
type StatusCounts struct {
	Total   int
	Queued  int
	Errors  int
	Deleted int
}

// Store is pure I/O over check records. Matching rules, state transitions and
// retry policy live in the services; write methods join a transaction carried
// in context via pkg/platform/tx.
type Store interface {
	Create(ctx context.Context, rec *models.Record) error

	// GetByID returns sentinel.ErrNotFound for unknown ids and for records in
	// StatusDeleted: deleted records are invisible to every read path except
	// group rollup.
	GetByID(ctx context.Context, id string) (*models.Record, error)

	// UpdateStatus writes a new status (and optionally the cache attribution)
	// guarded by the record version. Returns sentinel.ErrConflict when a
	// concurrent writer got there first; callers retry against a fresh read.
	UpdateStatus(ctx context.Context, id string, status domain.CheckStatus, resultCacheID *int64, expectedVersion int) error

	// ListByGroup returns the group's non-deleted members ordered by sequence.
	ListByGroup(ctx context.Context, groupID string) ([]*models.Record, error)

	// CountByGroup reports member counts for group rollup, including deleted
	// members.
	CountByGroup(ctx context.Context, groupID string) (StatusCounts, error)

	// SoftDeleteByGroup marks every non-deleted member of the group deleted
	// and returns how many records changed.
	SoftDeleteByGroup(ctx context.Context, groupID string) (int, error)
}
