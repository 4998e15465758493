package bulk

import (
	"context"

	"eligibility/internal/domain"
)

// Store is pure I/O over bulk groups. Aggregate derivation lives in the
// service; write methods join a transaction carried in context.
type Store interface {
	Create(ctx context.Context, g *Group) error

	// GetByID returns the group regardless of its status; callers decide what
	// deleted means for their operation.
	GetByID(ctx context.Context, id string) (*Group, error)

	// UpdateStatus writes the derived aggregate status. Last writer wins: the
	// status is a pure function of member state, so concurrent recomputes
	// converge.
	UpdateStatus(ctx context.Context, id string, status domain.GroupStatus) error
}
