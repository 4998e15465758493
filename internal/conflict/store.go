// Package conflict records disagreements between the legacy gateway and the
// modern API when both are run for the same check. Records are write-once
// investigation artifacts; the engine never reads them back.
package conflict

import (
	"context"
	"time"

	"eligibility/internal/domain"
)

// Record captures both outcomes plus enough identifying data to investigate.
type Record struct {
	ID                int64
	CheckID           string
	CorrelationID     string
	LegacyOutcome     domain.CheckStatus
	ModernOutcome     domain.CheckStatus
	LastName          string
	DateOfBirth       string
	IdentifyingNumber string
	Created           time.Time
}

// Store appends conflict records.
type Store interface {
	Append(ctx context.Context, rec *Record) error
}
