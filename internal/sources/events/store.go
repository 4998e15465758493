// Package events reads the working families registration event feed.
package events

import (
	"context"
	"time"
)

// Event is one benefits-registration event for a working families
// eligibility code.
type Event struct {
	ID               int64
	EligibilityCode  string
	ParentNino       string
	PartnerNino      string
	ParentLastName   string
	PartnerLastName  string
	ChildDateOfBirth string // yyyy-mm-dd
	// ValidityStart is the discretionary start date of the registration
	// period; ValidityEnd and GracePeriodEnd bound it.
	ValidityStart  time.Time
	ValidityEnd    time.Time
	GracePeriodEnd time.Time
	SubmittedAt    time.Time
}

// Store reads the event feed. The feed itself is written by an external
// registration system; the engine only queries it.
type Store interface {
	// FindLatest returns up to two matching events ordered by submission date
	// descending. A match requires the eligibility code, the NI number against
	// the parent or partner field, the child's date of birth, and a surname
	// that matches the parent or partner field — or a blank request surname.
	FindLatest(ctx context.Context, code, nino, childDateOfBirth, lastName string) ([]Event, error)
}
