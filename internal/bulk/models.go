// Package bulk groups many checks under one submission, rolls their aggregate
// status forward as members settle, and soft-deletes whole groups within a
// configured bound.
package bulk

import (
	"time"

	"eligibility/internal/domain"
)

// Group is one bulk submission. Its status is a pure function of the member
// records' statuses; Recompute re-derives it after every member transition.
type Group struct {
	ID             string
	Name           string
	LocalAuthority int
	Status         domain.GroupStatus
	Submitted      time.Time
	Updated        time.Time
}

// Progress is the caller-facing aggregate: how many members exist and how
// many are no longer queued.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}
