package domain

import "fmt"

// CheckStatus is the persisted lifecycle state of a check. There is no
// persisted "processing" state: a check being processed is simply a queued
// record currently leased by a consumer.
type CheckStatus string

const (
	StatusQueued         CheckStatus = "queuedForProcessing"
	StatusEligible       CheckStatus = "eligible"
	StatusNotEligible    CheckStatus = "notEligible"
	StatusParentNotFound CheckStatus = "parentNotFound"
	StatusNotFound       CheckStatus = "notFound"
	StatusError          CheckStatus = "error"
	StatusDeleted        CheckStatus = "deleted"
)

// ParseCheckStatus validates a wire-format status.
func ParseCheckStatus(s string) (CheckStatus, error) {
	switch CheckStatus(s) {
	case StatusQueued, StatusEligible, StatusNotEligible, StatusParentNotFound,
		StatusNotFound, StatusError, StatusDeleted:
		return CheckStatus(s), nil
	}
	return "", fmt.Errorf("unknown check status %q", s)
}

// IsTerminal reports whether the status is a settled outcome: everything
// except queued. Deleted is terminal but administrative.
func (s CheckStatus) IsTerminal() bool {
	return s != StatusQueued
}

// IsCacheable reports whether the outcome may seed the result cache.
// Errors and administrative deletion never memoise.
func (s CheckStatus) IsCacheable() bool {
	switch s {
	case StatusEligible, StatusNotEligible, StatusParentNotFound, StatusNotFound:
		return true
	}
	return false
}

// CanTransitionTo enforces the forward-only lifecycle: queued may settle to
// any outcome, settled outcomes may only be soft-deleted or overridden to
// another settled outcome by an administrative update, and deleted is final.
func (s CheckStatus) CanTransitionTo(next CheckStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusQueued:
		return true
	case StatusDeleted:
		return false
	default:
		return next != StatusQueued
	}
}

// GroupStatus is the aggregate status of a bulk submission.
type GroupStatus string

const (
	GroupQueued     GroupStatus = "queued"
	GroupInProgress GroupStatus = "inProgress"
	GroupCompleted  GroupStatus = "completed"
	GroupFailed     GroupStatus = "failed"
	GroupDeleted    GroupStatus = "deleted"
)
