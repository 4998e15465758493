package audit

import "time"

// Action labels what happened. The engine emits facts, it never reads them
// back; downstream consumers own retention and querying.
type Action string

const (
	ActionCheckSubmitted Action = "check_submitted"
	ActionCheckSettled   Action = "check_settled"
	ActionStatusOverride Action = "status_override"
	ActionHashRecorded   Action = "hash_recorded"
	ActionHashReused     Action = "hash_reused"
	ActionConflictLogged Action = "conflict_logged"
	ActionGroupSubmitted Action = "group_submitted"
	ActionGroupDeleted   Action = "group_deleted"
	ActionRetryExhausted Action = "retry_exhausted"
)

// Event is one structured audit fact. Keep it transport-agnostic so sinks can
// fan out.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	Action         Action    `json:"action"`
	CheckID        string    `json:"checkId,omitempty"`
	GroupID        string    `json:"groupId,omitempty"`
	LocalAuthority int       `json:"localAuthority,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
	Source         string    `json:"source,omitempty"`
	RequestID      string    `json:"requestId,omitempty"`
	Detail         string    `json:"detail,omitempty"`
}
