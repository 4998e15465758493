package resultcache

import (
	"time"

	"eligibility/internal/domain"
)

// Entry memoises one settled outcome. Entries are an append log: a
// fingerprint accumulates one entry per outcome-producing check and old
// entries become inert history once outside the retention window.
type Entry struct {
	ID          int64
	Fingerprint string
	Outcome     domain.CheckStatus
	Source      domain.Source
	Submitted   time.Time
}
