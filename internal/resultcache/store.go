package resultcache

import (
	"context"
	"time"
)

// Store is pure I/O over cache entries. Freshness policy lives in Cache.
type Store interface {
	// Latest returns the newest entry for the fingerprint submitted at or
	// after notBefore, or sentinel.ErrNotFound.
	Latest(ctx context.Context, fingerprint string, notBefore time.Time) (*Entry, error)

	// Insert appends a new entry and returns its id. Entries are never
	// updated or deleted.
	Insert(ctx context.Context, entry *Entry) (int64, error)
}
