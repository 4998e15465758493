// Package resultcache memoises settled check outcomes so a repeat of the same
// identifying inputs inside the retention window reuses the prior answer
// instead of re-querying external systems.
package resultcache

import (
	"context"
	"fmt"
	"time"

	"eligibility/internal/audit"
	"eligibility/internal/domain"
	"eligibility/pkg/requestcontext"
)

// Cache owns the freshness policy over the append-only entry log.
type Cache struct {
	store     Store
	auditor   audit.Publisher
	retention time.Duration
	metrics   *Metrics
}

// New builds a cache with a retention window of hashCheckDays days.
func New(store Store, auditor audit.Publisher, hashCheckDays int, metrics *Metrics) *Cache {
	return &Cache{
		store:     store,
		auditor:   auditor,
		retention: time.Duration(hashCheckDays) * 24 * time.Hour,
		metrics:   metrics,
	}
}

// Lookup returns the freshest entry for the fingerprint inside the retention
// window, or sentinel.ErrNotFound. Pure read, no side effects beyond metrics.
func (c *Cache) Lookup(ctx context.Context, fingerprint string) (*Entry, error) {
	cutoff := requestcontext.Now(ctx).Add(-c.retention)
	entry, err := c.store.Latest(ctx, fingerprint, cutoff)
	if err != nil {
		c.metrics.RecordMiss()
		return nil, err
	}
	c.metrics.RecordHit()
	return entry, nil
}

// Record appends a new entry for a settled outcome and emits the hash audit
// fact. It does not commit: when the caller carries a transaction in context
// the write joins it, so the entry lands atomically with the check update.
func (c *Cache) Record(ctx context.Context, fingerprint string, outcome domain.CheckStatus, source domain.Source, checkID string) (int64, error) {
	if !outcome.IsCacheable() {
		return 0, fmt.Errorf("outcome %q is not cacheable", outcome)
	}
	entry := &Entry{
		Fingerprint: fingerprint,
		Outcome:     outcome,
		Source:      source,
		Submitted:   requestcontext.Now(ctx),
	}
	id, err := c.store.Insert(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("record cache entry: %w", err)
	}
	c.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionHashRecorded,
		CheckID: checkID,
		Outcome: string(outcome),
		Source:  string(source),
	})
	return id, nil
}
