package resultcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eligibility/internal/domain"
	"eligibility/pkg/platform/sentinel"
	txcontext "eligibility/pkg/platform/tx"
)

// PostgresStore persists cache entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Latest(ctx context.Context, fingerprint string, notBefore time.Time) (*Entry, error) {
	query := `
		SELECT id, fingerprint, outcome, source, submitted_at
		FROM eligibility_check_hashes
		WHERE fingerprint = $1 AND submitted_at >= $2
		ORDER BY submitted_at DESC
		LIMIT 1
	`
	var entry Entry
	var outcome, source string
	err := s.execer(ctx).QueryRowContext(ctx, query, fingerprint, notBefore).
		Scan(&entry.ID, &entry.Fingerprint, &outcome, &source, &entry.Submitted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find cache entry: %w", err)
	}
	entry.Outcome = domain.CheckStatus(outcome)
	entry.Source = domain.Source(source)
	return &entry, nil
}

func (s *PostgresStore) Insert(ctx context.Context, entry *Entry) (int64, error) {
	query := `
		INSERT INTO eligibility_check_hashes (fingerprint, outcome, source, submitted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, query,
		entry.Fingerprint, string(entry.Outcome), string(entry.Source), entry.Submitted,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert cache entry: %w", err)
	}
	entry.ID = id
	return id, nil
}
