package conflict

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists conflict records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO verification_conflicts
			(check_id, correlation_id, legacy_outcome, modern_outcome, last_name, date_of_birth, identifying_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		rec.CheckID, rec.CorrelationID, string(rec.LegacyOutcome), string(rec.ModernOutcome),
		rec.LastName, rec.DateOfBirth, rec.IdentifyingNumber, rec.Created,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("append conflict record: %w", err)
	}
	return nil
}
