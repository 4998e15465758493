package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresStore reads the replicated snapshot tables in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindTax(ctx context.Context, nino, dateOfBirth string) ([]Row, error) {
	query := `
		SELECT ni_number, last_name, date_of_birth
		FROM tax_snapshot
		WHERE UPPER(ni_number) = $1 AND date_of_birth = $2
	`
	return s.query(ctx, query, strings.ToUpper(nino), dateOfBirth)
}

func (s *PostgresStore) FindImmigration(ctx context.Context, number, dateOfBirth string) ([]Row, error) {
	query := `
		SELECT support_number, last_name, date_of_birth
		FROM immigration_snapshot
		WHERE UPPER(support_number) = $1 AND date_of_birth = $2
	`
	return s.query(ctx, query, strings.ToUpper(number), dateOfBirth)
}

func (s *PostgresStore) query(ctx context.Context, query, number, dateOfBirth string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, number, dateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Number, &r.LastName, &r.DateOfBirth); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return out, nil
}
