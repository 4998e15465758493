package events

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresStore reads the registration event feed in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindLatest(ctx context.Context, code, nino, childDateOfBirth, lastName string) ([]Event, error) {
	query := `
		SELECT id, eligibility_code, parent_nino, partner_nino, parent_last_name, partner_last_name,
		       child_date_of_birth, validity_start, validity_end, grace_period_end, submitted_at
		FROM registration_events
		WHERE eligibility_code = $1
		  AND (UPPER(parent_nino) = $2 OR UPPER(partner_nino) = $2)
		  AND child_date_of_birth = $3
		  AND ($4 = '' OR UPPER(parent_last_name) = $4 OR UPPER(partner_last_name) = $4)
		ORDER BY submitted_at DESC
		LIMIT 2
	`
	rows, err := s.db.QueryContext(ctx, query,
		code, strings.ToUpper(nino), childDateOfBirth, strings.ToUpper(strings.TrimSpace(lastName)))
	if err != nil {
		return nil, fmt.Errorf("query registration events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EligibilityCode, &e.ParentNino, &e.PartnerNino,
			&e.ParentLastName, &e.PartnerLastName, &e.ChildDateOfBirth,
			&e.ValidityStart, &e.ValidityEnd, &e.GracePeriodEnd, &e.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan registration event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registration events: %w", err)
	}
	return out, nil
}
