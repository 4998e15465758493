package bulk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eligibility/internal/domain"
	"eligibility/pkg/platform/sentinel"
	txcontext "eligibility/pkg/platform/tx"
)

// PostgresStore persists bulk groups in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed group store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, g *Group) error {
	query := `
		INSERT INTO bulk_check_groups (id, name, local_authority, status, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		g.ID, g.Name, g.LocalAuthority, string(g.Status), g.Submitted,
	)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Group, error) {
	query := `
		SELECT id, name, local_authority, status, submitted_at, updated_at
		FROM bulk_check_groups
		WHERE id = $1
	`
	var g Group
	var status string
	err := s.execer(ctx).QueryRowContext(ctx, query, id).
		Scan(&g.ID, &g.Name, &g.LocalAuthority, &status, &g.Submitted, &g.Updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	g.Status = domain.GroupStatus(status)
	return &g, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status domain.GroupStatus) error {
	query := `
		UPDATE bulk_check_groups
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("update group status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update group status rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
