package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eligibility/internal/check/models"
	"eligibility/internal/domain"
	"eligibility/pkg/platform/sentinel"
	txcontext "eligibility/pkg/platform/tx"
)

// PostgresStore persists check records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed check store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `id, group_id, client_identifier, benefit_type, status, payload, result_cache_id, sequence, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO eligibility_checks (id, group_id, client_identifier, benefit_type, status, payload, sequence, version, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, 1, $8, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		rec.ID, rec.GroupID, rec.ClientIdentifier, string(rec.Type), string(rec.Status),
		[]byte(rec.Payload), rec.Sequence, rec.Created,
	)
	if err != nil {
		return fmt.Errorf("create check: %w", err)
	}
	rec.Version = 1
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM eligibility_checks
		WHERE id = $1 AND status <> $2
	`
	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, id, string(domain.StatusDeleted)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get check: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status domain.CheckStatus, resultCacheID *int64, expectedVersion int) error {
	query := `
		UPDATE eligibility_checks
		SET status = $2,
		    result_cache_id = COALESCE($3, result_cache_id),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $4
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, id, string(status), resultCacheID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update check status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update check status rows affected: %w", err)
	}
	if rows == 0 {
		// Either the record vanished or the version moved under us. Distinguish
		// so callers retry only genuine write races.
		var exists bool
		if err := s.execer(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM eligibility_checks WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update check status recheck: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) ListByGroup(ctx context.Context, groupID string) ([]*models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM eligibility_checks
		WHERE group_id = $1 AND status <> $2
		ORDER BY sequence, created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, groupID, string(domain.StatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("list checks by group: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check rows: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) CountByGroup(ctx context.Context, groupID string) (StatusCounts, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = $2),
		       COUNT(*) FILTER (WHERE status = $3),
		       COUNT(*) FILTER (WHERE status = $4)
		FROM eligibility_checks
		WHERE group_id = $1
	`
	var counts StatusCounts
	err := s.execer(ctx).QueryRowContext(ctx, query, groupID,
		string(domain.StatusQueued), string(domain.StatusError), string(domain.StatusDeleted),
	).Scan(&counts.Total, &counts.Queued, &counts.Errors, &counts.Deleted)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("count checks by group: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) SoftDeleteByGroup(ctx context.Context, groupID string) (int, error) {
	query := `
		UPDATE eligibility_checks
		SET status = $2, version = version + 1, updated_at = NOW()
		WHERE group_id = $1 AND status <> $2
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, groupID, string(domain.StatusDeleted))
	if err != nil {
		return 0, fmt.Errorf("soft delete checks by group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("soft delete rows affected: %w", err)
	}
	return int(rows), nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var rec models.Record
	var groupID, clientIdentifier sql.NullString
	var benefitType, status string
	var cacheID sql.NullInt64
	if err := row.Scan(&rec.ID, &groupID, &clientIdentifier, &benefitType, &status,
		(*[]byte)(&rec.Payload), &cacheID, &rec.Sequence, &rec.Version, &rec.Created, &rec.Updated); err != nil {
		return nil, err
	}
	rec.GroupID = groupID.String
	rec.ClientIdentifier = clientIdentifier.String
	rec.Type = domain.BenefitType(benefitType)
	rec.Status = domain.CheckStatus(status)
	if cacheID.Valid {
		rec.ResultCacheID = &cacheID.Int64
	}
	return &rec, nil
}
