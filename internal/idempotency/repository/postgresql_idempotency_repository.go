// Package repository provides data persistence implementations for the
// idempotency ledger.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/database"
	"github.com/careops/scheduling/internal/idempotency/domain"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// PostgreSQLIdempotencyRepository handles idempotency record persistence for PostgreSQL.
type PostgreSQLIdempotencyRepository struct {
	db *sql.DB
}

// NewPostgreSQLIdempotencyRepository creates a new PostgreSQLIdempotencyRepository.
func NewPostgreSQLIdempotencyRepository(db *sql.DB) *PostgreSQLIdempotencyRepository {
	return &PostgreSQLIdempotencyRepository{
		db: db,
	}
}

const recordColumns = `id, tenant_id, idempotency_key, request_method, request_path, request_hash,
			  status, response_status, response_body, processed_at, created_at, updated_at`

// InsertPending claims a key by inserting a pending record. The unique index
// on (tenant_id, idempotency_key) arbitrates concurrent claims: exactly one
// request wins, everyone else gets ErrDuplicateKey and must consult the
// winner's record.
func (r *PostgreSQLIdempotencyRepository) InsertPending(ctx context.Context, record *domain.Record) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO idempotency_records (id, tenant_id, idempotency_key, request_method,
			  request_path, request_hash, status, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			  ON CONFLICT (tenant_id, idempotency_key) DO NOTHING`

	result, err := querier.ExecContext(ctx, query,
		record.ID, record.TenantID, record.IdempotencyKey, record.RequestMethod,
		record.RequestPath, record.RequestHash, domain.RecordStatusPending)
	if err != nil {
		return apperrors.Wrap(err, "failed to insert idempotency record")
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read inserted count")
	}
	if inserted == 0 {
		return domain.ErrDuplicateKey
	}
	return nil
}

// GetByKey retrieves the record for a tenant's idempotency key.
func (r *PostgreSQLIdempotencyRepository) GetByKey(
	ctx context.Context,
	tenantID uuid.UUID,
	key string,
) (*domain.Record, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + recordColumns + `
			  FROM idempotency_records
			  WHERE tenant_id = $1 AND idempotency_key = $2`

	var record domain.Record
	err := querier.QueryRowContext(ctx, query, tenantID, key).Scan(
		&record.ID, &record.TenantID, &record.IdempotencyKey, &record.RequestMethod,
		&record.RequestPath, &record.RequestHash, &record.Status, &record.ResponseStatus,
		&record.ResponseBody, &record.ProcessedAt, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if apperrors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get idempotency record")
	}
	return &record, nil
}

// Complete stores the response and flips the record to completed. Only the
// pending record owner transitions; a completed record is never overwritten.
func (r *PostgreSQLIdempotencyRepository) Complete(
	ctx context.Context,
	id uuid.UUID,
	responseStatus int,
	responseBody string,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE idempotency_records
			  SET status = $1, response_status = $2, response_body = $3,
			      processed_at = NOW(), updated_at = NOW()
			  WHERE id = $4 AND status = $5`

	result, err := querier.ExecContext(ctx, query,
		domain.RecordStatusCompleted, responseStatus, responseBody, id, domain.RecordStatusPending)
	if err != nil {
		return apperrors.Wrap(err, "failed to complete idempotency record")
	}
	return requireOneRow(result)
}

// MarkFailed flips a pending record to failed so the key can be retried.
func (r *PostgreSQLIdempotencyRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE idempotency_records
			  SET status = $1, updated_at = NOW()
			  WHERE id = $2 AND status = $3`

	result, err := querier.ExecContext(ctx, query,
		domain.RecordStatusFailed, id, domain.RecordStatusPending)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark idempotency record failed")
	}
	return requireOneRow(result)
}

// Retry reclaims a failed record for a fresh execution, flipping it back to
// pending with the new request shape. The status guard keeps two retries from
// both winning.
func (r *PostgreSQLIdempotencyRepository) Retry(ctx context.Context, record *domain.Record) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE idempotency_records
			  SET status = $1, request_method = $2, request_path = $3, request_hash = $4,
			      response_status = NULL, response_body = NULL, processed_at = NULL,
			      created_at = NOW(), updated_at = NOW()
			  WHERE id = $5 AND status = $6`

	result, err := querier.ExecContext(ctx, query,
		domain.RecordStatusPending, record.RequestMethod, record.RequestPath,
		record.RequestHash, record.ID, domain.RecordStatusFailed)
	if err != nil {
		return apperrors.Wrap(err, "failed to retry idempotency record")
	}
	return requireOneRow(result)
}

// SweepStale flips pending records older than pendingTTL to failed. Covers
// handlers that died without reaching Complete or MarkFailed.
func (r *PostgreSQLIdempotencyRepository) SweepStale(
	ctx context.Context,
	pendingTTL time.Duration,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE idempotency_records
			  SET status = $1, updated_at = NOW()
			  WHERE id IN (
			      SELECT id FROM idempotency_records
			      WHERE status = $2
			        AND created_at < NOW() - ($3 * INTERVAL '1 second')
			      ORDER BY created_at ASC
			      LIMIT $4
			      FOR UPDATE SKIP LOCKED
			  )`

	result, err := querier.ExecContext(ctx, query,
		domain.RecordStatusFailed, domain.RecordStatusPending, pendingTTL.Seconds(), limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to sweep stale idempotency records")
	}

	swept, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read swept count")
	}
	return swept, nil
}

// requireOneRow converts a zero-row update into ErrRecordNotFound.
func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected count")
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}
