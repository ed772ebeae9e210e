// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/database"
	"github.com/careops/scheduling/internal/outbox/domain"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// PostgreSQLOutboxEventRepository handles outbox event persistence for PostgreSQL.
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQLOutboxEventRepository.
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		db: db,
	}
}

const outboxColumns = `id, tenant_id, aggregate_type, aggregate_id, event_type, payload,
			  status, attempts, leased_at, last_error, processed_at, created_at, updated_at`

// Create inserts a new outbox event. It runs on the caller's transaction when
// one is carried in ctx, so the event commits or rolls back together with the
// business mutation it describes. That shared fate is the durability boundary
// of the outbox pattern.
func (r *PostgreSQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (id, tenant_id, aggregate_type, aggregate_id, event_type,
			  payload, status, attempts, leased_at, last_error, processed_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		event.ID, event.TenantID, event.AggregateType, event.AggregateID, event.EventType,
		event.Payload, event.Status, event.Attempts, event.LeasedAt, event.LastError, event.ProcessedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// ClaimBatch atomically claims up to limit deliverable events: pending status
// and no live lease. Claimed rows get a fresh lease and an incremented attempt
// counter in the same statement that selects them, and SKIP LOCKED keeps
// concurrent claimers from ever returning overlapping sets. A worker that
// crashes mid-processing simply lets its lease expire, after which another
// claimer picks the event up again.
func (r *PostgreSQLOutboxEventRepository) ClaimBatch(
	ctx context.Context,
	limit int,
	leaseTTL time.Duration,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET leased_at = NOW(), attempts = attempts + 1, updated_at = NOW()
			  WHERE id IN (
			      SELECT id FROM outbox_events
			      WHERE status = $1
			        AND (leased_at IS NULL OR leased_at < NOW() - ($2 * INTERVAL '1 second'))
			      ORDER BY created_at ASC
			      LIMIT $3
			      FOR UPDATE SKIP LOCKED
			  )
			  RETURNING ` + outboxColumns

	rows, err := querier.QueryContext(ctx, query,
		domain.OutboxEventStatusPending, leaseTTL.Seconds(), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim outbox events")
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		event, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate claimed events")
	}

	return events, nil
}

// MarkProcessed records successful delivery. Terminal state.
func (r *PostgreSQLOutboxEventRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, processed_at = NOW(), last_error = NULL, updated_at = NOW()
			  WHERE id = $2`

	if _, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusProcessed, id); err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event processed")
	}
	return nil
}

// MarkFailed records a delivery failure. The event stays pending so it is
// retried after its lease expires, until attempts reach maxAttempts, at which
// point it is dead-lettered (status failed) and left for operator remediation.
func (r *PostgreSQLOutboxEventRepository) MarkFailed(
	ctx context.Context,
	id uuid.UUID,
	errMsg string,
	maxAttempts int,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = CASE WHEN attempts >= $1 THEN $2::text ELSE status END,
			      last_error = $3, updated_at = NOW()
			  WHERE id = $4`

	_, err := querier.ExecContext(ctx, query, maxAttempts, domain.OutboxEventStatusFailed, errMsg, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event failed")
	}
	return nil
}

// RequeueFailed returns up to limit dead-lettered events to the pending state
// with a reset attempt counter. Used by the requeue CLI command.
func (r *PostgreSQLOutboxEventRepository) RequeueFailed(ctx context.Context, limit int) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, attempts = 0, leased_at = NULL, last_error = NULL, updated_at = NOW()
			  WHERE id IN (
			      SELECT id FROM outbox_events
			      WHERE status = $2
			      ORDER BY created_at ASC
			      LIMIT $3
			      FOR UPDATE SKIP LOCKED
			  )`

	result, err := querier.ExecContext(ctx, query,
		domain.OutboxEventStatusPending, domain.OutboxEventStatusFailed, limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to requeue outbox events")
	}

	requeued, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read requeued count")
	}
	return requeued, nil
}

// CountPending returns the number of events not yet processed. Exposed for
// metrics and readiness reporting.
func (r *PostgreSQLOutboxEventRepository) CountPending(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM outbox_events WHERE status = $1`

	var count int64
	if err := querier.QueryRowContext(ctx, query, domain.OutboxEventStatusPending).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count pending events")
	}
	return count, nil
}

// scanOutboxEvent scans one outbox event row from a multi-row result set.
func scanOutboxEvent(rows *sql.Rows) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	err := rows.Scan(
		&event.ID, &event.TenantID, &event.AggregateType, &event.AggregateID, &event.EventType,
		&event.Payload, &event.Status, &event.Attempts, &event.LeasedAt, &event.LastError,
		&event.ProcessedAt, &event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan outbox event")
	}
	return &event, nil
}
