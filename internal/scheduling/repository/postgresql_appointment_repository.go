// Package repository provides data persistence implementations for scheduling entities.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/database"
	"github.com/careops/scheduling/internal/scheduling/domain"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// PostgreSQLAppointmentRepository handles appointment persistence for PostgreSQL.
type PostgreSQLAppointmentRepository struct {
	db *sql.DB
}

// NewPostgreSQLAppointmentRepository creates a new PostgreSQLAppointmentRepository.
func NewPostgreSQLAppointmentRepository(db *sql.DB) *PostgreSQLAppointmentRepository {
	return &PostgreSQLAppointmentRepository{
		db: db,
	}
}

const appointmentColumns = `id, tenant_id, clinician_id, patient_id, starts_at, ends_at,
			  status, cancel_reason, created_by, updated_by, created_at, updated_at`

// LockClinician acquires the transaction-scoped resource lock for a clinician.
// All booking mutations for one clinician serialize behind this lock for the
// lifetime of the surrounding transaction; different clinicians proceed in
// parallel. Must be called inside a transaction.
func (r *PostgreSQLAppointmentRepository) LockClinician(
	ctx context.Context,
	tenantID, clinicianID uuid.UUID,
) error {
	key := tenantID.String() + "/" + clinicianID.String()
	if err := database.AcquireXactLock(ctx, r.db, "clinician", key); err != nil {
		return apperrors.Wrap(err, "failed to lock clinician")
	}
	return nil
}

// FindConflicts returns the ids of non-cancelled appointments for the clinician
// whose intervals overlap the given half-open interval, excluding excludeID if
// non-nil. The rows are read FOR UPDATE so concurrent writers targeting the
// same clinician block until this transaction ends; combined with LockClinician
// this makes the check-and-write race free.
func (r *PostgreSQLAppointmentRepository) FindConflicts(
	ctx context.Context,
	tenantID, clinicianID uuid.UUID,
	interval domain.Interval,
	excludeID *uuid.UUID,
) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id FROM appointments
			  WHERE tenant_id = $1
			    AND clinician_id = $2
			    AND status = $3
			    AND starts_at < $4
			    AND ends_at > $5
			    AND ($6::uuid IS NULL OR id != $6)
			  ORDER BY starts_at ASC
			  FOR UPDATE`

	rows, err := querier.QueryContext(ctx, query,
		tenantID, clinicianID, domain.AppointmentStatusScheduled,
		interval.EndsAt, interval.StartsAt, excludeID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find conflicts")
	}
	defer rows.Close() //nolint:errcheck

	var conflicts []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan conflict id")
		}
		conflicts = append(conflicts, id)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate conflicts")
	}

	return conflicts, nil
}

// Create inserts a new appointment.
func (r *PostgreSQLAppointmentRepository) Create(ctx context.Context, appointment *domain.Appointment) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO appointments (id, tenant_id, clinician_id, patient_id, starts_at, ends_at,
			  status, cancel_reason, created_by, updated_by, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		appointment.ID, appointment.TenantID, appointment.ClinicianID, appointment.PatientID,
		appointment.StartsAt, appointment.EndsAt, appointment.Status, appointment.CancelReason,
		appointment.CreatedBy, appointment.UpdatedBy)
	if err != nil {
		return apperrors.Wrap(err, "failed to create appointment")
	}
	return nil
}

// GetByID retrieves an appointment by id within a tenant.
func (r *PostgreSQLAppointmentRepository) GetByID(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
			  FROM appointments WHERE tenant_id = $1 AND id = $2`

	return r.getOne(ctx, query, tenantID, id)
}

// GetByIDForUpdate retrieves an appointment by id and locks its row for the
// duration of the transaction. Used by reschedule/cancel so concurrent
// mutations of the same appointment serialize.
func (r *PostgreSQLAppointmentRepository) GetByIDForUpdate(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
			  FROM appointments WHERE tenant_id = $1 AND id = $2
			  FOR UPDATE`

	return r.getOne(ctx, query, tenantID, id)
}

// UpdateInterval moves an appointment to a new interval.
func (r *PostgreSQLAppointmentRepository) UpdateInterval(
	ctx context.Context,
	tenantID, id uuid.UUID,
	interval domain.Interval,
	updatedBy uuid.UUID,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE appointments
			  SET starts_at = $1, ends_at = $2, updated_by = $3, updated_at = NOW()
			  WHERE tenant_id = $4 AND id = $5`

	result, err := querier.ExecContext(ctx, query, interval.StartsAt, interval.EndsAt, updatedBy, tenantID, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update appointment interval")
	}

	return requireOneRow(result)
}

// Cancel flips an appointment to the cancelled status. The row is never
// deleted, preserving history for audit.
func (r *PostgreSQLAppointmentRepository) Cancel(
	ctx context.Context,
	tenantID, id uuid.UUID,
	reason *string,
	updatedBy uuid.UUID,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE appointments
			  SET status = $1, cancel_reason = $2, updated_by = $3, updated_at = NOW()
			  WHERE tenant_id = $4 AND id = $5`

	result, err := querier.ExecContext(ctx, query,
		domain.AppointmentStatusCancelled, reason, updatedBy, tenantID, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to cancel appointment")
	}

	return requireOneRow(result)
}

// ListByClinician returns a clinician's appointments within a time window,
// newest first, with offset/limit pagination.
func (r *PostgreSQLAppointmentRepository) ListByClinician(
	ctx context.Context,
	tenantID, clinicianID uuid.UUID,
	window domain.Interval,
	offset, limit int,
) ([]*domain.Appointment, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + appointmentColumns + `
			  FROM appointments
			  WHERE tenant_id = $1 AND clinician_id = $2
			    AND starts_at < $3 AND ends_at > $4
			  ORDER BY starts_at DESC
			  OFFSET $5 LIMIT $6`

	rows, err := querier.QueryContext(ctx, query,
		tenantID, clinicianID, window.EndsAt, window.StartsAt, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list appointments")
	}
	defer rows.Close() //nolint:errcheck

	var appointments []*domain.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate appointments")
	}

	return appointments, nil
}

// getOne runs a single-row appointment query and maps sql.ErrNoRows to the
// domain not-found error.
func (r *PostgreSQLAppointmentRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*domain.Appointment, error) {
	querier := database.GetTx(ctx, r.db)

	var appointment domain.Appointment
	err := querier.QueryRowContext(ctx, query, args...).Scan(
		&appointment.ID, &appointment.TenantID, &appointment.ClinicianID, &appointment.PatientID,
		&appointment.StartsAt, &appointment.EndsAt, &appointment.Status, &appointment.CancelReason,
		&appointment.CreatedBy, &appointment.UpdatedBy, &appointment.CreatedAt, &appointment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAppointmentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get appointment")
	}

	return &appointment, nil
}

// scanAppointment scans one appointment row from a multi-row result set.
func scanAppointment(rows *sql.Rows) (*domain.Appointment, error) {
	var appointment domain.Appointment
	err := rows.Scan(
		&appointment.ID, &appointment.TenantID, &appointment.ClinicianID, &appointment.PatientID,
		&appointment.StartsAt, &appointment.EndsAt, &appointment.Status, &appointment.CancelReason,
		&appointment.CreatedBy, &appointment.UpdatedBy, &appointment.CreatedAt, &appointment.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan appointment")
	}
	return &appointment, nil
}

// requireOneRow maps a zero-row update to the domain not-found error.
func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return domain.ErrAppointmentNotFound
	}
	return nil
}
