// Package usecase implements the scheduling business logic and orchestrates
// the resource lock, conflict check, appointment mutation and outbox write as
// one atomic unit.
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/database"
	"github.com/careops/scheduling/internal/metrics"
	outboxDomain "github.com/careops/scheduling/internal/outbox/domain"
	"github.com/careops/scheduling/internal/scheduling/domain"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// CreateAppointmentInput contains the input data for booking an appointment.
type CreateAppointmentInput struct {
	TenantID    uuid.UUID
	ClinicianID uuid.UUID
	PatientID   uuid.UUID
	StartsAt    time.Time
	EndsAt      time.Time
	ActorID     uuid.UUID
}

// RescheduleAppointmentInput contains the input data for moving an appointment.
type RescheduleAppointmentInput struct {
	TenantID      uuid.UUID
	AppointmentID uuid.UUID
	StartsAt      time.Time
	EndsAt        time.Time
	ActorID       uuid.UUID
}

// CancelAppointmentInput contains the input data for cancelling an appointment.
type CancelAppointmentInput struct {
	TenantID      uuid.UUID
	AppointmentID uuid.UUID
	Reason        *string
	ActorID       uuid.UUID
}

// UseCase defines the interface for scheduling business logic operations.
type UseCase interface {
	Create(ctx context.Context, input CreateAppointmentInput) (*domain.Appointment, error)
	Reschedule(ctx context.Context, input RescheduleAppointmentInput) (*domain.Appointment, error)
	Cancel(ctx context.Context, input CancelAppointmentInput) (*domain.Appointment, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Appointment, error)
	ListByClinician(
		ctx context.Context,
		tenantID, clinicianID uuid.UUID,
		window domain.Interval,
		offset, limit int,
	) ([]*domain.Appointment, error)
}

// AppointmentRepository defines appointment repository operations.
type AppointmentRepository interface {
	LockClinician(ctx context.Context, tenantID, clinicianID uuid.UUID) error
	FindConflicts(
		ctx context.Context,
		tenantID, clinicianID uuid.UUID,
		interval domain.Interval,
		excludeID *uuid.UUID,
	) ([]uuid.UUID, error)
	Create(ctx context.Context, appointment *domain.Appointment) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Appointment, error)
	GetByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*domain.Appointment, error)
	UpdateInterval(
		ctx context.Context,
		tenantID, id uuid.UUID,
		interval domain.Interval,
		updatedBy uuid.UUID,
	) error
	Cancel(ctx context.Context, tenantID, id uuid.UUID, reason *string, updatedBy uuid.UUID) error
	ListByClinician(
		ctx context.Context,
		tenantID, clinicianID uuid.UUID,
		window domain.Interval,
		offset, limit int,
	) ([]*domain.Appointment, error)
}

// OutboxEventRepository defines the outbox operations the scheduler needs.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

// SchedulingUseCase handles appointment booking business logic.
type SchedulingUseCase struct {
	txManager       database.TxManager
	appointmentRepo AppointmentRepository
	outboxRepo      OutboxEventRepository
	businessMetrics metrics.BusinessMetrics
}

// NewSchedulingUseCase creates a new SchedulingUseCase.
func NewSchedulingUseCase(
	txManager database.TxManager,
	appointmentRepo AppointmentRepository,
	outboxRepo OutboxEventRepository,
	businessMetrics metrics.BusinessMetrics,
) *SchedulingUseCase {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &SchedulingUseCase{
		txManager:       txManager,
		appointmentRepo: appointmentRepo,
		outboxRepo:      outboxRepo,
		businessMetrics: businessMetrics,
	}
}

// Create books a new appointment. Inside one transaction it acquires the
// clinician resource lock, checks for interval conflicts, inserts the
// appointment and enqueues the appointment.created event. Any failure before
// commit leaves no trace. The loser of a lock race sees the winner's row and
// is rejected with a ConflictError listing the colliding reservation ids.
func (uc *SchedulingUseCase) Create(
	ctx context.Context,
	input CreateAppointmentInput,
) (*domain.Appointment, error) {
	start := time.Now()

	interval := domain.Interval{StartsAt: input.StartsAt, EndsAt: input.EndsAt}
	if err := validateIDs(input.TenantID, input.ClinicianID, input.PatientID); err != nil {
		return nil, err
	}
	if !interval.Valid() {
		return nil, domain.ErrInvalidInterval
	}

	appointment := &domain.Appointment{
		ID:          uuid.Must(uuid.NewV7()),
		TenantID:    input.TenantID,
		ClinicianID: input.ClinicianID,
		PatientID:   input.PatientID,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		Status:      domain.AppointmentStatusScheduled,
		CreatedBy:   input.ActorID,
		UpdatedBy:   input.ActorID,
	}

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := uc.appointmentRepo.LockClinician(ctx, input.TenantID, input.ClinicianID); err != nil {
			return err
		}

		conflicts, err := uc.appointmentRepo.FindConflicts(
			ctx, input.TenantID, input.ClinicianID, interval, nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return apperrors.NewConflictError(conflicts)
		}

		if err := uc.appointmentRepo.Create(ctx, appointment); err != nil {
			return err
		}

		payload := domain.AppointmentCreatedPayload{
			SchemaVersion: domain.EventSchemaVersion,
			AppointmentID: appointment.ID,
			TenantID:      appointment.TenantID,
			ClinicianID:   appointment.ClinicianID,
			PatientID:     appointment.PatientID,
			Interval:      snapshot(interval),
			CreatedBy:     input.ActorID,
		}

		return uc.enqueueEvent(ctx, appointment, domain.EventAppointmentCreated, payload)
	})

	uc.recordOutcome(ctx, "create", start, err)
	if err != nil {
		return nil, err
	}

	return appointment, nil
}

// Reschedule moves an appointment to a new interval. The appointment row is
// fetched-and-locked first, then the clinician lock and conflict check run
// exactly as for create, excluding the appointment itself from the overlap
// scan. The appointment.rescheduled event carries both the old and the new
// interval.
func (uc *SchedulingUseCase) Reschedule(
	ctx context.Context,
	input RescheduleAppointmentInput,
) (*domain.Appointment, error) {
	start := time.Now()

	newInterval := domain.Interval{StartsAt: input.StartsAt, EndsAt: input.EndsAt}
	if err := validateIDs(input.TenantID, input.AppointmentID); err != nil {
		return nil, err
	}
	if !newInterval.Valid() {
		return nil, domain.ErrInvalidInterval
	}

	var updated *domain.Appointment

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		appointment, err := uc.appointmentRepo.GetByIDForUpdate(ctx, input.TenantID, input.AppointmentID)
		if err != nil {
			return err
		}
		if appointment.Cancelled() {
			return domain.ErrAppointmentNotFound
		}

		if err := uc.appointmentRepo.LockClinician(ctx, input.TenantID, appointment.ClinicianID); err != nil {
			return err
		}

		conflicts, err := uc.appointmentRepo.FindConflicts(
			ctx, input.TenantID, appointment.ClinicianID, newInterval, &appointment.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return apperrors.NewConflictError(conflicts)
		}

		before := appointment.Interval()
		if err := uc.appointmentRepo.UpdateInterval(
			ctx, input.TenantID, appointment.ID, newInterval, input.ActorID); err != nil {
			return err
		}

		payload := domain.AppointmentRescheduledPayload{
			SchemaVersion: domain.EventSchemaVersion,
			AppointmentID: appointment.ID,
			TenantID:      appointment.TenantID,
			ClinicianID:   appointment.ClinicianID,
			PatientID:     appointment.PatientID,
			Before:        snapshot(before),
			After:         snapshot(newInterval),
			UpdatedBy:     input.ActorID,
		}

		if err := uc.enqueueEvent(ctx, appointment, domain.EventAppointmentRescheduled, payload); err != nil {
			return err
		}

		moved := *appointment
		moved.StartsAt = newInterval.StartsAt
		moved.EndsAt = newInterval.EndsAt
		moved.UpdatedBy = input.ActorID
		updated = &moved
		return nil
	})

	uc.recordOutcome(ctx, "reschedule", start, err)
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Cancel flips an appointment to cancelled and enqueues the
// appointment.cancelled event. Cancelling an already-cancelled appointment is
// a no-op success: the current row is returned and no event is written.
func (uc *SchedulingUseCase) Cancel(
	ctx context.Context,
	input CancelAppointmentInput,
) (*domain.Appointment, error) {
	start := time.Now()

	if err := validateIDs(input.TenantID, input.AppointmentID); err != nil {
		return nil, err
	}

	var cancelled *domain.Appointment

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		appointment, err := uc.appointmentRepo.GetByIDForUpdate(ctx, input.TenantID, input.AppointmentID)
		if err != nil {
			return err
		}
		if appointment.Cancelled() {
			cancelled = appointment
			return nil
		}

		if err := uc.appointmentRepo.Cancel(
			ctx, input.TenantID, appointment.ID, input.Reason, input.ActorID); err != nil {
			return err
		}

		payload := domain.AppointmentCancelledPayload{
			SchemaVersion: domain.EventSchemaVersion,
			AppointmentID: appointment.ID,
			TenantID:      appointment.TenantID,
			ClinicianID:   appointment.ClinicianID,
			PatientID:     appointment.PatientID,
			Interval:      snapshot(appointment.Interval()),
			Reason:        input.Reason,
			CancelledBy:   input.ActorID,
		}

		if err := uc.enqueueEvent(ctx, appointment, domain.EventAppointmentCancelled, payload); err != nil {
			return err
		}

		done := *appointment
		done.Status = domain.AppointmentStatusCancelled
		done.CancelReason = input.Reason
		done.UpdatedBy = input.ActorID
		cancelled = &done
		return nil
	})

	uc.recordOutcome(ctx, "cancel", start, err)
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

// GetByID retrieves an appointment by id.
func (uc *SchedulingUseCase) GetByID(
	ctx context.Context,
	tenantID, id uuid.UUID,
) (*domain.Appointment, error) {
	return uc.appointmentRepo.GetByID(ctx, tenantID, id)
}

// ListByClinician returns a clinician's appointments within a time window.
func (uc *SchedulingUseCase) ListByClinician(
	ctx context.Context,
	tenantID, clinicianID uuid.UUID,
	window domain.Interval,
	offset, limit int,
) ([]*domain.Appointment, error) {
	if !window.Valid() {
		return nil, domain.ErrInvalidInterval
	}
	return uc.appointmentRepo.ListByClinician(ctx, tenantID, clinicianID, window, offset, limit)
}

// enqueueEvent writes an outbox event on the current transaction.
func (uc *SchedulingUseCase) enqueueEvent(
	ctx context.Context,
	appointment *domain.Appointment,
	eventType string,
	payload any,
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal event payload")
	}

	event := &outboxDomain.OutboxEvent{
		ID:            uuid.Must(uuid.NewV7()),
		TenantID:      appointment.TenantID,
		AggregateType: outboxDomain.AggregateTypeAppointment,
		AggregateID:   appointment.ID,
		EventType:     eventType,
		Payload:       string(payloadJSON),
		Status:        outboxDomain.OutboxEventStatusPending,
	}

	if err := uc.outboxRepo.Create(ctx, event); err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// recordOutcome reports the operation's outcome and duration to the business metrics.
func (uc *SchedulingUseCase) recordOutcome(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrConflict):
		status = "conflict"
	case apperrors.Is(err, apperrors.ErrNotFound):
		status = "not_found"
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		status = "invalid"
	default:
		status = "error"
	}

	uc.businessMetrics.RecordOperation(ctx, "scheduling", operation, status)
	uc.businessMetrics.RecordDuration(ctx, "scheduling", operation, time.Since(start), status)
}

// validateIDs rejects nil uuids.
func validateIDs(ids ...uuid.UUID) error {
	for _, id := range ids {
		if id == uuid.Nil {
			return apperrors.Wrap(apperrors.ErrInvalidInput, "missing required identifier")
		}
	}
	return nil
}

// snapshot converts an interval to its event payload form.
func snapshot(i domain.Interval) domain.IntervalSnapshot {
	return domain.IntervalSnapshot{StartsAt: i.StartsAt, EndsAt: i.EndsAt}
}
