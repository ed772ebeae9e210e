// Package domain defines the core scheduling domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/errors"
)

// AppointmentStatus represents the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment represents one reservation of a clinician for a patient over a
// half-open interval [StartsAt, EndsAt). Appointments are never physically
// deleted: cancellation is a status change, preserving history for audit.
type Appointment struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	ClinicianID  uuid.UUID
	PatientID    uuid.UUID
	StartsAt     time.Time
	EndsAt       time.Time
	Status       AppointmentStatus
	CancelReason *string
	CreatedBy    uuid.UUID
	UpdatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Interval returns the appointment's reservation interval.
func (a *Appointment) Interval() Interval {
	return Interval{StartsAt: a.StartsAt, EndsAt: a.EndsAt}
}

// Cancelled reports whether the appointment has been cancelled.
func (a *Appointment) Cancelled() bool {
	return a.Status == AppointmentStatusCancelled
}

// Domain-specific errors for scheduling operations.
var (
	// ErrAppointmentNotFound indicates the referenced appointment does not exist.
	ErrAppointmentNotFound = errors.Wrap(errors.ErrNotFound, "appointment not found")

	// ErrInvalidInterval indicates a malformed interval (start >= end or unset endpoints).
	ErrInvalidInterval = errors.Wrap(errors.ErrInvalidInput, "invalid interval")
)
