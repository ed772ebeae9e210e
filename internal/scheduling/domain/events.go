package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted through the outbox for appointment mutations.
const (
	EventAppointmentCreated     = "appointment.created"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventAppointmentCancelled   = "appointment.cancelled"
)

// EventSchemaVersion versions the event payloads. Consumers treat payloads as
// opaque JSON keyed by event type and schema version.
const EventSchemaVersion = 1

// IntervalSnapshot is the wire form of an interval inside event payloads.
type IntervalSnapshot struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// AppointmentCreatedPayload is the payload of an appointment.created event.
type AppointmentCreatedPayload struct {
	SchemaVersion int              `json:"schema_version"`
	AppointmentID uuid.UUID        `json:"appointment_id"`
	TenantID      uuid.UUID        `json:"tenant_id"`
	ClinicianID   uuid.UUID        `json:"clinician_id"`
	PatientID     uuid.UUID        `json:"patient_id"`
	Interval      IntervalSnapshot `json:"interval"`
	CreatedBy     uuid.UUID        `json:"created_by"`
}

// AppointmentRescheduledPayload is the payload of an appointment.rescheduled
// event, carrying the interval before and after the move.
type AppointmentRescheduledPayload struct {
	SchemaVersion int              `json:"schema_version"`
	AppointmentID uuid.UUID        `json:"appointment_id"`
	TenantID      uuid.UUID        `json:"tenant_id"`
	ClinicianID   uuid.UUID        `json:"clinician_id"`
	PatientID     uuid.UUID        `json:"patient_id"`
	Before        IntervalSnapshot `json:"before"`
	After         IntervalSnapshot `json:"after"`
	UpdatedBy     uuid.UUID        `json:"updated_by"`
}

// AppointmentCancelledPayload is the payload of an appointment.cancelled event.
type AppointmentCancelledPayload struct {
	SchemaVersion int              `json:"schema_version"`
	AppointmentID uuid.UUID        `json:"appointment_id"`
	TenantID      uuid.UUID        `json:"tenant_id"`
	ClinicianID   uuid.UUID        `json:"clinician_id"`
	PatientID     uuid.UUID        `json:"patient_id"`
	Interval      IntervalSnapshot `json:"interval"`
	Reason        *string          `json:"reason,omitempty"`
	CancelledBy   uuid.UUID        `json:"cancelled_by"`
}
