// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/careops/scheduling/internal/validation"
)

// CreateAppointmentRequest contains the parameters for booking an appointment.
type CreateAppointmentRequest struct {
	ClinicianID string    `json:"clinician_id"`
	PatientID   string    `json:"patient_id"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	ActorID     string    `json:"actor_id"`
}

// Validate checks if the create appointment request is valid.
func (r *CreateAppointmentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ClinicianID, validation.Required, customValidation.UUID),
		validation.Field(&r.PatientID, validation.Required, customValidation.UUID),
		validation.Field(&r.StartsAt, customValidation.TimeNotZero),
		validation.Field(&r.EndsAt, customValidation.TimeNotZero),
		validation.Field(&r.ActorID, validation.Required, customValidation.UUID),
	)
}

// RescheduleAppointmentRequest contains the parameters for moving an appointment.
type RescheduleAppointmentRequest struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	ActorID  string    `json:"actor_id"`
}

// Validate checks if the reschedule appointment request is valid.
func (r *RescheduleAppointmentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.StartsAt, customValidation.TimeNotZero),
		validation.Field(&r.EndsAt, customValidation.TimeNotZero),
		validation.Field(&r.ActorID, validation.Required, customValidation.UUID),
	)
}

// CancelAppointmentRequest contains the parameters for cancelling an appointment.
type CancelAppointmentRequest struct {
	Reason  *string `json:"reason"`
	ActorID string  `json:"actor_id"`
}

// Validate checks if the cancel appointment request is valid.
func (r *CancelAppointmentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Length(1, 500)),
		validation.Field(&r.ActorID, validation.Required, customValidation.UUID),
	)
}
