// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	schedulingDomain "github.com/careops/scheduling/internal/scheduling/domain"
)

// AppointmentResponse represents an appointment in API responses.
type AppointmentResponse struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	ClinicianID  string    `json:"clinician_id"`
	PatientID    string    `json:"patient_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	Status       string    `json:"status"`
	CancelReason *string   `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MapAppointmentToResponse converts a domain appointment to an API response.
func MapAppointmentToResponse(appointment *schedulingDomain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           appointment.ID.String(),
		TenantID:     appointment.TenantID.String(),
		ClinicianID:  appointment.ClinicianID.String(),
		PatientID:    appointment.PatientID.String(),
		StartsAt:     appointment.StartsAt,
		EndsAt:       appointment.EndsAt,
		Status:       string(appointment.Status),
		CancelReason: appointment.CancelReason,
		CreatedAt:    appointment.CreatedAt,
		UpdatedAt:    appointment.UpdatedAt,
	}
}

// ListAppointmentsResponse represents a paginated list of appointments in API responses.
type ListAppointmentsResponse struct {
	Data []AppointmentResponse `json:"data"`
}

// MapAppointmentsToListResponse converts a slice of domain appointments to a list response.
func MapAppointmentsToListResponse(appointments []*schedulingDomain.Appointment) ListAppointmentsResponse {
	data := make([]AppointmentResponse, 0, len(appointments))
	for _, appointment := range appointments {
		data = append(data, MapAppointmentToResponse(appointment))
	}

	return ListAppointmentsResponse{
		Data: data,
	}
}
