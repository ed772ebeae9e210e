// Package http provides HTTP handlers for appointment booking operations.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/httputil"
	"github.com/careops/scheduling/internal/scheduling/domain"
	"github.com/careops/scheduling/internal/scheduling/http/dto"
	schedulingUseCase "github.com/careops/scheduling/internal/scheduling/usecase"
	customValidation "github.com/careops/scheduling/internal/validation"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// AppointmentHandler handles HTTP requests for appointment booking operations.
type AppointmentHandler struct {
	schedulingUseCase schedulingUseCase.UseCase
	logger            *slog.Logger
}

// NewAppointmentHandler creates a new appointment handler.
func NewAppointmentHandler(
	schedulingUseCase schedulingUseCase.UseCase,
	logger *slog.Logger,
) *AppointmentHandler {
	return &AppointmentHandler{
		schedulingUseCase: schedulingUseCase,
		logger:            logger,
	}
}

// CreateHandler books a new appointment.
// POST /v1/appointments
// Returns 201 Created, or 409 Conflict with conflicting_ids when the interval
// overlaps an existing scheduled appointment for the clinician.
func (h *AppointmentHandler) CreateHandler(c *gin.Context) {
	tenantID, ok := tenantFromContext(c, h.logger)
	if !ok {
		return
	}

	var req dto.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := schedulingUseCase.CreateAppointmentInput{
		TenantID:    tenantID,
		ClinicianID: uuid.MustParse(req.ClinicianID),
		PatientID:   uuid.MustParse(req.PatientID),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		ActorID:     uuid.MustParse(req.ActorID),
	}

	appointment, err := h.schedulingUseCase.Create(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapAppointmentToResponse(appointment))
}

// RescheduleHandler moves an appointment to a new interval.
// POST /v1/appointments/:id/reschedule
// Returns 200 OK, 404 when the appointment is unknown or cancelled, or 409
// Conflict with conflicting_ids.
func (h *AppointmentHandler) RescheduleHandler(c *gin.Context) {
	tenantID, ok := tenantFromContext(c, h.logger)
	if !ok {
		return
	}

	appointmentID, ok := appointmentIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := schedulingUseCase.RescheduleAppointmentInput{
		TenantID:      tenantID,
		AppointmentID: appointmentID,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		ActorID:       uuid.MustParse(req.ActorID),
	}

	appointment, err := h.schedulingUseCase.Reschedule(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAppointmentToResponse(appointment))
}

// CancelHandler cancels an appointment.
// POST /v1/appointments/:id/cancel
// Returns 200 OK. Cancelling an already-cancelled appointment succeeds and
// returns the current row.
func (h *AppointmentHandler) CancelHandler(c *gin.Context) {
	tenantID, ok := tenantFromContext(c, h.logger)
	if !ok {
		return
	}

	appointmentID, ok := appointmentIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := schedulingUseCase.CancelAppointmentInput{
		TenantID:      tenantID,
		AppointmentID: appointmentID,
		Reason:        req.Reason,
		ActorID:       uuid.MustParse(req.ActorID),
	}

	appointment, err := h.schedulingUseCase.Cancel(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAppointmentToResponse(appointment))
}

// GetHandler retrieves an appointment by id.
// GET /v1/appointments/:id
func (h *AppointmentHandler) GetHandler(c *gin.Context) {
	tenantID, ok := tenantFromContext(c, h.logger)
	if !ok {
		return
	}

	appointmentID, ok := appointmentIDParam(c, h.logger)
	if !ok {
		return
	}

	appointment, err := h.schedulingUseCase.GetByID(c.Request.Context(), tenantID, appointmentID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAppointmentToResponse(appointment))
}

// ListHandler retrieves a clinician's appointments within a time window.
// GET /v1/appointments?clinician_id=&from=&to=&offset=0&limit=50
func (h *AppointmentHandler) ListHandler(c *gin.Context) {
	tenantID, ok := tenantFromContext(c, h.logger)
	if !ok {
		return
	}

	clinicianID, err := uuid.Parse(c.Query("clinician_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("clinician_id must be a valid UUID"),
			h.logger,
		)
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("from must be an RFC 3339 timestamp"),
			h.logger,
		)
		return
	}

	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("to must be an RFC 3339 timestamp"),
			h.logger,
		)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	window := domain.Interval{StartsAt: from, EndsAt: to}
	appointments, err := h.schedulingUseCase.ListByClinician(
		c.Request.Context(), tenantID, clinicianID, window, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAppointmentsToListResponse(appointments))
}

// tenantFromContext extracts the tenant id placed by the tenant middleware.
func tenantFromContext(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	tenantID, ok := httputil.GetTenantID(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(
			c,
			apperrors.Wrap(apperrors.ErrInvalidInput, "missing tenant"),
			logger,
		)
		return uuid.Nil, false
	}
	return tenantID, true
}

// appointmentIDParam parses the :id path parameter.
func appointmentIDParam(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("id must be a valid UUID"),
			logger,
		)
		return uuid.Nil, false
	}
	return appointmentID, true
}
