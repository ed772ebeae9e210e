// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error          string      `json:"error"`
	Message        string      `json:"message,omitempty"`
	ConflictingIDs []uuid.UUID `json:"conflicting_ids,omitempty"`
}

// HandleErrorGin maps domain errors to HTTP status codes and returns a JSON response.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	var statusCode int
	var errorResponse ErrorResponse

	var conflictErr *apperrors.ConflictError

	switch {
	case apperrors.As(err, &conflictErr):
		statusCode = http.StatusConflict
		errorResponse = ErrorResponse{
			Error:          "conflict",
			Message:        "The requested interval overlaps existing reservations",
			ConflictingIDs: conflictErr.ConflictingIDs,
		}

	case apperrors.Is(err, apperrors.ErrNotFound):
		statusCode = http.StatusNotFound
		errorResponse = ErrorResponse{
			Error:   "not_found",
			Message: "The requested resource was not found",
		}

	case apperrors.Is(err, apperrors.ErrInProgress):
		statusCode = http.StatusConflict
		errorResponse = ErrorResponse{
			Error:   "in_progress",
			Message: "A request with this idempotency key is still processing, retry later",
		}
		c.Header("Retry-After", "1")

	case apperrors.Is(err, apperrors.ErrConflict):
		statusCode = http.StatusConflict
		errorResponse = ErrorResponse{
			Error:   "conflict",
			Message: "A conflict occurred with existing data",
		}

	case apperrors.Is(err, apperrors.ErrInvalidInput):
		statusCode = http.StatusUnprocessableEntity
		errorResponse = ErrorResponse{
			Error:   "invalid_input",
			Message: err.Error(),
		}

	case apperrors.Is(err, apperrors.ErrTransient):
		statusCode = http.StatusServiceUnavailable
		errorResponse = ErrorResponse{
			Error:   "transient_failure",
			Message: "The operation could not be completed, it is safe to retry",
		}
		c.Header("Retry-After", "1")

	default:
		// For unknown/internal errors, don't expose details to the client
		statusCode = http.StatusInternalServerError
		errorResponse = ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		}
	}

	// Log the full error details (including wrapped errors)
	if logger != nil {
		logger.Error("request failed",
			slog.Int("status_code", statusCode),
			slog.String("error_code", errorResponse.Error),
			slog.Any("error", err),
		)
	}

	c.JSON(statusCode, errorResponse)
}

// HandleBadRequestGin writes a 400 Bad Request response for malformed JSON or parameters.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}

	errorResponse := ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	}

	c.JSON(http.StatusBadRequest, errorResponse)
}

// HandleValidationErrorGin writes a 422 Unprocessable Entity response for validation errors.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}

	errorResponse := ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	}

	c.JSON(http.StatusUnprocessableEntity, errorResponse)
}
