// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/google/uuid"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// UUID validates that a string is a parseable UUID
var UUID = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	validation.NewError("validation_uuid", "must be a valid UUID"),
)

// TimeNotZero validates that a time.Time value is set
var TimeNotZero = validation.By(func(value interface{}) error {
	t, ok := value.(time.Time)
	if !ok {
		return validation.NewError("validation_time_type", "must be a time value")
	}
	if t.IsZero() {
		return validation.NewError("validation_time_zero", "must be set")
	}
	return nil
})
