// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shipstream/api/pkg/domain/shipment"
	"github.com/shipstream/api/pkg/domain/webhook"
)

// trackingNumberRegex accepts the tracking number alphabets used by the
// supported carriers: uppercase letters, digits, and hyphens.
var trackingNumberRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{4,38}[A-Z0-9]$`)

// carrierRegex validates carrier codes: lowercase letters, numbers, hyphens.
var carrierRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("carrier", validateCarrier)
	_ = v.RegisterValidation("tracking_number", validateTrackingNumber)
	_ = v.RegisterValidation("shipment_status", validateShipmentStatus)
	_ = v.RegisterValidation("webhook_event", validateWebhookEvent)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validateCarrier validates that a string is a valid carrier code.
func validateCarrier(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return carrierRegex.MatchString(value)
}

// validateTrackingNumber validates the tracking number shape.
func validateTrackingNumber(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return trackingNumberRegex.MatchString(value)
}

// validateShipmentStatus validates that a string is a valid shipment Status.
func validateShipmentStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return shipment.Status(strings.ToUpper(value)).IsValid()
}

// validateWebhookEvent validates that a string is a known webhook event type.
func validateWebhookEvent(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return webhook.EventType(value).IsKnown()
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "url":
		return "must be a valid URL"
	case "carrier":
		return "must be a valid carrier code (lowercase letters, numbers, hyphens)"
	case "tracking_number":
		return "must be a valid tracking number"
	case "shipment_status":
		return fmt.Sprintf("must be one of: %s", formatShipmentStatuses())
	case "webhook_event":
		return "must be a known webhook event type"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

// formatShipmentStatuses returns a comma-separated list of valid statuses.
func formatShipmentStatuses() string {
	statuses := shipment.AllStatuses()
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	return strings.Join(strs, ", ")
}
