package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/imgprep/errors"
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns an AppError if there are validation errors, nil otherwise.
func (v *Validator) Validate() error {
	if !v.HasErrors() {
		return nil
	}

	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}

	return errors.Validation(strings.Join(messages, "; ")).
		WithDetail("fields", v.errors)
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// NotEmpty checks that a collection has at least one item.
func (v *Validator) NotEmpty(field string, n int) *Validator {
	if n == 0 {
		v.AddError(field, "must not be empty")
	}
	return v
}

// Positive checks that an integer is strictly greater than zero.
func (v *Validator) Positive(field string, value int) *Validator {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("must be positive (got %d)", value))
	}
	return v
}

// Finite checks that a float is neither NaN nor infinite.
func (v *Validator) Finite(field string, value float64) *Validator {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		v.AddError(field, "must be a finite number")
	}
	return v
}

// WholeNumber checks that value is an integer within tolerance.
func (v *Validator) WholeNumber(field string, value, tolerance float64) *Validator {
	if math.Abs(value-math.Round(value)) > tolerance {
		v.AddError(field, fmt.Sprintf("must be a whole number (got %g)", value))
	}
	return v
}

// Range checks if a number is within a range.
func (v *Validator) Range(field string, value, minVal, maxVal int) *Validator {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("must be between %d and %d", minVal, maxVal))
	}
	return v
}

// OneOf checks if a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// UUID checks that a non-empty value parses as a UUID.
func (v *Validator) UUID(field, value string) *Validator {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		v.AddError(field, "is required")
		return v
	}
	if _, err := uuid.Parse(trimmed); err != nil {
		v.AddError(field, "must be a UUID")
	}
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}

// UUID validates a single id field.
func UUID(field, value string) error {
	return New().UUID(field, value).Validate()
}

// Required validates a single required field and returns an error if empty.
func Required(field, value string) error {
	return New().Required(field, value).Validate()
}
