// Package validation provides input validation for stage parameters and
// configuration.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Both produce an
// errors.AppError with code VALIDATION and the offending fields in Details.
//
// # Struct Tag Validation
//
//	type ResizeParams struct {
//	    Width  int `validate:"gt=0"`
//	    Height int `validate:"gt=0"`
//	}
//	err := validation.Validate(params)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Positive("weights[0]", 7)
//	err := v.Validate()
package validation
