package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline construction and execution errors
const (
	// ErrCodeConfiguration indicates a stage was executed without a required
	// upstream, transformation or parameter set.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
	// ErrCodeValidation indicates invalid construction arguments.
	ErrCodeValidation ErrorCode = "VALIDATION"
	// ErrCodeTypeMismatch indicates a stage received upstream data of the wrong shape.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
	// ErrCodeUsage indicates an API call the stage does not support.
	ErrCodeUsage ErrorCode = "USAGE"
)

// Input errors
const (
	// ErrCodeInvalidInput indicates a single invalid argument or field.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// I/O and internal errors
const (
	// ErrCodeIO indicates a failure reading or writing files.
	ErrCodeIO ErrorCode = "IO"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var fatalCodes = map[ErrorCode]bool{
	ErrCodeConfiguration: true,
	ErrCodeValidation:    true,
	ErrCodeTypeMismatch:  true,
	ErrCodeUsage:         true,
}

// IsPipelineDefect returns true if the code describes a mistake in how the
// pipeline was assembled rather than a failure of the data it processed.
func IsPipelineDefect(code ErrorCode) bool {
	return fatalCodes[code]
}
