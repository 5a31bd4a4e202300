// Package errors provides the structured error type shared by every imgprep
// package.
//
// An AppError carries a machine-readable code, a human-readable message,
// optional details (stage names, paths, fields) and an underlying cause.
// Callers branch on the code with HasCode rather than on message text.
//
//	if errors.HasCode(err, errors.ErrCodeConfiguration) { ... }
package errors
