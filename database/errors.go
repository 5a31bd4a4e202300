package database

import (
	stderrors "errors"
	"strings"

	"gorm.io/gorm"

	"github.com/kbukum/imgprep/errors"
)

// IsConnectionError reports whether err looks like a lost or refused
// connection.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"driver: bad connection",
		"database is locked",
		"unable to open database file",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// FromDatabase converts a GORM error into an AppError. A missing record is
// NOT_FOUND, a duplicate key INVALID_INPUT, and anything else IO.
func FromDatabase(err error, resource string) *errors.AppError {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound(resource, "").WithCause(err)
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return errors.InvalidInput(resource, "already exists").WithCause(err)
	default:
		return errors.IO("query", resource, err).WithDetail("connection", IsConnectionError(err))
	}
}
