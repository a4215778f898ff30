package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
)

const (
	sqlStateCheckViolation       = "23514"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// IsCheckViolation reports whether a CHECK constraint rejected the write.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	if pkgerrors.SQLState(err) == sqlStateCheckViolation {
		return true
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}

// IsContention reports whether err is a transient lock or serialization failure that
// is safe to retry with a fresh transaction.
func IsContention(err error) bool {
	if err == nil {
		return false
	}
	switch pkgerrors.SQLState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}
