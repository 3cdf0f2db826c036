// Package apperrors holds the sentinel errors shared by the tracker packages.
package apperrors

import "errors"

var (
	ErrSensorPermissionDenied = errors.New("sensor permission denied")
	ErrSensorUnavailable      = errors.New("sensor unavailable")
	ErrPersistenceWriteFailed = errors.New("persistence write failed")
	// ErrPersistenceReadFailed is treated as "no prior state" by callers.
	ErrPersistenceReadFailed = errors.New("persistence read failed")
	ErrInvalidGoalValue      = errors.New("invalid goal value")
	ErrInvalidFormInput      = errors.New("invalid form input")

	ErrActivityTypeLocked = errors.New("activity type is locked once the session has elapsed time")
	ErrNothingToFinish    = errors.New("session has no elapsed time to finish")
	ErrSessionClosed      = errors.New("session closed")
)
