package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every domain error wraps exactly one of them so callers can
// decide how to present a failure without enumerating sentinels.
var (
	// ErrValidation marks a local precondition failure. No write was attempted.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks a failure caused by another actor's concurrent write.
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
)

// Validation errors.
var (
	ErrInvalidID                = fmt.Errorf("%w: invalid ID format", ErrValidation)
	ErrInvalidTaskStatus        = fmt.Errorf("%w: invalid task status", ErrValidation)
	ErrInvalidDate              = fmt.Errorf("%w: invalid date, expected YYYY-MM-DD", ErrValidation)
	ErrDateRequired             = fmt.Errorf("%w: date is required", ErrValidation)
	ErrRoomRequired             = fmt.Errorf("%w: room is required", ErrValidation)
	ErrStaffRequired            = fmt.Errorf("%w: staff member is required", ErrValidation)
	ErrEmptyUpdateMask          = fmt.Errorf("%w: update mask cannot be empty", ErrValidation)
	ErrUnknownField             = fmt.Errorf("%w: unknown field in update mask", ErrValidation)
	ErrStatusRequired           = fmt.Errorf("%w: status cannot be cleared", ErrValidation)
	ErrAnotherTaskActive        = fmt.Errorf("%w: another task is already in progress", ErrValidation)
	ErrNotActiveTask            = fmt.Errorf("%w: task is not the active task", ErrValidation)
	ErrInvalidTransition        = fmt.Errorf("%w: action not allowed in current status", ErrValidation)
	ErrTaskNotAssigned          = fmt.Errorf("%w: task is assigned to another staff member", ErrValidation)
	ErrIssueDescriptionRequired = fmt.Errorf("%w: issue description is required", ErrValidation)
	ErrActionPending            = fmt.Errorf("%w: another action on this task is still pending", ErrValidation)
)

// Conflict errors.
var (
	// ErrRoomConflict is returned when the room already has an open task on the date.
	ErrRoomConflict = fmt.Errorf("%w: room already has an open task on this date", ErrConflict)

	// ErrStaleTask is returned when a conditional update found the task in a different status
	// than the one the transition was computed from.
	ErrStaleTask = fmt.Errorf("%w: task was changed by another session", ErrConflict)

	// ErrActiveTaskConflict is returned when the store rejected a second in-progress task for a staff member.
	ErrActiveTaskConflict = fmt.Errorf("%w: staff member already has a task in progress", ErrConflict)
)

// Not found errors.
var (
	ErrTaskNotFound  = fmt.Errorf("%w: task", ErrNotFound)
	ErrRoomNotFound  = fmt.Errorf("%w: room", ErrNotFound)
	ErrStaffNotFound = fmt.Errorf("%w: staff member", ErrNotFound)
)

// ErrPhotoUpload indicates the issue photo could not be stored. The issue report was not written.
var ErrPhotoUpload = errors.New("photo upload failed")

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict reports whether err was caused by a concurrent write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
