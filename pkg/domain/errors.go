package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for an unknown node id or a project path that is not open.
var ErrNotFound = errors.New("not found")

// ErrInvalidOperation is returned when an operation would break a tree or project invariant,
// e.g. deleting the root or closing a dirty project without force.
var ErrInvalidOperation = errors.New("invalid operation")

// ErrDuplicateOpen is informational: the path is already open and the existing
// project was returned unchanged.
var ErrDuplicateOpen = errors.New("project already open")

// ErrParse is returned when a project file is structurally invalid.
var ErrParse = errors.New("parse error")

// ErrIO is returned for filesystem failures, including a failed atomic rename.
var ErrIO = errors.New("io error")

// ErrScript is reported to the output sink when a script fails.
var ErrScript = errors.New("script error")

// ErrTimedOut is reported to the output sink when a script exceeds its time limit.
var ErrTimedOut = errors.New("script timed out")

// ErrSaveInFlight is returned when a project is being saved in the background.
// It is retryable once the save has been finished.
var ErrSaveInFlight = errors.New("save in flight")

// ErrScriptDisabled is returned by evaluators that refuse to execute content.
var ErrScriptDisabled = errors.New("script execution disabled")

// Errorf wraps kind with a formatted message, keeping kind matchable with errors.Is.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether err is a transient condition the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSaveInFlight)
}
