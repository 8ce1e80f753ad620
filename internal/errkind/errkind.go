// Package errkind defines the error taxonomy shared by the selection and
// polling engines. Callers classify failures with errors.Is against the
// sentinels below; wrapped remote-client failures keep their original error
// in the chain.
package errkind

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates malformed filter parameters, invalid enum
	// values, unparseable date or regex patterns, or a filter kind applied
	// to an incompatible object category. Raised before any remote call.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingArgument indicates a required parameter for a filter or a
	// poll action is absent.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrPrecondition indicates the requested operation cannot proceed
	// given current cluster state (for example a field-stats aggregation
	// over a field that does not exist).
	ErrPrecondition = errors.New("action precondition failed")

	// ErrNoCandidates signals that filtering yielded zero objects. It is
	// distinct from a failure so callers can warn-and-continue or abort
	// per their own policy.
	ErrNoCandidates = errors.New("no candidates remain after filtering")

	// ErrTimeout indicates the completion poller exhausted its wall-clock
	// budget before the remote operation reached a terminal state.
	ErrTimeout = errors.New("wait timeout exceeded")
)

// Configf wraps ErrConfiguration with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Missingf wraps ErrMissingArgument with a formatted message.
func Missingf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMissingArgument, fmt.Sprintf(format, args...))
}

// Preconditionf wraps ErrPrecondition with a formatted message.
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// Timeoutf wraps ErrTimeout with a formatted message.
func Timeoutf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTimeout, fmt.Sprintf(format, args...))
}
