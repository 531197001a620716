package router

import (
	"errors"
	"fmt"

	"github.com/corleone113/waypoint/internal/route"
)

// NavigationError reports a navigation that did not commit.
//
// Navigation failures are expected outcomes, not faults: they are
// returned to the caller of Push/Replace and reported to observers, but
// never routed to OnError callbacks.
type NavigationError struct {
	// Code identifies the failure kind.
	Code NavigationErrorCode

	// From is the route that was current when the navigation started.
	From *route.Route

	// To is the route the navigation was heading for.
	To *route.Route

	// Message is a human-readable description.
	Message string
}

// NavigationErrorCode categorizes navigation failures.
type NavigationErrorCode string

const (
	// ErrCodeDuplicated indicates the target is the current route.
	ErrCodeDuplicated NavigationErrorCode = "DUPLICATED"

	// ErrCodeAborted indicates a guard or prompt rejected the navigation.
	ErrCodeAborted NavigationErrorCode = "ABORTED"

	// ErrCodeCancelled indicates a newer navigation superseded this one.
	ErrCodeCancelled NavigationErrorCode = "CANCELLED"

	// ErrCodeRedirected indicates a guard sent the navigation elsewhere.
	ErrCodeRedirected NavigationErrorCode = "REDIRECTED"
)

// Error implements the error interface.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func fullPath(r *route.Route) string {
	if r == nil {
		return ""
	}
	return r.FullPath
}

// NewDuplicatedError reports a navigation to the current location.
func NewDuplicatedError(from, to *route.Route) *NavigationError {
	return &NavigationError{
		Code:    ErrCodeDuplicated,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("avoided redundant navigation to current location %q", fullPath(to)),
	}
}

// NewAbortedError reports a navigation stopped by a guard or prompt.
func NewAbortedError(from, to *route.Route, reason string) *NavigationError {
	return &NavigationError{
		Code:    ErrCodeAborted,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("navigation from %q to %q aborted: %s", fullPath(from), fullPath(to), reason),
	}
}

// NewCancelledError reports a navigation superseded by a newer one.
func NewCancelledError(from, to *route.Route) *NavigationError {
	return &NavigationError{
		Code:    ErrCodeCancelled,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("navigation cancelled from %q to %q with a new navigation", fullPath(from), fullPath(to)),
	}
}

// NewRedirectedError reports a navigation abandoned for a guard redirect.
func NewRedirectedError(from, to *route.Route) *NavigationError {
	return &NavigationError{
		Code:    ErrCodeRedirected,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("redirected when going from %q to %q via a navigation guard", fullPath(from), fullPath(to)),
	}
}

// IsNavigationFailure reports whether err is a NavigationError. With codes
// given, the error must also carry one of them.
func IsNavigationFailure(err error, codes ...NavigationErrorCode) bool {
	var ne *NavigationError
	if !errors.As(err, &ne) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if ne.Code == c {
			return true
		}
	}
	return false
}

// IsDuplicated returns true if err is a duplicated-navigation failure.
func IsDuplicated(err error) bool {
	return IsNavigationFailure(err, ErrCodeDuplicated)
}

// IsAborted returns true if err is an aborted-navigation failure.
func IsAborted(err error) bool {
	return IsNavigationFailure(err, ErrCodeAborted)
}

// IsCancelled returns true if err is a cancelled-navigation failure.
func IsCancelled(err error) bool {
	return IsNavigationFailure(err, ErrCodeCancelled)
}

// IsRedirected returns true if err is a redirected-navigation failure.
func IsRedirected(err error) bool {
	return IsNavigationFailure(err, ErrCodeRedirected)
}

// GuardPanicError wraps a value recovered from a panicking guard.
type GuardPanicError struct {
	Guard string
	Value any
}

func (e *GuardPanicError) Error() string {
	return fmt.Sprintf("guard %s panicked: %v", e.Guard, e.Value)
}
