package route

import (
	"context"

	"github.com/corleone113/waypoint/internal/location"
)

// Guard inspects a pending navigation and decides its fate. A guard may
// block; ctx is cancelled once a newer navigation supersedes this one.
type Guard func(ctx context.Context, to, from *Route) Decision

// Verdict is the kind of a Decision.
type Verdict int

const (
	// Proceed lets the navigation continue.
	Proceed Verdict = iota
	// Reject aborts the navigation and restores the previous URL.
	Reject
	// Reroute abandons the navigation in favour of Decision.To.
	Reroute
	// Failure aborts the navigation with Decision.Err.
	Failure
)

func (v Verdict) String() string {
	switch v {
	case Proceed:
		return "proceed"
	case Reject:
		return "abort"
	case Reroute:
		return "redirect"
	case Failure:
		return "error"
	}
	return "unknown"
}

// Decision is the value a guard hands back.
type Decision struct {
	Verdict Verdict
	To      location.Location
	Err     error
	// Callback is only honoured from enter guards. It receives the view
	// instance once the navigation committed and the view exists.
	Callback func(instance any)
}

// Next lets the navigation continue.
func Next() Decision {
	return Decision{Verdict: Proceed}
}

// NextWithCallback continues and registers cb to run with the view
// instance created for the entered record.
func NextWithCallback(cb func(instance any)) Decision {
	return Decision{Verdict: Proceed, Callback: cb}
}

// Abort stops the navigation.
func Abort() Decision {
	return Decision{Verdict: Reject}
}

// RedirectLocation abandons the navigation and starts a new one to to.
// Set to.Replace to replace rather than push.
func RedirectLocation(to location.Location) Decision {
	return Decision{Verdict: Reroute, To: to}
}

// RedirectPath is RedirectLocation for a string target.
func RedirectPath(path string) Decision {
	return RedirectLocation(location.From(path))
}

// Fail aborts the navigation with err.
func Fail(err error) Decision {
	return Decision{Verdict: Failure, Err: err}
}
