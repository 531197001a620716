package pathpattern

import (
	"errors"
	"fmt"
)

// ParamError reports a path that could not be generated from a pattern.
// Callers decide whether an empty path is acceptable.
type ParamError struct {
	Pattern string
	Key     string
	Reason  string
}

func (e *ParamError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("fill %q: %s", e.Pattern, e.Reason)
	}
	return fmt.Sprintf("fill %q: param %q %s", e.Pattern, e.Key, e.Reason)
}

// IsParamError reports whether err is, or wraps, a *ParamError.
func IsParamError(err error) bool {
	var pe *ParamError
	return errors.As(err, &pe)
}
