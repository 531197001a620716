package compiler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/route"
)

// Validation error codes (E100-E199)
const (
	ErrUnknownConfiguration  = "E100" // registry reported an unclassified error
	ErrDuplicateName         = "E101" // two routes share a name
	ErrDuplicateParam        = "E102" // a param repeats inside one path
	ErrAliasIsPath           = "E103" // alias equals the route's own path
	ErrUnmatchedAlias        = "E104" // alias cannot reach its route
	ErrInvalidRedirect       = "E105" // redirect sets zero or several targets
	ErrInvalidPattern        = "E106" // path does not compile
	ErrUnknownRedirectTarget = "E107" // redirect points at nothing
)

const (
	errFieldRedirect = "redirect"
	errFieldAlias    = "alias"
	errFieldName     = "name"
	errFieldPath     = "path"
)

var codeByConfigError = map[route.ConfigErrorCode]struct{ code, field string }{
	route.ErrCodeDuplicateName:   {ErrDuplicateName, errFieldName},
	route.ErrCodeDuplicateParam:  {ErrDuplicateParam, errFieldPath},
	route.ErrCodeAliasIsPath:     {ErrAliasIsPath, errFieldAlias},
	route.ErrCodeUnmatchedAlias:  {ErrUnmatchedAlias, errFieldAlias},
	route.ErrCodeInvalidRedirect: {ErrInvalidRedirect, errFieldRedirect},
	route.ErrCodeInvalidPattern:  {ErrInvalidPattern, errFieldPath},
}

// ValidationError represents a route table validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Path    string `json:"path"`
	Name    string `json:"name,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("[%s] %s (%s): %s: %s", e.Code, e.Path, e.Name, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Path, e.Field, e.Message)
}

// Validate registers configs into a scratch matcher and reports every
// problem found. It does not fail fast.
func Validate(configs []route.Config) []ValidationError {
	m, regErrs := route.NewMatcher(configs, route.WithLogger(slog.New(slog.DiscardHandler)))

	var errs []ValidationError
	for _, err := range regErrs {
		errs = append(errs, fromConfigError(err))
	}

	reg := m.Registry()
	for _, rec := range reg.Records() {
		if rec.Redirect == nil || rec.IsAlias() {
			continue
		}
		if _, ok := redirectTarget(reg, rec); ok {
			continue
		}
		switch {
		case rec.Redirect.To != nil && rec.Redirect.To.Name != "":
			errs = append(errs, ValidationError{
				Field:   errFieldRedirect,
				Message: fmt.Sprintf("redirect target route %q does not exist", rec.Redirect.To.Name),
				Code:    ErrUnknownRedirectTarget,
				Path:    rec.Path,
				Name:    rec.Name,
			})
		case redirectPath(rec) != "":
			errs = append(errs, ValidationError{
				Field:   errFieldRedirect,
				Message: fmt.Sprintf("redirect target %q matches no route", redirectPath(rec)),
				Code:    ErrUnknownRedirectTarget,
				Path:    rec.Path,
				Name:    rec.Name,
			})
		}
	}
	return errs
}

func fromConfigError(err error) ValidationError {
	var ce *route.ConfigurationError
	if !errors.As(err, &ce) {
		return ValidationError{Field: errFieldPath, Message: err.Error(), Code: ErrUnknownConfiguration}
	}
	mapped, ok := codeByConfigError[ce.Code]
	if !ok {
		mapped.code, mapped.field = ErrUnknownConfiguration, errFieldPath
	}
	return ValidationError{
		Field:   mapped.field,
		Message: ce.Message,
		Code:    mapped.code,
		Path:    ce.Path,
		Name:    ce.Name,
	}
}

// redirectPath is the absolute target path of a path redirect, or "".
func redirectPath(rec *route.Record) string {
	target := rec.Redirect.Path
	if target == "" && rec.Redirect.To != nil {
		target = rec.Redirect.To.Path
	}
	if target == "" {
		return ""
	}
	base := "/"
	if rec.Parent != nil {
		base = rec.Parent.Path
	}
	return location.ResolvePath(target, base, true)
}

// redirectTarget finds the record a static redirect lands on. Function
// redirects cannot be followed and always report ok. The catch-all record
// does not count as a target.
func redirectTarget(reg *route.Registry, rec *route.Record) (*route.Record, bool) {
	r := rec.Redirect
	if r == nil || r.Func != nil {
		return nil, r != nil
	}
	if r.To != nil && r.To.Name != "" {
		return reg.ByName(r.To.Name)
	}

	path := redirectPath(rec)
	if path == "" {
		return nil, false
	}
	if target, ok := reg.ByPath(path); ok {
		return target, true
	}
	for _, p := range reg.Paths() {
		if p == "*" {
			continue
		}
		if target, ok := reg.ByPath(p); ok && target.Pattern.Test(path) {
			return target, true
		}
	}
	return nil, false
}
