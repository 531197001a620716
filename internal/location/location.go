// Package location normalizes raw navigation targets.
//
// A target arrives either as a string ("/users/1?tab=info#top") or as a
// partially filled Location (a name plus params, params relative to the
// current route, a relative path). Normalize turns any of them into a
// canonical Location that the route matcher consumes. Normalized values
// carry a flag so feeding them back through Normalize is a no-op.
package location

import (
	"fmt"
	"log/slog"
	"maps"
)

// Location describes a navigation target before it is matched.
type Location struct {
	Path   string
	Query  Query
	Hash   string
	Params map[string]string
	Name   string

	// Append resolves a relative Path against the full current path
	// instead of its parent directory.
	Append bool
	// Replace asks the router to replace the current history entry.
	Replace bool

	// Normalized is set by Normalize.
	Normalized bool
}

// From builds a Location from a string target.
func From(s string) Location {
	return Location{Path: s}
}

// Clone returns a deep copy of l.
func (l Location) Clone() Location {
	out := l
	out.Query = l.Query.Clone()
	if l.Params != nil {
		out.Params = maps.Clone(l.Params)
	}
	return out
}

// String renders the path, query and hash of l.
func (l Location) String() string {
	if l.Name != "" && l.Path == "" {
		return fmt.Sprintf("{name: %s}", l.Name)
	}
	return l.Path + StringifyQuery(l.Query) + l.Hash
}

// Current is the view of the active route that relative targets resolve
// against.
type Current interface {
	RouteName() string
	RoutePath() string
	RouteParams() map[string]string
	// LeafPattern is the path pattern of the deepest matched record.
	LeafPattern() (string, bool)
}

// Filler substitutes params into a path pattern.
type Filler interface {
	Fill(pattern string, params map[string]string) (string, error)
}

// Normalize canonicalizes raw. current may be nil; filler is only needed
// for params-only targets against an unnamed current route.
func Normalize(raw Location, current Current, appendPath bool, filler Filler) (Location, error) {
	if raw.Normalized {
		return raw, nil
	}

	if raw.Name != "" {
		return raw.Clone(), nil
	}

	if raw.Path == "" && raw.Params != nil && current != nil {
		next := raw.Clone()
		next.Normalized = true
		params := maps.Clone(current.RouteParams())
		if params == nil {
			params = map[string]string{}
		}
		maps.Copy(params, raw.Params)

		if name := current.RouteName(); name != "" {
			next.Name = name
			next.Params = params
			return next, nil
		}
		pattern, ok := current.LeafPattern()
		if !ok {
			slog.Warn("relative params navigation requires a current route")
			return next, nil
		}
		if filler != nil {
			p, err := filler.Fill(pattern, params)
			if err != nil {
				slog.Warn("missing param for relative navigation",
					"path", current.RoutePath(), "error", err)
			}
			next.Path = p
		}
		return next, nil
	}

	parsed := ParsePath(raw.Path)
	if err := ValidateEscapes(parsed.Path); err != nil {
		return Location{}, &DecodeError{Raw: raw.Path, Err: err}
	}

	base := "/"
	if current != nil && current.RoutePath() != "" {
		base = current.RoutePath()
	}
	path := base
	if parsed.Path != "" {
		path = ResolvePath(parsed.Path, base, appendPath || raw.Append)
	}

	hash := raw.Hash
	if hash == "" {
		hash = parsed.Hash
	}
	if hash != "" && hash[0] != '#' {
		hash = "#" + hash
	}

	return Location{
		Path:       path,
		Query:      ResolveQuery(parsed.Query, raw.Query),
		Hash:       hash,
		Replace:    raw.Replace,
		Normalized: true,
	}, nil
}
