// Package route holds the route registry and the matcher.
//
// A route configuration tree is flattened into Records at registration
// time. Records are owned by the Registry and never change afterwards;
// their identity is what the transition pipeline compares to tell a param
// change on the same route from a move to another route.
//
// Matching turns a location into a Route: the matched record chain
// (root first) plus the decoded params, query and hash. Named targets are
// a map lookup; path targets are tested against every record in
// registration order with the catch-all "*" record always last.
// Redirects and aliases are resolved recursively.
package route

import (
	"maps"
	"strings"

	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/pathpattern"
)

// DefaultView is the view name used by Config.Component.
const DefaultView = "default"

// Component is an opaque view component. The router inspects it for
// optional guard interfaces and lazy resolution; nothing else.
type Component any

// Config is one entry of the user-authored route table.
type Config struct {
	Path string
	Name string

	// Component is shorthand for Components[DefaultView].
	Component  Component
	Components map[string]Component

	Redirect *Redirect
	Alias    []string
	Children []Config

	BeforeEnter Guard
	Meta        map[string]any
	// Props maps a view name to true, a static map[string]any, or a
	// func(*Route) map[string]any.
	Props map[string]any

	CaseSensitive bool
	Strict        bool
}

// Redirect is the target of a redirecting record. Exactly one field must
// be set.
type Redirect struct {
	Path string
	To   *location.Location
	Func func(to *Route) location.Location
}

// RedirectTo is shorthand for a path redirect.
func RedirectTo(path string) *Redirect {
	return &Redirect{Path: path}
}

// RedirectToName is shorthand for a named redirect.
func RedirectToName(name string) *Redirect {
	return &Redirect{To: &location.Location{Name: name}}
}

func (r *Redirect) valid() bool {
	if r == nil {
		return true
	}
	n := 0
	if r.Path != "" {
		n++
	}
	if r.To != nil {
		n++
	}
	if r.Func != nil {
		n++
	}
	return n == 1
}

// target evaluates the redirect for the would-be route.
func (r *Redirect) target(to func() *Route) (location.Location, bool) {
	switch {
	case r.Func != nil:
		return r.Func(to()), true
	case r.To != nil:
		return r.To.Clone(), true
	case r.Path != "":
		return location.Location{Path: r.Path}, true
	}
	return location.Location{}, false
}

// Record is the compiled, immutable form of one Config entry.
type Record struct {
	Path       string
	Pattern    *pathpattern.Pattern
	Components map[string]Component
	Name       string
	// Parent is a non-owning link into the same Registry.
	Parent      *Record
	Redirect    *Redirect
	BeforeEnter Guard
	Meta        map[string]any
	Props       map[string]any
	// MatchAs is the canonical path when this record is an alias.
	MatchAs string

	index int
}

// Index is the position of r in its registry's arena.
func (r *Record) Index() int {
	return r.index
}

// IsAlias reports whether r only exists to reach another record.
func (r *Record) IsAlias() bool {
	return r.MatchAs != ""
}

// Route is the result of matching a location. It must not be mutated.
type Route struct {
	Name           string
	Path           string
	Hash           string
	Query          location.Query
	Params         map[string]string
	FullPath       string
	Matched        []*Record
	RedirectedFrom string
	Meta           map[string]any
}

var start = &Route{
	Path:     "/",
	FullPath: "/",
	Query:    location.Query{},
	Params:   map[string]string{},
	Meta:     map[string]any{},
}

// Start is the "nowhere" route a router begins at. It is compared by
// identity.
func Start() *Route {
	return start
}

// IsStart reports whether r is the START sentinel.
func (r *Route) IsStart() bool {
	return r == start
}

// IsMatched reports whether any record matched.
func (r *Route) IsMatched() bool {
	return len(r.Matched) > 0
}

// Leaf returns the deepest matched record, or nil.
func (r *Route) Leaf() *Record {
	if len(r.Matched) == 0 {
		return nil
	}
	return r.Matched[len(r.Matched)-1]
}

// Location converts r back into a normalized location.
func (r *Route) Location() location.Location {
	return location.Location{
		Path:       r.Path,
		Query:      r.Query.Clone(),
		Hash:       r.Hash,
		Params:     maps.Clone(r.Params),
		Name:       r.Name,
		Normalized: true,
	}
}

// PropsFor resolves the props a view receives for r.
func (r *Route) PropsFor(rec *Record, view string) map[string]any {
	switch p := rec.Props[view].(type) {
	case bool:
		if !p {
			return nil
		}
		out := make(map[string]any, len(r.Params))
		for k, v := range r.Params {
			out[k] = v
		}
		return out
	case map[string]any:
		return maps.Clone(p)
	case func(*Route) map[string]any:
		return p(r)
	}
	return nil
}

func (r *Route) RouteName() string              { return r.Name }
func (r *Route) RoutePath() string              { return r.Path }
func (r *Route) RouteParams() map[string]string { return r.Params }

func (r *Route) LeafPattern() (string, bool) {
	if leaf := r.Leaf(); leaf != nil {
		return leaf.Path, true
	}
	return "", false
}

func fullPath(path string, q location.Query, hash string) string {
	if path == "" {
		path = "/"
	}
	return path + location.StringifyQuery(q) + hash
}

// createRoute assembles a Route for rec (nil means unmatched).
func createRoute(rec *Record, loc location.Location, redirectedFrom *location.Location) *Route {
	r := &Route{
		Name:     loc.Name,
		Path:     loc.Path,
		Hash:     loc.Hash,
		Query:    loc.Query.Clone(),
		Params:   maps.Clone(loc.Params),
		FullPath: fullPath(loc.Path, loc.Query, loc.Hash),
		Meta:     map[string]any{},
	}
	if r.Path == "" {
		r.Path = "/"
	}
	if r.Query == nil {
		r.Query = location.Query{}
	}
	if r.Params == nil {
		r.Params = map[string]string{}
	}
	if rec != nil {
		if r.Name == "" {
			r.Name = rec.Name
		}
		if rec.Meta != nil {
			r.Meta = rec.Meta
		}
		for p := rec; p != nil; p = p.Parent {
			r.Matched = append(r.Matched, p)
		}
		for i, j := 0, len(r.Matched)-1; i < j; i, j = i+1, j-1 {
			r.Matched[i], r.Matched[j] = r.Matched[j], r.Matched[i]
		}
	}
	if redirectedFrom != nil {
		r.RedirectedFrom = fullPath(redirectedFrom.Path, redirectedFrom.Query, redirectedFrom.Hash)
	}
	return r
}

func trimTrailingSlash(p string) string {
	return strings.TrimSuffix(p, "/")
}

// IsSameRoute reports whether a and b denote the same navigation target.
// START is only equal to itself.
func IsSameRoute(a, b *Route) bool {
	if b == start || a == start {
		return a == b
	}
	if a == nil || b == nil {
		return false
	}
	if a.Path != "" && b.Path != "" {
		return trimTrailingSlash(a.Path) == trimTrailingSlash(b.Path) &&
			a.Hash == b.Hash &&
			a.Query.Equal(b.Query) &&
			maps.Equal(a.Params, b.Params)
	}
	if a.Name != "" && b.Name != "" {
		return a.Name == b.Name &&
			a.Hash == b.Hash &&
			a.Query.Equal(b.Query) &&
			maps.Equal(a.Params, b.Params)
	}
	return false
}

// IsIncludedRoute reports whether target is a prefix of current, as used
// for "active" link styling.
func IsIncludedRoute(current, target *Route) bool {
	cur := trimTrailingSlash(current.Path) + "/"
	tgt := trimTrailingSlash(target.Path) + "/"
	if !strings.HasPrefix(cur, tgt) {
		return false
	}
	if target.Hash != "" && current.Hash != target.Hash {
		return false
	}
	for k, vs := range target.Query {
		cvs, ok := current.Query[k]
		if !ok || len(cvs) != len(vs) {
			return false
		}
		for i := range vs {
			if cvs[i] != vs[i] {
				return false
			}
		}
	}
	return true
}
