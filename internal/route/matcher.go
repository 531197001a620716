package route

import (
	"log/slog"
	"maps"

	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/pathpattern"
)

// maxRedirects bounds redirect and alias chains so a cyclic table
// resolves to an unmatched route instead of recursing forever.
const maxRedirects = 32

// Matcher resolves locations against a Registry.
type Matcher struct {
	reg      *Registry
	compiler *pathpattern.Compiler
	logger   *slog.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithCompiler shares a pattern cache between matchers.
func WithCompiler(c *pathpattern.Compiler) MatcherOption {
	return func(m *Matcher) {
		m.compiler = c
	}
}

// WithLogger sets the logger used for configuration and match warnings.
func WithLogger(l *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = l
	}
}

// NewMatcher builds a matcher over configs. Configuration errors are
// logged and available through the returned slice.
func NewMatcher(configs []Config, opts ...MatcherOption) (*Matcher, []error) {
	m := &Matcher{}
	for _, opt := range opts {
		opt(m)
	}
	if m.compiler == nil {
		m.compiler = pathpattern.NewCompiler()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.reg = NewRegistry(m.compiler, m.logger)
	errs := m.reg.Add(configs)
	return m, errs
}

// AddRoutes registers more routes. Existing records are untouched.
func (m *Matcher) AddRoutes(configs []Config) []error {
	return m.reg.Add(configs)
}

// Registry exposes the underlying registry.
func (m *Matcher) Registry() *Registry {
	return m.reg
}

// Compiler exposes the pattern compiler.
func (m *Matcher) Compiler() *pathpattern.Compiler {
	return m.compiler
}

// Match resolves raw relative to current. An unknown name or a path no
// record accepts yields an unmatched Route, not an error; only malformed
// percent-encoding fails.
func (m *Matcher) Match(raw location.Location, current *Route, redirectedFrom *location.Location) (*Route, error) {
	return m.match(raw, current, redirectedFrom, 0)
}

func (m *Matcher) match(raw location.Location, current *Route, redirectedFrom *location.Location, depth int) (*Route, error) {
	var cur location.Current
	if current != nil {
		cur = current
	}
	loc, err := location.Normalize(raw, cur, false, m.compiler)
	if err != nil {
		return nil, err
	}

	if loc.Name != "" {
		rec, ok := m.reg.ByName(loc.Name)
		if !ok {
			m.logger.Warn("route with name does not exist", "name", loc.Name)
			return createRoute(nil, loc, nil), nil
		}
		params := maps.Clone(loc.Params)
		if params == nil {
			params = map[string]string{}
		}
		if current != nil {
			for _, k := range rec.Pattern.Keys {
				if k.Optional {
					continue
				}
				if _, set := params[k.Name]; !set {
					if v, ok := current.Params[k.Name]; ok {
						params[k.Name] = v
					}
				}
			}
		}
		loc.Params = params
		loc.Path = m.fill(rec.Path, params, "named route "+loc.Name)
		return m.createRoute(rec, loc, redirectedFrom, depth)
	}

	if loc.Path != "" {
		for _, rec := range m.reg.ordered() {
			mt, ok := rec.Pattern.Match(loc.Path)
			if !ok {
				continue
			}
			loc.Params = m.decodeParams(mt, rec.Pattern.Keys)
			return m.createRoute(rec, loc, redirectedFrom, depth)
		}
	}
	return createRoute(nil, loc, nil), nil
}

func (m *Matcher) decodeParams(mt pathpattern.Match, keys []pathpattern.Key) map[string]string {
	params := mt.Params(keys)
	for k, v := range params {
		decoded, err := location.DecodeURIComponent(v)
		if err != nil {
			m.logger.Warn("malformed param escape", "param", k, "value", v)
			continue
		}
		params[k] = decoded
	}
	return params
}

func (m *Matcher) fill(pattern string, params map[string]string, what string) string {
	p, err := m.compiler.Fill(pattern, params)
	if err != nil {
		m.logger.Warn("missing param for "+what, "error", err)
	}
	return p
}

func (m *Matcher) createRoute(rec *Record, loc location.Location, redirectedFrom *location.Location, depth int) (*Route, error) {
	if depth > maxRedirects {
		m.logger.Warn("redirect chain too long", "path", loc.Path)
		return createRoute(nil, loc, nil), nil
	}
	if rec != nil && rec.Redirect != nil {
		from := &loc
		if redirectedFrom != nil {
			from = redirectedFrom
		}
		return m.redirect(rec, *from, depth)
	}
	if rec != nil && rec.MatchAs != "" {
		return m.alias(rec, loc, depth)
	}
	return createRoute(rec, loc, redirectedFrom), nil
}

func (m *Matcher) redirect(rec *Record, loc location.Location, depth int) (*Route, error) {
	if !rec.Redirect.valid() {
		m.logger.Warn("invalid redirect option", "path", rec.Path)
		return createRoute(nil, loc, nil), nil
	}
	target, _ := rec.Redirect.target(func() *Route {
		return createRoute(rec, loc, nil)
	})

	query, hash, params := loc.Query, loc.Hash, loc.Params
	if target.Query != nil {
		query = target.Query
	}
	if target.Hash != "" {
		hash = target.Hash
	}
	if target.Params != nil {
		params = target.Params
	}

	switch {
	case target.Name != "":
		if _, ok := m.reg.ByName(target.Name); !ok {
			m.logger.Warn("redirect failed: named route not found", "name", target.Name)
		}
		return m.match(location.Location{
			Name:       target.Name,
			Query:      query,
			Hash:       hash,
			Params:     params,
			Normalized: true,
		}, nil, &loc, depth+1)

	case target.Path != "":
		base := "/"
		if rec.Parent != nil {
			base = rec.Parent.Path
		}
		rawPath := location.ResolvePath(target.Path, base, true)
		resolved := m.fill(rawPath, params, "redirect route with path "+rawPath)
		return m.match(location.Location{
			Path:       resolved,
			Query:      query,
			Hash:       hash,
			Normalized: true,
		}, nil, &loc, depth+1)
	}

	m.logger.Warn("invalid redirect target", "path", rec.Path)
	return createRoute(nil, loc, nil), nil
}

func (m *Matcher) alias(rec *Record, loc location.Location, depth int) (*Route, error) {
	aliasedPath := m.fill(rec.MatchAs, loc.Params, "aliased route with path "+rec.MatchAs)
	aliased, err := m.match(location.Location{Path: aliasedPath, Normalized: true}, nil, nil, depth+1)
	if err != nil {
		return nil, err
	}
	leaf := aliased.Leaf()
	if leaf == nil {
		return createRoute(nil, loc, nil), nil
	}
	loc.Params = aliased.Params
	return m.createRoute(leaf, loc, nil, depth+1)
}
