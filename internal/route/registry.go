package route

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/pathpattern"
)

// Registry owns every Record. Paths() is the match order: registration
// order with the "*" record moved to the end.
//
// Thread-safety: Registry is safe for concurrent use. Records are
// immutable once published.
type Registry struct {
	compiler *pathpattern.Compiler
	logger   *slog.Logger

	mu      sync.RWMutex
	records []*Record
	paths   []string
	byPath  map[string]*Record
	byName  map[string]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry(compiler *pathpattern.Compiler, logger *slog.Logger) *Registry {
	if compiler == nil {
		compiler = pathpattern.NewCompiler()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		compiler: compiler,
		logger:   logger,
		byPath:   make(map[string]*Record),
		byName:   make(map[string]*Record),
	}
}

// Add registers configs on top of what is already there. Configuration
// problems are logged and returned; none of them stops registration.
func (r *Registry) Add(configs []Config) []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := &builder{reg: r}
	for i := range configs {
		b.add(&configs[i], nil, "")
	}
	b.checkAliases()
	r.sortWildcard()

	for _, err := range b.errs {
		r.logger.Warn("route configuration error", "error", err)
	}
	return b.errs
}

// Paths returns the match order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.paths...)
}

// ByPath returns the record registered for a normalized path.
func (r *Registry) ByPath(path string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byPath[path]
	return rec, ok
}

// ByName returns the record registered under name.
func (r *Registry) ByName(name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byName[name]
	return rec, ok
}

// Records returns every record in creation order, aliases included.
func (r *Registry) Records() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Record(nil), r.records...)
}

// ordered returns the records in match order.
func (r *Registry) ordered() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, len(r.paths))
	for i, p := range r.paths {
		out[i] = r.byPath[p]
	}
	return out
}

func (r *Registry) sortWildcard() {
	n := len(r.paths)
	for i := 0; i < n; i++ {
		if r.paths[i] == "*" {
			r.paths = append(append(r.paths[:i:i], r.paths[i+1:]...), "*")
			n--
			i--
		}
	}
}

type builder struct {
	reg     *Registry
	errs    []error
	aliases []*Record
}

func (b *builder) fail(code ConfigErrorCode, path, name, format string, args ...any) {
	b.errs = append(b.errs, &ConfigurationError{
		Code:    code,
		Path:    path,
		Name:    name,
		Message: fmt.Sprintf(format, args...),
	})
}

// normalizePath strips a trailing slash (unless strict) and joins a
// relative path onto its parent.
func normalizePath(path string, parent *Record, strict bool) string {
	if !strict {
		path = strings.TrimSuffix(path, "/")
	}
	if strings.HasPrefix(path, "/") || parent == nil {
		return path
	}
	return location.CleanPath(parent.Path + "/" + path)
}

func (b *builder) add(cfg *Config, parent *Record, matchAs string) {
	reg := b.reg
	path := normalizePath(cfg.Path, parent, cfg.Strict)

	pattern, err := reg.compiler.Compile(path, pathpattern.Options{
		Exact:         true,
		Strict:        cfg.Strict,
		CaseSensitive: cfg.CaseSensitive,
	})
	if err != nil {
		b.fail(ErrCodeInvalidPattern, path, cfg.Name, "%v", err)
		return
	}
	for _, dup := range pattern.DuplicateKeys() {
		b.fail(ErrCodeDuplicateParam, path, cfg.Name, "duplicate param key %q in path", dup)
	}

	redirect := cfg.Redirect
	if !redirect.valid() {
		b.fail(ErrCodeInvalidRedirect, path, cfg.Name, "redirect must set exactly one of path, location or func")
	}

	components := cfg.Components
	if components == nil && cfg.Component != nil {
		components = map[string]Component{DefaultView: cfg.Component}
	}
	props := cfg.Props
	if props == nil {
		props = map[string]any{}
	}
	meta := cfg.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	rec := &Record{
		Path:        path,
		Pattern:     pattern,
		Components:  components,
		Name:        cfg.Name,
		Parent:      parent,
		Redirect:    redirect,
		BeforeEnter: cfg.BeforeEnter,
		Meta:        meta,
		Props:       props,
		MatchAs:     matchAs,
		index:       len(reg.records),
	}
	reg.records = append(reg.records, rec)
	if matchAs != "" {
		b.aliases = append(b.aliases, rec)
	}

	for i := range cfg.Children {
		child := &cfg.Children[i]
		childMatchAs := ""
		if matchAs != "" {
			childMatchAs = location.CleanPath(matchAs + "/" + child.Path)
		}
		b.add(child, rec, childMatchAs)
	}

	if _, ok := reg.byPath[rec.Path]; !ok {
		reg.paths = append(reg.paths, rec.Path)
		reg.byPath[rec.Path] = rec
	}

	for _, alias := range cfg.Alias {
		if alias == cfg.Path {
			b.fail(ErrCodeAliasIsPath, path, cfg.Name, "alias %q equals its path and is ignored", alias)
			continue
		}
		canonical := rec.Path
		if canonical == "" {
			canonical = "/"
		}
		b.add(&Config{Path: alias, Children: cfg.Children}, parent, canonical)
	}

	if cfg.Name != "" {
		if _, taken := reg.byName[cfg.Name]; !taken {
			reg.byName[cfg.Name] = rec
		} else if matchAs == "" {
			b.fail(ErrCodeDuplicateName, path, cfg.Name, "duplicate named route definition")
		}
	}
}

// checkAliases verifies every alias registered in this batch can reach
// its canonical record with the params the alias path provides.
func (b *builder) checkAliases() {
	for _, rec := range b.aliases {
		canonical, ok := b.reg.byPath[rec.MatchAs]
		if !ok {
			canonical, ok = b.reg.byPath[strings.TrimSuffix(rec.MatchAs, "/")]
		}
		if !ok {
			b.fail(ErrCodeUnmatchedAlias, rec.Path, rec.Name, "alias target %q is not a registered path", rec.MatchAs)
			continue
		}
		provided := make(map[string]bool, len(rec.Pattern.Keys))
		for _, k := range rec.Pattern.Keys {
			provided[k.Name] = true
		}
		for _, k := range canonical.Pattern.Keys {
			if !k.Optional && !provided[k.Name] {
				b.fail(ErrCodeUnmatchedAlias, rec.Path, rec.Name,
					"alias does not provide param %q required by %q", k.Name, rec.MatchAs)
			}
		}
	}
}
