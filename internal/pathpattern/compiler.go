package pathpattern

import (
	"fmt"
	"sync"

	"github.com/corleone113/waypoint/internal/location"
)

// DefaultCacheLimit bounds the number of compiled patterns a Compiler keeps.
const DefaultCacheLimit = 10000

// Compiler compiles and caches patterns. Once the cache is full new
// patterns are compiled on every call and the first-seen ones stay.
//
// Thread-safety: Compiler is safe for concurrent use.
type Compiler struct {
	mu    sync.Mutex
	cache map[string]*Pattern
	limit int
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithCacheLimit sets the cache bound. Zero disables caching.
func WithCacheLimit(n int) CompilerOption {
	return func(c *Compiler) {
		c.limit = n
	}
}

// NewCompiler creates a Compiler with an empty cache.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		cache: make(map[string]*Pattern),
		limit: DefaultCacheLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile returns the compiled form of src under opts.
func (c *Compiler) Compile(src string, opts Options) (*Pattern, error) {
	cacheKey := opts.key() + "\x00" + src

	c.mu.Lock()
	p, ok := c.cache[cacheKey]
	c.mu.Unlock()
	if ok {
		return p, nil
	}

	p, err := build(src, parse(src), opts)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", src, err)
	}

	c.mu.Lock()
	if len(c.cache) < c.limit {
		c.cache[cacheKey] = p
	}
	c.mu.Unlock()
	return p, nil
}

// MustCompile is like Compile but panics on error.
func (c *Compiler) MustCompile(src string, opts Options) *Pattern {
	p, err := c.Compile(src, opts)
	if err != nil {
		panic(err)
	}
	return p
}

// Len reports how many patterns are cached.
func (c *Compiler) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Fill substitutes params into src. On failure it returns "" and a
// *ParamError.
func (c *Compiler) Fill(src string, params map[string]string) (string, error) {
	p, err := c.Compile(src, Options{Exact: true})
	if err != nil {
		return "", &ParamError{Pattern: src, Reason: err.Error()}
	}
	return p.Fill(params)
}

// Fill substitutes params into p.
func (p *Pattern) Fill(params map[string]string) (string, error) {
	var path []byte
	for i, t := range p.tokens {
		if t.key == nil {
			path = append(path, t.literal...)
			continue
		}
		k := t.key
		value, ok := params[k.Name]
		if !ok {
			if k.Optional {
				if k.Partial {
					path = append(path, k.Prefix...)
				}
				continue
			}
			return "", &ParamError{Pattern: p.Source, Key: k.Name, Reason: "expected to be defined"}
		}

		segment := encodePretty(value, k.Asterisk)
		if !p.checks[i].MatchString(segment) {
			return "", &ParamError{
				Pattern: p.Source,
				Key:     k.Name,
				Reason:  fmt.Sprintf("expected to match %q, got %q", k.Pattern, segment),
			}
		}
		path = append(path, k.Prefix...)
		path = append(path, segment...)
	}
	return string(path), nil
}

// encodePretty encodes like encodeURI and additionally escapes the
// characters that would change the path structure. Wildcard values keep
// their slashes.
func encodePretty(s string, asterisk bool) string {
	enc := location.EncodeURI(s)
	out := make([]byte, 0, len(enc))
	for i := 0; i < len(enc); i++ {
		c := enc[i]
		switch {
		case c == '?' || c == '#' || (c == '/' && !asterisk):
			out = append(out, '%', upperhex[c>>4], upperhex[c&15])
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

const upperhex = "0123456789ABCDEF"
