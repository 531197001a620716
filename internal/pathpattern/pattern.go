// Package pathpattern compiles route path patterns into matchers.
//
// Supported syntax:
//
//	/user/:id          named parameter, one segment
//	/user/:id?         optional parameter
//	/files/:path*      zero or more segments
//	/files/:path+      one or more segments
//	/user/:id(\d+)     parameter with a custom pattern
//	/user/(\d+)        unnamed group
//	/docs/*            wildcard
//
// Unnamed groups and wildcards get positional names; the first one is
// exposed as "pathMatch". A Compiler owns a bounded cache of compiled
// patterns, so independent routers never share state.
package pathpattern

import (
	"regexp"
	"strconv"
	"strings"
)

// WildcardParam names the first unnamed capture of a pattern.
const WildcardParam = "pathMatch"

// Options control how a pattern matches.
type Options struct {
	// Exact requires the whole path to be consumed. When false a
	// pattern may match a leading run of whole segments.
	Exact bool
	// Strict makes a trailing slash significant.
	Strict bool
	// CaseSensitive disables case folding.
	CaseSensitive bool
}

func (o Options) key() string {
	var b [3]byte
	for i, set := range []bool{o.Exact, o.Strict, o.CaseSensitive} {
		b[i] = '0'
		if set {
			b[i] = '1'
		}
	}
	return string(b[:])
}

// Key is one parameter of a compiled pattern.
type Key struct {
	Name      string
	Prefix    string
	Delimiter string
	Optional  bool
	Repeat    bool
	Partial   bool
	Asterisk  bool
	Pattern   string
}

// token is either a literal (key == nil) or a parameter.
type token struct {
	literal string
	key     *Key
}

// Pattern is a compiled path pattern.
type Pattern struct {
	Source string
	Keys   []Key

	opts   Options
	tokens []token
	re     *regexp.Regexp
	// checks validate single filled values, indexed like tokens.
	checks []*regexp.Regexp
}

// Match is a successful test of a path against a Pattern.
type Match struct {
	// Path is the consumed prefix of the input.
	Path string
	// Values holds the raw capture for each key, "" when an optional
	// key did not participate. Present reports participation.
	Values  []string
	Present []bool
}

// Params maps key names to raw captured values, skipping keys that did
// not participate.
func (m Match) Params(keys []Key) map[string]string {
	out := make(map[string]string, len(keys))
	for i, k := range keys {
		if i < len(m.Values) && m.Present[i] {
			out[k.Name] = m.Values[i]
		}
	}
	return out
}

// Match tests path against p.
func (p *Pattern) Match(path string) (Match, bool) {
	idx := p.re.FindStringSubmatchIndex(path)
	if idx == nil {
		return Match{}, false
	}
	m := Match{
		Path:    path[idx[2]:idx[3]],
		Values:  make([]string, len(p.Keys)),
		Present: make([]bool, len(p.Keys)),
	}
	for i := range p.Keys {
		lo, hi := idx[4+2*i], idx[5+2*i]
		if lo < 0 {
			continue
		}
		m.Values[i] = path[lo:hi]
		m.Present[i] = true
	}
	return m, true
}

// Test reports whether path matches p.
func (p *Pattern) Test(path string) bool {
	return p.re.MatchString(path)
}

// Regexp exposes the compiled expression.
func (p *Pattern) Regexp() *regexp.Regexp {
	return p.re
}

// Options returns the options p was compiled with.
func (p *Pattern) Options() Options {
	return p.opts
}

var tokenRE = regexp.MustCompile(`(\\.)|([/.])?(?:(?::(\w+)(?:\(((?:\\.|[^\\()])+)\))?|\(((?:\\.|[^\\()])+)\))([+*?])?|(\*))`)

var groupEscapeRE = regexp.MustCompile(`([=!:$/()])`)

// parse splits a pattern into literal and parameter tokens.
func parse(src string) []token {
	var (
		tokens []token
		path   strings.Builder
		index  int
		next   int
	)

	for _, m := range tokenRE.FindAllStringSubmatchIndex(src, -1) {
		group := func(n int) (string, bool) {
			if m[2*n] < 0 {
				return "", false
			}
			return src[m[2*n]:m[2*n+1]], true
		}

		path.WriteString(src[index:m[0]])
		index = m[1]

		if escaped, ok := group(1); ok {
			path.WriteString(escaped[1:])
			continue
		}

		prefix, hasPrefix := group(2)
		name, _ := group(3)
		capture, _ := group(4)
		unnamed, _ := group(5)
		modifier, _ := group(6)
		_, asterisk := group(7)

		if path.Len() > 0 {
			tokens = append(tokens, token{literal: path.String()})
			path.Reset()
		}

		partial := hasPrefix && index < len(src) && src[index:index+1] != prefix
		delimiter := prefix
		if delimiter == "" {
			delimiter = "/"
		}

		if name == "" {
			if next == 0 {
				name = WildcardParam
			} else {
				name = strconv.Itoa(next)
			}
			next++
		}

		pattern := capture
		if pattern == "" {
			pattern = unnamed
		}
		switch {
		case pattern != "":
			pattern = groupEscapeRE.ReplaceAllString(pattern, `\$1`)
		case asterisk:
			pattern = ".*"
		default:
			pattern = "[^" + regexp.QuoteMeta(delimiter) + "]+?"
		}

		tokens = append(tokens, token{key: &Key{
			Name:      name,
			Prefix:    prefix,
			Delimiter: delimiter,
			Optional:  modifier == "?" || modifier == "*",
			Repeat:    modifier == "+" || modifier == "*",
			Partial:   partial,
			Asterisk:  asterisk,
			Pattern:   pattern,
		}})
	}

	if index < len(src) {
		path.WriteString(src[index:])
	}
	if path.Len() > 0 {
		tokens = append(tokens, token{literal: path.String()})
	}
	return tokens
}

// build turns tokens into an anchored expression. Group 1 always
// captures the consumed prefix; each key adds exactly one group after it.
func build(src string, tokens []token, opts Options) (*Pattern, error) {
	var route strings.Builder
	p := &Pattern{Source: src, opts: opts, tokens: tokens, checks: make([]*regexp.Regexp, len(tokens))}

	for i, t := range tokens {
		if t.key == nil {
			route.WriteString(regexp.QuoteMeta(t.literal))
			continue
		}
		k := t.key
		prefix := regexp.QuoteMeta(k.Prefix)
		capture := "(?:" + k.Pattern + ")"
		check, err := regexp.Compile("^" + capture + "$")
		if err != nil {
			return nil, err
		}
		p.checks[i] = check
		p.Keys = append(p.Keys, *k)

		if k.Repeat {
			capture += "(?:" + prefix + capture + ")*"
		}
		switch {
		case k.Optional && !k.Partial:
			capture = "(?:" + prefix + "(" + capture + "))?"
		case k.Optional:
			capture = prefix + "(" + capture + ")?"
		default:
			capture = prefix + "(" + capture + ")"
		}
		route.WriteString(capture)
	}

	body := route.String()
	endsWithDelimiter := strings.HasSuffix(body, "/")
	if !opts.Strict && endsWithDelimiter {
		body = strings.TrimSuffix(body, "/")
	}

	var suffix string
	switch {
	case opts.Exact && opts.Strict:
		suffix = "$"
	case opts.Exact:
		suffix = "/?$"
	case opts.Strict && endsWithDelimiter:
		suffix = ".*$"
	default:
		suffix = "(?:/.*)?$"
	}

	expr := "^(" + body + ")" + suffix
	if !opts.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	p.re = re
	return p, nil
}

// DuplicateKeys returns key names that occur more than once in p.
func (p *Pattern) DuplicateKeys() []string {
	seen := make(map[string]bool, len(p.Keys))
	var dups []string
	for _, k := range p.Keys {
		if seen[k.Name] {
			dups = append(dups, k.Name)
		}
		seen[k.Name] = true
	}
	return dups
}
