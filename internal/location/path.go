package location

import (
	"regexp"
	"strings"
)

// ParsedPath is a raw path split into its three URL parts. Query excludes
// the leading "?"; Hash keeps its leading "#".
type ParsedPath struct {
	Path  string
	Query string
	Hash  string
}

// ParsePath splits p on the first "#" and then on the first "?" of what
// remains.
func ParsePath(p string) ParsedPath {
	var parsed ParsedPath
	if i := strings.IndexByte(p, '#'); i >= 0 {
		parsed.Hash = p[i:]
		p = p[:i]
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		parsed.Query = p[i+1:]
		p = p[:i]
	}
	parsed.Path = p
	return parsed
}

// ResolvePath resolves relative against base with directory semantics.
// With appendPath unset the last segment of base is replaced.
func ResolvePath(relative, base string, appendPath bool) string {
	if relative == "" {
		return base
	}
	switch relative[0] {
	case '/':
		return relative
	case '?', '#':
		return base + relative
	}

	stack := strings.Split(base, "/")
	if !appendPath || stack[len(stack)-1] == "" {
		stack = stack[:len(stack)-1]
	}

	for _, segment := range strings.Split(strings.TrimPrefix(relative, "/"), "/") {
		switch segment {
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ".":
		default:
			stack = append(stack, segment)
		}
	}

	if len(stack) == 0 || stack[0] != "" {
		stack = append([]string{""}, stack...)
	}
	return strings.Join(stack, "/")
}

var doubleSlash = regexp.MustCompile(`/(?:\s*/)+`)

// CleanPath collapses runs of slashes into one.
func CleanPath(p string) string {
	return doubleSlash.ReplaceAllString(p, "/")
}
