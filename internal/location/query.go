package location

import (
	"sort"
	"strings"
)

// Query maps a key to its values in order of appearance. A key given
// without "=" holds a single empty value.
type Query map[string][]string

// Get returns the first value for key.
func (q Query) Get(key string) string {
	if vs := q[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Clone returns a deep copy; nil stays nil.
func (q Query) Clone() Query {
	if q == nil {
		return nil
	}
	out := make(Query, len(q))
	for k, vs := range q {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Equal compares two queries value by value. Nil and empty are equal.
func (q Query) Equal(other Query) bool {
	if len(q) != len(other) {
		return false
	}
	for k, vs := range q {
		ovs, ok := other[k]
		if !ok || len(vs) != len(ovs) {
			return false
		}
		for i := range vs {
			if vs[i] != ovs[i] {
				return false
			}
		}
	}
	return true
}

// ParseQuery decodes a raw query string. A leading "?", "#" or "&" is
// ignored and "+" reads as a space.
func ParseQuery(raw string) Query {
	raw = strings.TrimSpace(raw)
	if raw != "" && strings.ContainsRune("?#&", rune(raw[0])) {
		raw = raw[1:]
	}
	q := Query{}
	if raw == "" {
		return q
	}
	for _, param := range strings.Split(raw, "&") {
		if param == "" {
			continue
		}
		param = strings.ReplaceAll(param, "+", " ")
		key, val, _ := strings.Cut(param, "=")
		k := decodeQueryValue(key)
		q[k] = append(q[k], decodeQueryValue(val))
	}
	return q
}

// ResolveQuery parses raw and overlays extra on top of it.
func ResolveQuery(raw string, extra Query) Query {
	q := ParseQuery(raw)
	for k, vs := range extra {
		q[k] = append([]string(nil), vs...)
	}
	return q
}

// StringifyQuery renders q with sorted keys. The result carries a leading
// "?" unless q is empty.
func StringifyQuery(q Query) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		ek := encodeQueryValue(k)
		for _, v := range q[k] {
			parts = append(parts, ek+"="+encodeQueryValue(v))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}
