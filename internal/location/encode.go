package location

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"
)

const upperhex = "0123456789ABCDEF"

// componentSafe reports whether c survives encodeURIComponent unescaped.
func componentSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// uriSafe reports whether c survives encodeURI unescaped.
func uriSafe(c byte) bool {
	if componentSafe(c) {
		return true
	}
	switch c {
	case ';', ',', '/', '?', ':', '@', '&', '=', '+', '$', '#':
		return true
	}
	return false
}

func escape(s string, safe func(byte) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if safe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// EncodeURIComponent percent-encodes every byte outside the unreserved set.
func EncodeURIComponent(s string) string {
	return escape(s, componentSafe)
}

// EncodeURI percent-encodes s but keeps URI delimiters intact.
func EncodeURI(s string) string {
	return escape(s, uriSafe)
}

// DecodeURIComponent reverses EncodeURIComponent. Malformed escapes and
// sequences that do not decode to UTF-8 yield a *DecodeError.
func DecodeURIComponent(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", &DecodeError{Raw: s, Err: err}
	}
	if !utf8.ValidString(out) {
		return "", &DecodeError{Raw: s, Err: fmt.Errorf("invalid UTF-8 sequence")}
	}
	return out, nil
}

// ValidateEscapes checks that every percent escape in s is well formed.
func ValidateEscapes(s string) error {
	_, err := DecodeURIComponent(s)
	return err
}

// encodeQueryValue mirrors encodeURIComponent with the sub-delimiters
// !'()* escaped and commas left readable.
func encodeQueryValue(s string) string {
	enc := EncodeURIComponent(s)
	if !strings.ContainsAny(enc, "!'()*") && !strings.Contains(enc, "%2C") {
		return enc
	}
	r := strings.NewReplacer("!", "%21", "'", "%27", "(", "%28", ")", "%29", "*", "%2a", "%2C", ",")
	return r.Replace(enc)
}

// decodeQueryValue falls back to the raw text when decoding fails.
func decodeQueryValue(s string) string {
	out, err := DecodeURIComponent(s)
	if err != nil {
		slog.Warn("query value has malformed escape", "value", s, "error", err)
		return s
	}
	return out
}
