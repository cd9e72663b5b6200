package resolver

import (
	"net/url"
	"strings"
)

// disallowedURIChars never appear unescaped in an RFC 3986 URI reference.
const disallowedURIChars = " \"<>\\^`{|}"

// Normalize turns src into an absolute URL. A src starting with the literal
// "http" is returned unchanged. Anything else is resolved against pageURL as
// an RFC 3986 reference; if either side is not a valid URI reference, or the
// result is not absolute, there is no result.
func Normalize(pageURL, src string) (string, bool) {
	if strings.HasPrefix(src, "http") {
		return src, true
	}

	if !isURIReference(pageURL) || !isURIReference(src) {
		return "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(ref)
	if !resolved.IsAbs() {
		return "", false
	}
	return resolved.String(), true
}

// isURIReference reports whether s is free of the characters that url.Parse
// tolerates but RFC 3986 forbids: controls, space and the unsafe delimiters.
// Non-ASCII text is allowed.
func isURIReference(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f || strings.IndexByte(disallowedURIChars, c) >= 0 {
			return false
		}
	}
	return true
}
