package lang

import (
	"regexp"
	"strings"
)

var inlineFlag = regexp.MustCompile(`[?&]__inline(?:[=&'"]|$)`)

// IsInline reports whether query carries a standalone __inline parameter.
// The parameter must be bounded by ?, &, =, a quote or the end of query:
// "?__inline" and "?x=1&__inline=1" match, "?__inlinee" does not.
func IsInline(query string) bool {
	return inlineFlag.MatchString(query)
}

// IsInlineRef applies IsInline to the query part of a raw reference literal.
// Quotes are left in place so a closing quote bounds the flag.
func IsInlineRef(ref string) bool {
	_, query, _ := SplitQuery(ref)
	return IsInline(query)
}

// Quote splits a possibly quoted literal into its quote character and the
// unquoted rest. Surrounding whitespace is trimmed first; quote is empty when
// the literal is bare.
func Quote(s string) (quote, rest string) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		for _, q := range []byte{'\'', '"'} {
			if s[0] == q && s[len(s)-1] == q {
				return string(q), s[1 : len(s)-1]
			}
		}
	}
	return "", s
}

// SplitQuery splits a reference into path, query ("?..." or empty) and
// fragment ("#..." or empty). Backslashes in the path become forward slashes.
func SplitQuery(s string) (path, query, fragment string) {
	path = s
	if i := strings.IndexByte(path, '#'); i >= 0 {
		fragment = path[i:]
		path = path[:i]
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		query = path[i:]
		path = path[:i]
	}
	path = strings.ReplaceAll(path, `\`, "/")
	return path, query, fragment
}

// Literal is a parsed reference literal.
type Literal struct {
	// Origin is the literal as written, quotes included.
	Origin   string
	Quote    string
	Path     string
	Query    string
	Fragment string
}

// ParseLiteral unquotes s and splits it into path, query and fragment.
func ParseLiteral(s string) Literal {
	quote, rest := Quote(s)
	path, query, fragment := SplitQuery(rest)
	return Literal{
		Origin:   s,
		Quote:    quote,
		Path:     path,
		Query:    query,
		Fragment: fragment,
	}
}

// IsRemote reports whether path addresses something outside the project:
// an absolute URL, a protocol-relative URL or a data URI.
func IsRemote(path string) bool {
	lower := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lower, "//"),
		strings.HasPrefix(lower, "data:"),
		strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "about:"):
		return true
	}
	if i := strings.Index(lower, "://"); i > 0 {
		scheme := lower[:i]
		for _, r := range scheme {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
				return false
			}
		}
		return true
	}
	return false
}
