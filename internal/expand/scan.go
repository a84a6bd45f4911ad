package expand

import "strings"

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func isLineBreak(c byte) bool {
	return c == '\n' || c == '\r' || c == '\f'
}

func skipSpace(src string, i int) int {
	for i < len(src) && isSpace(src[i]) {
		i++
	}
	return i
}

// wordEnd returns the index just past the word starting at i.
func wordEnd(src string, i int) int {
	for i < len(src) && isWordByte(src[i]) {
		i++
	}
	return i
}

// scanQuoted scans a single- or double-quoted literal starting at i. A
// backslash escapes the next byte; an unescaped line break ends the scan
// unsuccessfully. It returns the index just past the closing quote.
func scanQuoted(src string, i int) (int, bool) {
	if i >= len(src) || (src[i] != '"' && src[i] != '\'') {
		return i, false
	}
	q := src[i]
	for j := i + 1; j < len(src); j++ {
		switch c := src[j]; {
		case c == '\\':
			j++
		case c == q:
			return j + 1, true
		case isLineBreak(c):
			return i, false
		}
	}
	return i, false
}

// scanBlockComment returns the index just past the "*/" closing the block
// comment opened at i, or len(src) when it is unterminated.
func scanBlockComment(src string, i int) int {
	if end := strings.Index(src[i+2:], "*/"); end >= 0 {
		return i + 2 + end + 2
	}
	return len(src)
}

// hasPrefixFold reports whether src[i:] starts with prefix, ignoring ASCII case.
func hasPrefixFold(src string, i int, prefix string) bool {
	return len(src)-i >= len(prefix) && strings.EqualFold(src[i:i+len(prefix)], prefix)
}
