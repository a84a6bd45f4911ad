package expand

import (
	"strings"

	"github.com/conneroisu/kiln/internal/lang"
)

// Stylesheet tags resource references in stylesheet text.
//
//	/* @require id */                   comment pragma, see Comment
//	@import url(path?__inline);         embed tag, @import and ";" dropped
//	@import url(path);                  @import url(<uri tag>);
//	url(path?__inline)                  url(<embed tag>)
//	url(path)                           url(<uri tag>)
//	src=path                            src=<uri tag>, never embedded
func Stylesheet(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := scanBlockComment(src, i)
			b.WriteString(Comment(src[i:end]))
			i = end

		case c == '@' && strings.HasPrefix(src[i:], "@import"):
			j := i + len("@import")
			k := skipSpace(src, j)
			if k > j && wordEnd(src, k) == k+3 && src[k:k+3] == "url" {
				if call, ok := parseURLCall(src, k+3); ok {
					if lang.IsInlineRef(call.value) {
						b.WriteString(lang.Tag(lang.Embed, call.value))
						b.WriteString(strings.TrimSuffix(call.trailer, ";"))
					} else {
						b.WriteString("@import url(")
						b.WriteString(lang.Tag(lang.URI, call.value))
						b.WriteString(")")
						b.WriteString(call.trailer)
					}
					i = call.end
					continue
				}
			}
			b.WriteByte(c)
			i++

		case isWordByte(c):
			end := wordEnd(src, i)
			switch src[i:end] {
			case "url":
				if call, ok := parseURLCall(src, end); ok {
					keyword := lang.URI
					if lang.IsInlineRef(call.value) {
						keyword = lang.Embed
					}
					b.WriteString("url(")
					b.WriteString(lang.Tag(keyword, call.value))
					b.WriteString(")")
					b.WriteString(call.trailer)
					i = call.end
					continue
				}
			case "src":
				if value, next, ok := parseSrcAssign(src, end); ok {
					b.WriteString("src=")
					b.WriteString(lang.Tag(lang.URI, value))
					i = next
					continue
				}
			}
			b.WriteString(src[i:end])
			i = end

		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

type urlCall struct {
	value   string
	trailer string
	end     int
}

// parseURLCall parses `\s*(\s*value\s*)(\s*;?)` starting right after the
// word "url". value is a quoted literal or a bare run of characters other
// than ")", "}" and whitespace.
func parseURLCall(src string, i int) (urlCall, bool) {
	j := skipSpace(src, i)
	if j >= len(src) || src[j] != '(' {
		return urlCall{}, false
	}
	start := skipSpace(src, j+1)

	if end, ok := scanQuoted(src, start); ok {
		if call, ok := closeURLCall(src, start, end); ok {
			return call, true
		}
	}

	end := start
	for end < len(src) && src[end] != ')' && src[end] != '}' && !isSpace(src[end]) {
		end++
	}
	if end == start {
		return urlCall{}, false
	}
	return closeURLCall(src, start, end)
}

func closeURLCall(src string, start, end int) (urlCall, bool) {
	k := skipSpace(src, end)
	if k >= len(src) || src[k] != ')' {
		return urlCall{}, false
	}
	k++
	t := skipSpace(src, k)
	if t < len(src) && src[t] == ';' {
		t++
	}
	return urlCall{value: src[start:end], trailer: src[k:t], end: t}, true
}

// parseSrcAssign parses `\s*=\s*value` starting right after the word "src".
// value is a quoted literal or a bare run of characters other than
// whitespace and "}".
func parseSrcAssign(src string, i int) (string, int, bool) {
	j := skipSpace(src, i)
	if j >= len(src) || src[j] != '=' {
		return "", i, false
	}
	start := skipSpace(src, j+1)
	if end, ok := scanQuoted(src, start); ok {
		return src[start:end], end, true
	}
	end := start
	for end < len(src) && src[end] != '}' && !isSpace(src[end]) {
		end++
	}
	if end == start {
		return "", i, false
	}
	return src[start:end], end, true
}
