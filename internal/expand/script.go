package expand

import (
	"strings"

	"github.com/conneroisu/kiln/internal/lang"
)

// Script tags resource references in script text.
//
//	// @require id            comment pragma, see Comment
//	__inline('path')          jsEmbed tag
//	__uri('path')             uri tag
//	require('path')           require('<require tag>')
//
// Quoted string literals are copied verbatim so reference-like text inside
// them is never rewritten.
func Script(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			end, ok := scanQuoted(src, i)
			if !ok {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteString(src[i:end])
			i = end

		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			end := i + 2
			for end < len(src) && !isLineBreak(src[end]) {
				end++
			}
			b.WriteString(Comment(src[i:end]))
			i = end

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := scanBlockComment(src, i)
			b.WriteString(Comment(src[i:end]))
			i = end

		case isWordByte(c):
			end := wordEnd(src, i)
			word := src[i:end]
			if out, next, ok := scriptCall(src, word, end); ok {
				b.WriteString(out)
				i = next
				continue
			}
			b.WriteString(word)
			i = end

		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// scriptCall recognises `word(<quoted literal>)` for the three call forms
// starting right after word at i.
func scriptCall(src, word string, i int) (string, int, bool) {
	var build func(value string) string
	switch word {
	case "__inline":
		build = func(v string) string { return lang.Tag(lang.JSEmbed, v) }
	case "__uri":
		build = func(v string) string { return lang.Tag(lang.URI, v) }
	case "require":
		build = func(v string) string { return "require(" + lang.Tag(lang.Require, v) + ")" }
	default:
		return "", i, false
	}

	j := skipSpace(src, i)
	if j >= len(src) || src[j] != '(' {
		return "", i, false
	}
	start := skipSpace(src, j+1)
	end, ok := scanQuoted(src, start)
	if !ok {
		return "", i, false
	}
	k := skipSpace(src, end)
	if k >= len(src) || src[k] != ')' {
		return "", i, false
	}
	return build(src[start:end]), k + 1, true
}
