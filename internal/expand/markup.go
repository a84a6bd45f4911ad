package expand

import (
	"regexp"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/conneroisu/kiln/internal/lang"
)

// attribute value: single-quoted, double-quoted or bare
const attrValue = `('[^']+'|"[^"]+"|[^\s/>]+)`

var (
	srcAttr      = regexp.MustCompile(`(?i)(\s(?:data-)?src\s*=\s*)` + attrValue)
	hrefAttr     = regexp.MustCompile(`(?i)(\s(?:data-)?href\s*=\s*)` + attrValue)
	dataAttr     = regexp.MustCompile(`(?i)(\sdata\s*=\s*)` + attrValue)
	srcsetAttr   = regexp.MustCompile(`(?i)(\ssrcset\s*=\s*)` + attrValue)
	relAttr      = regexp.MustCompile(`(?i)\srel\s*=\s*` + attrValue)
	typeAttr     = regexp.MustCompile(`(?i)\s+type\s*=`)
	jsTypeAttr   = regexp.MustCompile(`(?i)\s+type\s*=\s*(['"]?)text/javascript(['"]?)`)
	linkOnlyAttr = regexp.MustCompile(`(?i)\s+(?:charset|href|data-href|hreflang|rel|rev|sizes|target)\s*=\s*(?:'[^']+'|"[^"]+"|[^\s/>]+)`)
)

// Markup tags resource references in markup text. It recognises, in this
// order of priority:
//
//	<script ...>body        src/data-src to uri or embed; body expanded as
//	                        script or, for other types, as markup
//	<style ...>body         body expanded as stylesheet
//	<img|embed|audio|video|link|object|source ...>
//	                        resource attributes to uri or embed tags
//	<!--inline[path]-->     embed tag
//	<!--...-->              comment pragma, see Comment
//
// Closing </script> and </style> tags are left in the output untouched.
func Markup(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	i := 0
	for i < len(src) {
		if src[i] != '<' {
			next := strings.IndexByte(src[i:], '<')
			if next < 0 {
				b.WriteString(src[i:])
				break
			}
			b.WriteString(src[i : i+next])
			i += next
			continue
		}

		if out, next, ok := markupTag(src, i); ok {
			b.WriteString(out)
			i = next
			continue
		}
		if out, next, ok := markupComment(src, i); ok {
			b.WriteString(out)
			i = next
			continue
		}
		b.WriteByte('<')
		i++
	}
	return b.String()
}

func markupTag(src string, i int) (string, int, bool) {
	nameEnd := i + 1
	for nameEnd < len(src) && isAlnum(src[nameEnd]) {
		nameEnd++
	}
	if nameEnd == i+1 {
		return "", i, false
	}
	name := atom.Lookup([]byte(strings.ToLower(src[i+1 : nameEnd])))

	switch name {
	case atom.Script, atom.Style:
		openEnd, ok := openTagEnd(src, nameEnd)
		if !ok {
			return "", i, false
		}
		closer := "</" + name.String()
		bodyEnd := closingTag(src, openEnd, closer)
		open, body := src[i:openEnd], src[openEnd:bodyEnd]
		if name == atom.Script {
			return expandScriptElement(open, body), bodyEnd, true
		}
		return open + Stylesheet(body), bodyEnd, true

	case atom.Img, atom.Embed, atom.Audio, atom.Video, atom.Link, atom.Object, atom.Source:
		if nameEnd >= len(src) || !isSpace(src[nameEnd]) {
			return "", i, false
		}
		end, ok := resourceTagEnd(src, nameEnd)
		if !ok {
			return "", i, false
		}
		return expandResourceTag(name, src[i:end]), end, true
	}
	return "", i, false
}

func markupComment(src string, i int) (string, int, bool) {
	if !strings.HasPrefix(src[i:], "<!--") {
		return "", i, false
	}
	start := i + len("<!--")

	if strings.HasPrefix(src[start:], "inline[") {
		p := start + len("inline[")
		if end := strings.IndexByte(src[p:], ']'); end > 0 && strings.HasPrefix(src[p+end:], "]-->") {
			return lang.Tag(lang.Embed, src[p:p+end]), p + end + len("]-->"), true
		}
	}

	if strings.HasPrefix(src[start:], "[") {
		return "", i, false
	}
	if end := strings.Index(src[start:], "-->"); end >= 0 {
		return "<!--" + Comment(src[start:start+end]) + "-->", start + end + len("-->"), true
	}
	return "<!--" + Comment(src[start:]), len(src), true
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// endsTagAttr reports whether c may precede the ">" that closes an open tag.
func endsTagAttr(c byte) bool {
	return c == '"' || c == '\'' || c == '/' || c == '-' || isSpace(c) || isWordByte(c)
}

// openTagEnd finds the end of a script or style open tag whose name ends at
// i: either ">" right away, or whitespace followed by the first ">" preceded
// by a quote, word character, whitespace, "/" or "-".
func openTagEnd(src string, i int) (int, bool) {
	if i >= len(src) {
		return i, false
	}
	if src[i] == '>' {
		return i + 1, true
	}
	if !isSpace(src[i]) {
		return i, false
	}
	for k := i + 1; k < len(src); k++ {
		if src[k] == '>' && endsTagAttr(src[k-1]) {
			return k + 1, true
		}
	}
	return i, false
}

// resourceTagEnd finds the end of a resource tag whose name ends at the
// whitespace at i: the first ">" preceded by a character that may end an
// attribute, or the end of input when the last character may.
func resourceTagEnd(src string, i int) (int, bool) {
	for k := i + 2; k < len(src); k++ {
		if src[k] == '>' && endsTagAttr(src[k-1]) {
			return k + 1, true
		}
	}
	if len(src)-1 > i && endsTagAttr(src[len(src)-1]) {
		return len(src), true
	}
	return i, false
}

// closingTag returns the index of the first `</name\s*>` at or after i,
// ignoring case, or len(src).
func closingTag(src string, i int, closer string) int {
	for k := i; k < len(src); k++ {
		if src[k] != '<' || !hasPrefixFold(src, k, closer) {
			continue
		}
		j := skipSpace(src, k+len(closer))
		if j < len(src) && src[j] == '>' {
			return k
		}
	}
	return len(src)
}

func expandScriptElement(open, body string) string {
	var embed strings.Builder
	open = replaceAttr(srcAttr, open, func(prefix, value string) string {
		if lang.IsInlineRef(value) {
			embed.WriteString(lang.Tag(lang.Embed, value))
			return ""
		}
		return prefix + lang.Tag(lang.URI, value)
	})

	if embed.Len() > 0 {
		return open + embed.String()
	}
	if isScriptType(open) {
		return open + Script(body)
	}
	return open + Markup(body)
}

// isScriptType reports whether a script open tag has no type attribute or
// has type text/javascript.
func isScriptType(open string) bool {
	if !typeAttr.MatchString(open) {
		return true
	}
	m := jsTypeAttr.FindStringSubmatch(open)
	return m != nil && (m[1] == "" || m[1] == m[2])
}

func expandResourceTag(name atom.Atom, tag string) string {
	switch name {
	case atom.Link:
		return expandLink(tag)
	case atom.Object:
		return replaceAttr(dataAttr, tag, func(prefix, value string) string {
			return prefix + lang.Tag(lang.URI, value)
		})
	}

	tag = replaceAttr(srcAttr, tag, func(prefix, value string) string {
		keyword := lang.URI
		if lang.IsInlineRef(value) {
			keyword = lang.Embed
		}
		return prefix + lang.Tag(keyword, value)
	})
	if name == atom.Img {
		tag = replaceAttr(srcsetAttr, tag, func(prefix, value string) string {
			return prefix + expandSrcset(value)
		})
	}
	return tag
}

func expandLink(tag string) string {
	var isStylesheet, isImport bool
	if m := relAttr.FindStringSubmatch(tag); m != nil {
		_, rel := lang.Quote(m[1])
		rel = strings.ToLower(rel)
		isStylesheet = rel == "stylesheet"
		isImport = rel == "import"
	}

	var inline strings.Builder
	out := replaceAttr(hrefAttr, tag, func(prefix, value string) string {
		if (isStylesheet || isImport) && lang.IsInlineRef(value) {
			if isStylesheet {
				inline.WriteString(styleOpenFromLink(tag))
			}
			inline.WriteString(lang.Tag(lang.Embed, value))
			if isStylesheet {
				inline.WriteString("</style>")
			}
			return ""
		}
		return prefix + lang.Tag(lang.URI, value)
	})
	if inline.Len() > 0 {
		return inline.String()
	}
	return out
}

// styleOpenFromLink turns a <link ...> tag into a <style ...> open tag,
// dropping the attributes that only make sense on a link.
func styleOpenFromLink(tag string) string {
	rest := tag[len("<link"):]
	if strings.HasSuffix(rest, "/>") {
		rest = rest[:len(rest)-2] + ">"
	}
	return "<style" + linkOnlyAttr.ReplaceAllString(rest, "")
}

// expandSrcset tags the URL of every candidate in a srcset value. Candidates
// are rejoined with ", " inside the original quote; a candidate without a
// descriptor is kept as written.
func expandSrcset(value string) string {
	quote, rest := lang.Quote(value)
	parts := strings.Split(rest, ",")
	set := make([]string, 0, len(parts))
	for _, item := range parts {
		item = strings.TrimSpace(item)
		p := strings.IndexByte(item, ' ')
		if p < 0 {
			set = append(set, item)
			continue
		}
		set = append(set, lang.Tag(lang.URI, item[:p])+item[p:])
	}
	return quote + strings.Join(set, ", ") + quote
}

// replaceAttr replaces every match of re in tag with fn(prefix, value), where
// re captures the attribute prefix and its value.
func replaceAttr(re *regexp.Regexp, tag string, fn func(prefix, value string) string) string {
	locs := re.FindAllStringSubmatchIndex(tag, -1)
	if len(locs) == 0 {
		return tag
	}
	var b strings.Builder
	b.Grow(len(tag) + len(locs)*16)
	last := 0
	for _, loc := range locs {
		b.WriteString(tag[last:loc[0]])
		b.WriteString(fn(tag[loc[2]:loc[3]], tag[loc[4]:loc[5]]))
		last = loc[1]
	}
	b.WriteString(tag[last:])
	return b.String()
}
