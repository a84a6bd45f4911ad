// Package lang defines the directive-tag protocol shared by the syntax
// expanders, which produce tags, and the resolution engine, which consumes
// them.
//
// A tag has the form
//
//	<<<keyword:payload>>>
//
// where keyword is one of require, embed, uri, dep or jsEmbed and payload is
// the raw reference literal, quotes included. The payload never contains the
// right delimiter: matching is non-greedy up to its first occurrence.
package lang

import (
	"regexp"
	"strings"
)

// Delimiters of a directive tag.
const (
	LD = "<<<"
	RD = ">>>"
)

// Keyword names the action a directive tag asks the resolution engine for.
type Keyword string

const (
	// Require resolves a module identifier and records it in requires.
	Require Keyword = "require"
	// Embed inlines the compiled content of the target.
	Embed Keyword = "embed"
	// URI rewrites the reference to the target's public URL.
	URI Keyword = "uri"
	// Dep registers a cache dependency and produces no output.
	Dep Keyword = "dep"
	// JSEmbed inlines the target as a script expression.
	JSEmbed Keyword = "jsEmbed"
)

// Keywords lists the closed keyword set in a stable order.
var Keywords = []Keyword{Require, Embed, URI, Dep, JSEmbed}

var tagPattern = func() *regexp.Regexp {
	names := make([]string, len(Keywords))
	for i, k := range Keywords {
		names[i] = regexp.QuoteMeta(string(k))
	}
	return regexp.MustCompile(
		regexp.QuoteMeta(LD) + `(` + strings.Join(names, "|") + `):([\s\S]+?)` + regexp.QuoteMeta(RD),
	)
}()

// Pattern returns the compiled tag matcher. Submatch 1 is the keyword and
// submatch 2 the payload.
func Pattern() *regexp.Regexp {
	return tagPattern
}

// Tag wraps payload in a directive tag for keyword k.
func Tag(k Keyword, payload string) string {
	return LD + string(k) + ":" + payload + RD
}

// HasTag reports whether s starts with a directive tag opener.
func HasTag(s string) bool {
	return strings.HasPrefix(s, LD)
}

// Match is one directive tag found in a document.
type Match struct {
	Keyword Keyword
	Payload string
	// Start and End delimit the whole tag in the scanned text.
	Start, End int
}

// Replace calls fn for every tag in content in document order and splices
// its result in place of the tag. Scanning stops at the first error, which is
// returned together with an empty string.
func Replace(content string, fn func(Match) (string, error)) (string, error) {
	locs := tagPattern.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return content, nil
	}

	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for _, loc := range locs {
		m := Match{
			Keyword: Keyword(content[loc[2]:loc[3]]),
			Payload: content[loc[4]:loc[5]],
			Start:   loc[0],
			End:     loc[1],
		}
		out, err := fn(m)
		if err != nil {
			return "", err
		}
		b.WriteString(content[last:m.Start])
		b.WriteString(out)
		last = m.End
	}
	b.WriteString(content[last:])
	return b.String(), nil
}
