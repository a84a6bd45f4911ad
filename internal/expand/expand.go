// Package expand turns the native resource-reference syntax of scripts,
// stylesheets and markup into directive tags (see package lang).
//
// Expansion is purely lexical. Each syntax family has its own small scanner
// that tracks whether it is inside a string literal, a comment or code; no
// syntax tree is built. Text without recognised references comes back
// unchanged.
package expand

import "github.com/conneroisu/kiln/internal/resource"

// Expand runs the expander for kind over content. KindOther content is
// returned as is.
func Expand(kind resource.Kind, content string) string {
	switch kind {
	case resource.KindScript:
		return Script(content)
	case resource.KindStylesheet:
		return Stylesheet(content)
	case resource.KindMarkup:
		return Markup(content)
	case resource.KindOther:
		return content
	default:
		return content
	}
}
