package expand

import (
	"regexp"
	"strings"

	"github.com/conneroisu/kiln/internal/lang"
)

var requirePragma = regexp.MustCompile(`(@require\s+)('[^']+'|"[^"]+"|[^\s;!@#%^&*()]+)`)

// Comment rewrites every `@require <value>` pragma in comment text to
// `@require <require-tag>`. Values that already are directive tags are left
// alone, so scanning the same text twice never wraps a tag again.
func Comment(text string) string {
	locs := requirePragma.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(locs)*16)
	last := 0
	for _, loc := range locs {
		prefix := text[loc[2]:loc[3]]
		value := text[loc[4]:loc[5]]
		if lang.HasTag(value) {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(prefix)
		b.WriteString(lang.Tag(lang.Require, value))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
