package resource

import "strings"

// Kind classifies a resource by the syntax family its compiled form belongs
// to. It decides which expander runs over the content.
type Kind int

const (
	KindOther Kind = iota
	KindScript
	KindStylesheet
	KindMarkup
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindStylesheet:
		return "stylesheet"
	case KindMarkup:
		return "markup"
	default:
		return "other"
	}
}

var (
	scriptExts = map[string]bool{
		".js": true, ".jsx": true, ".mjs": true, ".coffee": true,
		".ts": true, ".tsx": true, ".es6": true,
	}
	stylesheetExts = map[string]bool{
		".css": true, ".less": true, ".sass": true, ".scss": true, ".styl": true,
	}
	markupExts = map[string]bool{
		".html": true, ".htm": true, ".xhtml": true, ".shtml": true,
		".tpl": true, ".tmpl": true, ".php": true, ".jsp": true,
		".asp": true, ".aspx": true, ".vm": true, ".ftl": true,
		".ejs": true, ".handlebars": true, ".hbs": true, ".jade": true,
	}
	textExts = map[string]bool{
		".txt": true, ".text": true, ".json": true, ".xml": true, ".svg": true,
		".md": true, ".markdown": true, ".conf": true, ".config": true,
		".po": true, ".manifest": true, ".yml": true, ".yaml": true,
		".toml": true, ".csv": true, ".tsv": true, ".sh": true, ".bak": true,
		".tmp": true, ".map": true, ".haml": true, ".tag": true, ".vue": true,
	}
)

// KindOf classifies an extension (leading dot included).
func KindOf(ext string) Kind {
	ext = strings.ToLower(ext)
	switch {
	case scriptExts[ext]:
		return KindScript
	case stylesheetExts[ext]:
		return KindStylesheet
	case markupExts[ext]:
		return KindMarkup
	default:
		return KindOther
	}
}

// IsTextExt reports whether files with ext are text rather than binary.
func IsTextExt(ext string) bool {
	ext = strings.ToLower(ext)
	return textExts[ext] || KindOf(ext) != KindOther
}
