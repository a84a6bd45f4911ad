// Package resolve maps reference literals found in resources to project
// files and module identifiers.
package resolve

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/kiln/internal/lang"
	"github.com/conneroisu/kiln/internal/resource"
)

// Project resolves references against the files below a root directory and
// hands out one Resource per real path.
type Project struct {
	fs      afero.Fs
	root    string
	domain  string
	extMap  map[string]string
	exclude []string

	mu    sync.Mutex
	files map[string]*resource.Resource
}

// Option configures a Project.
type Option func(*Project)

// WithDomain sets the domain prefix of every resource.
func WithDomain(domain string) Option {
	return func(p *Project) { p.domain = domain }
}

// WithExtMap maps source extensions to compiled extensions, e.g.
// ".less" to ".css".
func WithExtMap(m map[string]string) Option {
	return func(p *Project) {
		for k, v := range m {
			p.extMap[strings.ToLower(k)] = v
		}
	}
}

// WithExclude skips entries whose name or sub-path matches one of patterns
// while walking. Patterns use path.Match syntax.
func WithExclude(patterns ...string) Option {
	return func(p *Project) { p.exclude = append(p.exclude, patterns...) }
}

// NewProject creates a project rooted at root on fs.
func NewProject(fsys afero.Fs, root string, opts ...Option) *Project {
	p := &Project{
		fs:     fsys,
		root:   path.Clean(strings.ReplaceAll(root, `\`, "/")),
		extMap: make(map[string]string),
		files:  make(map[string]*resource.Resource),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Root returns the project root.
func (p *Project) Root() string { return p.root }

// Fs returns the project filesystem.
func (p *Project) Fs() afero.Fs { return p.fs }

// File returns the resource for realPath, creating it on first use. It does
// not check that the file exists.
func (p *Project) File(realPath string) *resource.Resource {
	realPath = path.Clean(strings.ReplaceAll(realPath, `\`, "/"))

	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.files[realPath]; ok {
		return r
	}
	ext := path.Ext(realPath)
	r := resource.New(p.fs, p.root, realPath, p.extMap[strings.ToLower(ext)])
	r.Domain = p.domain
	p.files[realPath] = r
	return r
}

// Lookup returns the resource for a sub-path such as "/a/b.js", or nil when
// no such file exists.
func (p *Project) Lookup(subPath string) *resource.Resource {
	full := path.Join(p.root, strings.TrimPrefix(path.Clean("/"+subPath), "/"))
	if !p.isFile(full) {
		return nil
	}
	return p.File(full)
}

// FileAt returns the resource at an absolute filesystem path even when it
// lies outside the project, or nil when no such file exists.
func (p *Project) FileAt(absPath string) *resource.Resource {
	absPath = strings.ReplaceAll(absPath, `\`, "/")
	if !path.IsAbs(absPath) || !p.isFile(absPath) {
		return nil
	}
	return p.File(absPath)
}

// ModuleRef is a resolved module identifier.
type ModuleRef struct {
	ID    string
	Quote string
}

// ModuleID resolves literal, relative to dir, to a module identifier. A
// literal naming a project file resolves to that file's identifier;
// anything else keeps its unquoted path.
func (p *Project) ModuleID(literal, dir string) ModuleRef {
	ref := p.Reference(literal, dir)
	if ref.Resource != nil {
		return ModuleRef{ID: ref.Resource.ID(), Quote: ref.Quote}
	}
	return ModuleRef{ID: ref.Rest, Quote: ref.Quote}
}

// Reference is a resolved reference literal.
type Reference struct {
	// Origin is the literal as written.
	Origin string
	Quote  string
	// Rest is the unquoted path without query and fragment.
	Rest     string
	Query    string
	Fragment string
	// Resource is the referenced project file, nil when none exists.
	Resource *resource.Resource
}

// Reference resolves literal relative to dir. Paths starting with "/" are
// taken from the project root. Remote URLs and paths leaving the project
// never resolve.
func (p *Project) Reference(literal, dir string) Reference {
	lit := lang.ParseLiteral(literal)
	ref := Reference{
		Origin:   literal,
		Quote:    lit.Quote,
		Rest:     lit.Path,
		Query:    lit.Query,
		Fragment: lit.Fragment,
	}
	if lit.Path == "" || lang.IsRemote(lit.Path) {
		return ref
	}

	var full string
	if strings.HasPrefix(lit.Path, "/") {
		full = path.Join(p.root, lit.Path)
	} else {
		full = path.Join(dir, lit.Path)
	}
	if !p.contains(full) || !p.isFile(full) {
		return ref
	}
	ref.Resource = p.File(full)
	return ref
}

// Walk returns every file below the root that is not excluded, sorted by
// sub-path.
func (p *Project) Walk() ([]*resource.Resource, error) {
	var out []*resource.Resource
	err := afero.Walk(p.fs, p.root, func(full string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		full = strings.ReplaceAll(full, `\`, "/")
		if full != p.root && p.excluded(full) {
			if info.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			out = append(out, p.File(full))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubPath < out[j].SubPath })
	return out, nil
}

// Excluded reports whether realPath is skipped by Walk.
func (p *Project) Excluded(realPath string) bool {
	return p.excluded(strings.ReplaceAll(realPath, `\`, "/"))
}

func (p *Project) excluded(full string) bool {
	sub := strings.TrimPrefix(full, p.root)
	name := path.Base(full)
	for _, pattern := range p.exclude {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		if ok, _ := path.Match(pattern, strings.TrimPrefix(sub, "/")); ok {
			return true
		}
		if strings.HasPrefix(sub, "/"+strings.Trim(pattern, "/")+"/") {
			return true
		}
	}
	return false
}

func (p *Project) contains(full string) bool {
	return full == p.root || strings.HasPrefix(full, strings.TrimSuffix(p.root, "/")+"/")
}

func (p *Project) isFile(full string) bool {
	info, err := p.fs.Stat(full)
	return err == nil && info.Mode().IsRegular()
}
