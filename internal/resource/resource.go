// Package resource models a compilable project asset.
//
// A Resource is looked up once per real path (see package resolve) and
// reused across compiles: its content is overwritten by each compile while
// its identity, paths and capability flags stay fixed.
package resource

import (
	"encoding/base64"
	"fmt"
	"hash/crc32"
	"mime"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/conneroisu/kiln/internal/cache"
	kerrors "github.com/conneroisu/kiln/internal/errors"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Resource is a path-addressable asset.
type Resource struct {
	// RealPath is the slash-separated path on the backing filesystem and
	// the identity of the resource.
	RealPath string
	// SubPath is the logical path from the project root, starting with "/".
	SubPath string
	// Dirname is the directory of RealPath.
	Dirname string
	// Basename is the file name without extension.
	Basename string
	// Ext is the source extension, e.g. ".less".
	Ext string
	// RExt is the extension of the compiled form, e.g. ".css". It selects
	// every stage after the parser.
	RExt string
	// Query is appended to the public URL.
	Query string
	// Release is the output path of the compiled form from the output root.
	Release string
	// Domain prefixes the public URL when domains are enabled.
	Domain string
	Kind   Kind

	UseCompile       bool
	UseCache         bool
	UseHash          bool
	UseDomain        bool
	UseParser        bool
	UsePreprocessor  bool
	UseStandard      bool
	UsePostprocessor bool
	UseLint          bool
	UseTest          bool
	UseOptimizer     bool

	// Requires lists module identifiers in discovery order. Duplicates are
	// kept.
	Requires []string
	// Extras is free-form metadata saved with the cache snapshot.
	Extras map[string]any
	// Cache is the cache record attached by the last compile of a file.
	Cache    *cache.Record
	Compiled bool

	fs afero.Fs

	mu      sync.Mutex
	content []byte
	hash    string
}

// New describes the file at realPath. root is the project root used to
// compute SubPath; files outside root keep their real path as sub-path.
// rext is the compiled extension, or empty to keep Ext.
func New(fs afero.Fs, root, realPath, rext string) *Resource {
	realPath = path.Clean(strings.ReplaceAll(realPath, `\`, "/"))
	ext := path.Ext(realPath)
	if rext == "" {
		rext = ext
	}

	sub := realPath
	root = path.Clean(root)
	if rel, ok := strings.CutPrefix(realPath, strings.TrimSuffix(root, "/")+"/"); ok {
		sub = "/" + rel
	}

	kind := KindOf(rext)
	r := &Resource{
		RealPath:         realPath,
		SubPath:          sub,
		Dirname:          path.Dir(realPath),
		Basename:         strings.TrimSuffix(path.Base(realPath), ext),
		Ext:              ext,
		RExt:             rext,
		Release:          strings.TrimSuffix(sub, ext) + rext,
		Kind:             kind,
		UseCompile:       true,
		UseCache:         true,
		UseHash:          kind != KindMarkup,
		UseDomain:        true,
		UseParser:        true,
		UsePreprocessor:  true,
		UseStandard:      true,
		UsePostprocessor: true,
		UseLint:          true,
		UseTest:          true,
		UseOptimizer:     true,
		Requires:         []string{},
		Extras:           map[string]any{},
		fs:               fs,
	}
	return r
}

// IsFile reports whether the resource exists as a regular file.
func (r *Resource) IsFile() bool {
	if r.fs == nil {
		return false
	}
	info, err := r.fs.Stat(r.RealPath)
	return err == nil && info.Mode().IsRegular()
}

// IsText reports whether the resource holds text rather than bytes.
func (r *Resource) IsText() bool {
	return IsTextExt(r.Ext) || IsTextExt(r.RExt)
}

// IsJSONLike reports whether the compiled form is JSON.
func (r *Resource) IsJSONLike() bool {
	return strings.EqualFold(r.RExt, ".json")
}

// ModTime returns the modification time of the backing file.
func (r *Resource) ModTime() (time.Time, error) {
	info, err := r.fs.Stat(r.RealPath)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Read loads the resource from its backing file. Text with a byte order
// mark is decoded to UTF-8 without it; other bytes are kept as they are.
func (r *Resource) Read() error {
	data, err := afero.ReadFile(r.fs, r.RealPath)
	if err != nil {
		return kerrors.NewIOError(kerrors.ErrCodeFileNotFound, "unable to read resource", err).
			WithLocation(r.RealPath, 0, 0)
	}
	if r.IsText() {
		data, err = decodeText(data)
		if err != nil {
			return kerrors.NewIOError(kerrors.ErrCodeInvalidResource, "unable to decode resource", err).
				WithLocation(r.RealPath, 0, 0)
		}
	}
	r.SetContent(data)
	return nil
}

func decodeText(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), data)
	return out, err
}

// Content returns the current content.
func (r *Resource) Content() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.content
}

// Text returns the current content as a string.
func (r *Resource) Text() string {
	return string(r.Content())
}

// SetContent replaces the content and forgets the fingerprint.
func (r *Resource) SetContent(content []byte) {
	r.mu.Lock()
	r.content = content
	r.hash = ""
	r.mu.Unlock()
}

// SetText replaces the content with s.
func (r *Resource) SetText(s string) {
	r.SetContent([]byte(s))
}

// Fingerprint returns the CRC-32C of the current content as 8 hex digits.
// It is computed once per content value.
func (r *Resource) Fingerprint() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hash == "" {
		r.hash = fmt.Sprintf("%08x", crc32.Checksum(r.content, crcTable))
	}
	return r.hash
}

// URL returns the public URL of the compiled form: the release path, with
// the fingerprint inserted before the extension when withHash is set and
// hashing applies to the resource, prefixed by Domain when withDomain is
// set, followed by Query.
func (r *Resource) URL(withHash, withDomain bool) string {
	url := r.Release
	if withHash && r.UseHash {
		url = strings.TrimSuffix(url, r.RExt) + "_" + r.Fingerprint() + r.RExt
	}
	if withDomain && r.UseDomain && r.Domain != "" {
		url = strings.TrimSuffix(r.Domain, "/") + url
	}
	return url + r.Query
}

// ReleasePath returns the output path of the compiled form, fingerprinted
// when withHash is set and hashing applies.
func (r *Resource) ReleasePath(withHash bool) string {
	if withHash && r.UseHash {
		return strings.TrimSuffix(r.Release, r.RExt) + "_" + r.Fingerprint() + r.RExt
	}
	return r.Release
}

// MimeType returns the media type of the compiled form.
func (r *Resource) MimeType() string {
	if t := mime.TypeByExtension(r.RExt); t != "" {
		return t
	}
	return "application/x-" + strings.TrimPrefix(r.RExt, ".")
}

// DataURI encodes the current content as a base64 data URI.
func (r *Resource) DataURI() string {
	return "data:" + r.MimeType() + ";base64," + base64.StdEncoding.EncodeToString(r.Content())
}

// AddRequire appends a module identifier. Empty identifiers are ignored.
func (r *Resource) AddRequire(id string) {
	if id == "" {
		return
	}
	r.Requires = append(r.Requires, id)
}

// ID returns the module identifier of the resource: the sub-path without
// its leading slash, and without the extension for scripts.
func (r *Resource) ID() string {
	id := strings.TrimPrefix(r.SubPath, "/")
	if r.Kind == KindScript {
		id = strings.TrimSuffix(id, r.Ext)
	}
	return id
}
