package resolve

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProject(t *testing.T, opts ...Option) *Project {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/web/index.html":          "<html></html>",
		"/web/a/b.js":              "b",
		"/web/a/c.js":              "c",
		"/web/img/logo.png":        "png",
		"/web/styles/main.less":    "less",
		"/web/node_modules/x/x.js": "x",
		"/web/.kiln/cache/x.tmp":   "tmp",
		"/shared/lib.js":           "lib",
	}
	for p, content := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
	}
	return NewProject(fs, "/web", opts...)
}

func TestFileIsMemoised(t *testing.T) {
	p := newTestProject(t)
	assert.Same(t, p.File("/web/a/b.js"), p.File("/web/a/../a/b.js"))
}

func TestFileAppliesExtMapAndDomain(t *testing.T) {
	p := newTestProject(t,
		WithExtMap(map[string]string{".LESS": ".css"}),
		WithDomain("https://cdn.example.com"))

	r := p.File("/web/styles/main.less")
	assert.Equal(t, ".css", r.RExt)
	assert.Equal(t, "/styles/main.css", r.Release)
	assert.Equal(t, "https://cdn.example.com", r.Domain)
}

func TestReference(t *testing.T) {
	p := newTestProject(t)

	tests := []struct {
		name     string
		literal  string
		dir      string
		wantPath string
		quote    string
		query    string
		fragment string
	}{
		{"relative quoted", `'b.js'`, "/web/a", "/web/a/b.js", "'", "", ""},
		{"parent dir", `"../img/logo.png?v=2#top"`, "/web/a", "/web/img/logo.png", `"`, "?v=2", "#top"},
		{"root relative", `/a/c.js`, "/web/img", "/web/a/c.js", "", "", ""},
		{"inline flag kept in query", `"logo.png?__inline"`, "/web/img", "/web/img/logo.png", `"`, "?__inline", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := p.Reference(tt.literal, tt.dir)
			require.NotNil(t, ref.Resource)
			assert.Equal(t, tt.wantPath, ref.Resource.RealPath)
			assert.Equal(t, tt.quote, ref.Quote)
			assert.Equal(t, tt.query, ref.Query)
			assert.Equal(t, tt.fragment, ref.Fragment)
			assert.Equal(t, tt.literal, ref.Origin)
		})
	}
}

func TestReferenceUnresolved(t *testing.T) {
	p := newTestProject(t)

	for _, literal := range []string{
		`'missing.png'`,
		`"https://example.com/a.js"`,
		`//cdn.example.com/a.js`,
		`"data:image/png;base64,AAAA"`,
		`'../../shared/lib.js'`,
		`''`,
	} {
		t.Run(literal, func(t *testing.T) {
			ref := p.Reference(literal, "/web/a")
			assert.Nil(t, ref.Resource)
		})
	}

	ref := p.Reference(`"missing.png?x=1"`, "/web")
	assert.Equal(t, "missing.png", ref.Rest)
	assert.Equal(t, `"`, ref.Quote)
}

func TestModuleID(t *testing.T) {
	p := newTestProject(t)

	ref := p.ModuleID(`'a/b.js'`, "/web")
	assert.Equal(t, ModuleRef{ID: "a/b", Quote: "'"}, ref)

	ref = p.ModuleID(`"jquery"`, "/web")
	assert.Equal(t, ModuleRef{ID: "jquery", Quote: `"`}, ref)
}

func TestFileAt(t *testing.T) {
	p := newTestProject(t)

	r := p.FileAt("/shared/lib.js")
	require.NotNil(t, r)
	assert.Equal(t, "/shared/lib.js", r.SubPath)

	assert.Nil(t, p.FileAt("relative/lib.js"))
	assert.Nil(t, p.FileAt("/shared/missing.js"))
}

func TestLookup(t *testing.T) {
	p := newTestProject(t)
	require.NotNil(t, p.Lookup("/a/b.js"))
	require.NotNil(t, p.Lookup("a/b.js"))
	assert.Nil(t, p.Lookup("/a/zz.js"))
}

func TestWalk(t *testing.T) {
	p := newTestProject(t, WithExclude("node_modules", ".kiln", "*.png"))

	files, err := p.Walk()
	require.NoError(t, err)

	var subs []string
	for _, f := range files {
		subs = append(subs, f.SubPath)
	}
	assert.Equal(t, []string{"/a/b.js", "/a/c.js", "/index.html", "/styles/main.less"}, subs)

	assert.True(t, p.Excluded("/web/node_modules/x/x.js"))
	assert.False(t, p.Excluded("/web/a/b.js"))
}
