package compile

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/cache"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/lang"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/pipeline"
	"github.com/conneroisu/kiln/internal/resolve"
	"github.com/conneroisu/kiln/internal/resource"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type fixture struct {
	fs       afero.Fs
	project  *resolve.Project
	store    *cache.Store
	registry *pipeline.Registry
	compiler *Compiler
	logs     *bytes.Buffer
}

func newFixture(t *testing.T, files map[string]string, opts ...resolve.Option) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, content := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
	}
	logs := &bytes.Buffer{}
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "json", Output: logs})

	project := resolve.NewProject(fs, "/web", opts...)
	store := cache.NewStore(fs, "/cache")
	registry := pipeline.NewRegistry()
	return &fixture{
		fs:       fs,
		project:  project,
		store:    store,
		registry: registry,
		compiler: New(project, store, registry, WithLogger(logger)),
		logs:     logs,
	}
}

func (f *fixture) compile(t *testing.T, real string) (*resource.Resource, error) {
	t.Helper()
	return f.compiler.Compile(context.Background(), f.project.File(real))
}

func (f *fixture) mustCompile(t *testing.T, real string) *resource.Resource {
	t.Helper()
	res, err := f.compile(t, real)
	require.NoError(t, err)
	return res
}

func countingStage(n *int) pipeline.Stage {
	return pipeline.StageFunc(func(_ context.Context, content []byte, _ *resource.Resource) ([]byte, error) {
		*n++
		return content, nil
	})
}

func TestSetup(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, "compile/release", f.compiler.Setup(Settings{}))
	assert.Equal(t, "compile/debug-optimize-hash-domain",
		f.compiler.Setup(Settings{Debug: true, Optimize: true, Hash: true, Domain: true}))
	assert.Equal(t, "compile/debug-optimize-hash-domain", f.store.Root())
	assert.True(t, f.compiler.Settings().Hash)

	unique := f.compiler.Setup(Settings{Unique: true})
	assert.True(t, strings.HasPrefix(unique, "compile_"))
}

func TestCompileRequiresSetup(t *testing.T) {
	f := newFixture(t, map[string]string{"/web/a.js": "a"})
	_, err := f.compile(t, "/web/a.js")
	assert.ErrorIs(t, err, kerrors.ErrCacheUninitialized)
}

func TestCompileInvalidResource(t *testing.T) {
	f := newFixture(t, nil)
	f.compiler.Setup(Settings{})
	_, err := f.compiler.Compile(context.Background(), nil)
	assert.ErrorIs(t, err, kerrors.ErrInvalidResource)
}

func TestRequire(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/a/b.js":  "module.exports = 1;",
		"/web/main.js": "var b = require('a/b.js');\nvar c = require(\"a/b.js\");\nvar $ = require('jquery');",
	})
	f.compiler.Setup(Settings{})

	res := f.mustCompile(t, "/web/main.js")
	assert.Equal(t, "var b = require('a/b');\nvar c = require(\"a/b\");\nvar $ = require('jquery');", res.Text())
	assert.Equal(t, []string{"a/b", "a/b", "jquery"}, res.Requires)
	assert.True(t, res.Compiled)
}

func TestCommentPragmaRequire(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/lib.js":  "",
		"/web/main.js": "/* @require lib.js */\nrun();",
	})
	f.compiler.Setup(Settings{})

	res := f.mustCompile(t, "/web/main.js")
	assert.Equal(t, "/* @require lib */\nrun();", res.Text())
	assert.Equal(t, []string{"lib"}, res.Requires)
}

func TestCircularEmbed(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/a.js": "var b = __inline('b.js');",
		"/web/b.js": "var a = __inline('a.js');",
		"/web/c.js": "var c = 1;",
	})
	f.compiler.Setup(Settings{Hash: true})

	_, err := f.compile(t, "/web/a.js")
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrCircularDependency)
	assert.Contains(t, err.Error(), "circular dependency on [/web/a.js] -> [/web/b.js] -> [/web/a.js]")
	assert.Contains(t, err.Error(), "in [/b.js] in [/a.js]")
	assert.Equal(t, 1, strings.Count(f.logs.String(), `"msg":"Error occurred"`))

	res := f.mustCompile(t, "/web/c.js")
	assert.Equal(t, "var c = 1;", res.Text(), "later compiles are not blocked by stale claims")
}

func TestSelfEmbed(t *testing.T) {
	var parses int
	f := newFixture(t, map[string]string{"/web/a.js": "var me = __inline('a.js');"})
	f.registry.Register("parser.js", countingStage(&parses))
	f.compiler.Setup(Settings{})

	_, err := f.compile(t, "/web/a.js")
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrCircularDependency)
	assert.Contains(t, err.Error(), "unable to embed file [/web/a.js] into itself")
	assert.Equal(t, 1, parses, "no nested compile is attempted")
}

func TestCacheRevertSkipsPipeline(t *testing.T) {
	var parses int
	var events []string
	f := newFixture(t, map[string]string{
		"/web/a/b.js":  "",
		"/web/main.js": "require('a/b.js');",
	})
	f.registry.Register("parser.js", countingStage(&parses))
	record := func(name string) Hook {
		return func(*resource.Resource) { events = append(events, name) }
	}
	f.compiler.Setup(Settings{Hooks: Hooks{
		BeforeCacheRevert: record("beforeCacheRevert"),
		AfterCacheRevert:  record("afterCacheRevert"),
		BeforeCompile:     record("beforeCompile"),
		AfterCompile:      record("afterCompile"),
	}})

	first := f.mustCompile(t, "/web/main.js")
	content, requires := first.Text(), append([]string(nil), first.Requires...)
	first.Extras["entry"] = true

	second := f.mustCompile(t, "/web/main.js")
	assert.Equal(t, 1, parses, "a reverted resource runs no stage")
	assert.Equal(t, content, second.Text())
	assert.Equal(t, requires, second.Requires)
	assert.Empty(t, second.Extras, "extras come from the saved snapshot")
	assert.Equal(t, []string{"beforeCompile", "afterCompile", "beforeCacheRevert", "afterCacheRevert"}, events)
}

func TestFreshCompileSavesFinalState(t *testing.T) {
	var parses int
	f := newFixture(t, map[string]string{
		"/web/a/b.js":  "",
		"/web/main.js": "require('a/b.js');",
	})
	f.registry.Register("parser.js", countingStage(&parses))
	f.compiler.Setup(Settings{NoCache: true, Hooks: Hooks{
		AfterCompile: func(r *resource.Resource) { r.Extras["stamp"] = "x" },
	}})

	f.mustCompile(t, "/web/main.js")
	res := f.mustCompile(t, "/web/main.js")
	assert.Equal(t, 2, parses, "the cache is bypassed")
	assert.Equal(t, []string{"a/b"}, res.Requires, "requires are rebuilt, not accumulated")

	rec, err := f.store.Record("/web/main.js")
	require.NoError(t, err)
	var snap cache.Snapshot
	require.True(t, rec.Revert(&snap))
	assert.Equal(t, res.Text(), string(snap.Content))
	assert.Equal(t, res.Requires, snap.Info.Requires)
	assert.Equal(t, "x", snap.Info.Extras["stamp"])
}

func TestUseCacheOff(t *testing.T) {
	var parses int
	f := newFixture(t, map[string]string{"/web/a.js": "a"})
	f.registry.Register("parser.js", countingStage(&parses))
	f.compiler.Setup(Settings{})

	res := f.project.File("/web/a.js")
	res.UseCache = false
	for i := 0; i < 2; i++ {
		_, err := f.compiler.Compile(context.Background(), res)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, parses)
}

func TestEmbedDependencyInvalidatesCache(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/a.js": "var b = __inline('b.js');",
		"/web/b.js": "1",
	})
	f.compiler.Setup(Settings{})

	res := f.mustCompile(t, "/web/a.js")
	assert.Equal(t, "var b = 1;", res.Text())
	assert.Equal(t, []string{"/web/b.js"}, res.Cache.Deps())

	require.NoError(t, afero.WriteFile(f.fs, "/web/b.js", []byte("2"), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, f.fs.Chtimes("/web/b.js", later, later))

	res = f.mustCompile(t, "/web/a.js")
	assert.Equal(t, "var b = 2;", res.Text())
}

func TestURIUnresolvedPassesThrough(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/a.css": ".a{background:url(missing.png)}\n.b{background:url('http://x.com/a.png')}",
	})
	f.compiler.Setup(Settings{Hash: true})

	res := f.mustCompile(t, "/web/a.css")
	assert.Equal(t, ".a{background:url(missing.png)}\n.b{background:url('http://x.com/a.png')}", res.Text())
	assert.Empty(t, res.Cache.Deps())
}

func TestImportInline(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/x.css":    "body{}",
		"/web/main.css": `@import url("x.css?__inline");`,
	})
	f.compiler.Setup(Settings{})

	res := f.mustCompile(t, "/web/main.css")
	assert.Equal(t, "body{}", res.Text())
}

func TestImageInlineAndHashedURL(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/a.png":      string(pngBytes),
		"/web/index.html": `<img src="a.png?__inline"><img src="a.png">`,
	})
	f.compiler.Setup(Settings{Hash: true})

	res := f.mustCompile(t, "/web/index.html")
	png := f.project.File("/web/a.png")
	want := `<img src="data:image/png;base64,` + base64.StdEncoding.EncodeToString(pngBytes) + `">` +
		`<img src="/a_` + png.Fingerprint() + `.png">`
	assert.Equal(t, want, res.Text())
	assert.Contains(t, res.Cache.Deps(), "/web/a.png")
	assert.False(t, res.UseHash, "markup itself is not fingerprinted")
}

func TestURIQueryFragmentAndDomain(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/img/a.png": string(pngBytes),
		"/web/css/a.css": ".a{background:url(../img/a.png?v=1#icon)}",
	}, resolve.WithDomain("https://cdn.example.com"))
	f.compiler.Setup(Settings{Domain: true})

	res := f.mustCompile(t, "/web/css/a.css")
	assert.Equal(t, ".a{background:url(https://cdn.example.com/img/a.png?v=1#icon)}", res.Text())
	assert.Empty(t, res.Cache.Deps(), "targets are only compiled when hashing")

	png := f.project.File("/web/img/a.png")
	png.Query = "?t=9"
	f.compiler.Setup(Settings{NoCache: true})
	res = f.mustCompile(t, "/web/css/a.css")
	assert.Equal(t, ".a{background:url(/img/a.png?t=9&v=1#icon)}", res.Text())
}

func TestEmbedPropagatesRequires(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/c.js": "",
		"/web/b.js": "require('c.js'); require('c.js');",
		"/web/a.js": "require('c.js');\n__inline('b.js');",
	})
	f.compiler.Setup(Settings{})

	res := f.mustCompile(t, "/web/a.js")
	assert.Equal(t, "require('c');\nrequire('c'); require('c');;", res.Text())
	assert.Equal(t, []string{"c", "c", "c"}, res.Requires)
}

func TestJSEmbed(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/t.tpl":     `<div class="x">"hi"</div>`,
		"/web/d.json":    `{"a":1}`,
		"/web/lib.js":    "function lib(){}",
		"/web/main.js":   "var t = __inline('t.tpl');\nvar d = __inline('d.json');\n__inline('lib.js');",
		"/shared/ext.js": "ext()",
		"/web/abs.js":    "__inline('/shared/ext.js');",
	})
	f.compiler.Setup(Settings{})

	res := f.mustCompile(t, "/web/main.js")
	assert.Equal(t, "var t = \"<div class=\\\"x\\\">\\\"hi\\\"</div>\";\nvar d = {\"a\":1};\nfunction lib(){};", res.Text())

	res = f.mustCompile(t, "/web/abs.js")
	assert.Equal(t, "ext();", res.Text())
}

func TestEmbedNotFound(t *testing.T) {
	f := newFixture(t, map[string]string{"/web/a.js": "__inline('nope.js');"})
	f.compiler.Setup(Settings{})

	_, err := f.compile(t, "/web/a.js")
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrEmbedNotFound)
	assert.Contains(t, err.Error(), "unable to embed non-existent file ['nope.js'] in [/a.js]")
}

func TestDepDirective(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/b.css": "b{}",
		"/web/a.css": "a{}<<<dep:'b.css'>>><<<dep:'missing.css'>>>",
	})
	f.compiler.Setup(Settings{})

	res := f.mustCompile(t, "/web/a.css")
	assert.Equal(t, "a{}", res.Text())
	assert.Equal(t, []string{"/web/b.css"}, res.Cache.Deps())
}

func TestDepWithoutCacheRecordWarns(t *testing.T) {
	f := newFixture(t, nil)
	f.compiler.Setup(Settings{})

	virtual := f.project.File("/web/virtual.css")
	virtual.SetText("a{}<<<dep:'b.css'>>>")
	res, err := f.compiler.Compile(context.Background(), virtual)
	require.NoError(t, err)
	assert.Equal(t, "a{}", res.Text())
	assert.Nil(t, res.Cache)
	assert.Contains(t, f.logs.String(), "unable to add deps to file [/web/virtual.css]")
	assert.Contains(t, f.logs.String(), `"level":"WARN"`)
}

func TestCompileDisabledReadsRaw(t *testing.T) {
	var parses int
	f := newFixture(t, map[string]string{"/web/a.js": "require('x.js');"})
	f.registry.Register("parser.js", countingStage(&parses))
	f.compiler.Setup(Settings{Hash: true})

	res := f.project.File("/web/a.js")
	res.UseCompile = false
	_, err := f.compiler.Compile(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "require('x.js');", res.Text())
	assert.Zero(t, parses)
	assert.Nil(t, res.Cache)
	assert.True(t, res.Compiled)
}

func TestStageFailureIsAnnotated(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/web/main.less": "@x: ;",
		"/web/a.js":      "__inline('main.less');",
	})
	f.registry.Register("parser.less", pipeline.StageFunc(
		func(context.Context, []byte, *resource.Resource) ([]byte, error) {
			return nil, errors.New("missing value")
		}))
	f.compiler.Setup(Settings{})

	_, err := f.compile(t, "/web/a.js")
	require.Error(t, err)
	assert.ErrorIs(t, err, kerrors.ErrStageFailed)
	assert.Equal(t, "parser.less: missing value [/web/main.less] in [/a.js]", err.Error())
}

func TestUnsupportedDirective(t *testing.T) {
	s := &session{compiler: New(nil, cache.NewStore(afero.NewMemMapFs(), "/c"), nil)}
	res := resource.New(afero.NewMemMapFs(), "/web", "/web/a.js", "")
	_, err := s.resolveTag(context.Background(), res, lang.Match{Keyword: "bogus"})
	assert.ErrorIs(t, err, kerrors.ErrUnsupportedDirective)
}

func TestContextCancelled(t *testing.T) {
	f := newFixture(t, map[string]string{"/web/a.js": "a"})
	f.compiler.Setup(Settings{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.compiler.Compile(ctx, f.project.File("/web/a.js"))
	assert.ErrorIs(t, err, context.Canceled)
}
