package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProject writes files below a new project root and a config file
// naming that root outside of it. It returns the root and the config path.
func writeProject(t *testing.T, files map[string]string) (string, string) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	config := "project:\n  root: " + filepath.ToSlash(root) + "\nlog:\n  level: error\n"
	cfgFile := filepath.Join(t.TempDir(), ".kiln.yml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(config), 0o644))
	return root, cfgFile
}

func run(t *testing.T, cfgFile string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config", cfgFile))
	err := cmd.Execute()
	return out.String(), err
}

func TestReleaseCommand(t *testing.T) {
	root, cfg := writeProject(t, map[string]string{
		"index.html": `<script src="js/app.js?__inline"></script>`,
		"js/app.js":  "require('lib.js');",
		"js/lib.js":  "lib()",
	})

	out, err := run(t, cfg, "release")
	require.NoError(t, err)
	assert.Contains(t, out, "released 3 files (0 from cache, 0 failed)")

	html, err := os.ReadFile(filepath.Join(root, "dist", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<script>require('js/lib');</script>", string(html))
	assert.DirExists(t, filepath.Join(root, ".kiln", "cache", "compile", "release"))

	out, err = run(t, cfg, "release")
	require.NoError(t, err)
	assert.Contains(t, out, "released 3 files (3 from cache, 0 failed)", "the cache and output dirs are not released")
}

func TestReleaseCommandFlags(t *testing.T) {
	root, cfg := writeProject(t, map[string]string{
		"a.css":      "body{}",
		"index.html": `<link rel="stylesheet" href="a.css">`,
	})

	_, err := run(t, cfg, "release", "--hash", "-d", "public", "index.html")
	require.NoError(t, err)

	html, err := os.ReadFile(filepath.Join(root, "public", "index.html"))
	require.NoError(t, err)
	assert.Regexp(t, `^<link rel="stylesheet" href="/a_[0-9a-f]{8}\.css">$`, string(html))
	assert.NoFileExists(t, filepath.Join(root, "dist", "index.html"))
	assert.DirExists(t, filepath.Join(root, ".kiln", "cache", "compile", "release-hash"))
}

func TestReleaseCommandRelativeArgument(t *testing.T) {
	root, cfg := writeProject(t, map[string]string{
		"index.html": "<p>site</p>",
		"other.html": "<p>other</p>",
	})
	t.Chdir(filepath.Dir(root))

	out, err := run(t, cfg, "release", filepath.Join(filepath.Base(root), "index.html"), "other.html")
	require.NoError(t, err)
	assert.Contains(t, out, "released 2 files")
	assert.FileExists(t, filepath.Join(root, "dist", "index.html"))
}

func TestReleaseCommandFailure(t *testing.T) {
	root, cfg := writeProject(t, map[string]string{
		"a.js": "__inline('a.js')",
		"b.js": "b()",
	})

	out, err := run(t, cfg, "release")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "into itself")
	assert.Contains(t, out, "FAIL /a.js")
	assert.FileExists(t, filepath.Join(root, "dist", "b.js"))
}

func TestReleaseCommandUnknownFile(t *testing.T) {
	_, cfg := writeProject(t, nil)
	_, err := run(t, cfg, "release", "missing.js")
	assert.ErrorContains(t, err, "no such project file")
}

func TestExpandCommand(t *testing.T) {
	_, cfg := writeProject(t, map[string]string{
		"app.js": "var a = require('a.js'); __inline('b.js');",
	})

	out, err := run(t, cfg, "expand", "app.js")
	require.NoError(t, err)
	assert.Equal(t, "var a = require(<<<require:'a.js'>>>); <<<jsEmbed:'b.js'>>>;", out)
}

func TestCleanCommand(t *testing.T) {
	root, cfg := writeProject(t, map[string]string{"a.js": "a()"})
	cacheDir := filepath.Join(root, ".kiln", "cache", "compile")

	_, err := run(t, cfg, "release")
	require.NoError(t, err)
	_, err = run(t, cfg, "release", "--hash")
	require.NoError(t, err)

	out, err := run(t, cfg, "clean", "--current", "--hash")
	require.NoError(t, err)
	assert.Contains(t, out, "removed compile/release-hash")
	assert.NoDirExists(t, filepath.Join(cacheDir, "release-hash"))
	assert.DirExists(t, filepath.Join(cacheDir, "release"))

	_, err = run(t, cfg, "clean")
	require.NoError(t, err)
	assert.NoDirExists(t, cacheDir)

	_, err = run(t, cfg, "clean", "../../etc")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	_, cfg := writeProject(t, nil)
	bad := "cache:\n  dir: /abs/cache\n"
	require.NoError(t, os.WriteFile(cfg, []byte(bad), 0o644))

	_, err := run(t, cfg, "release")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.dir")
}

func TestVersionCommand(t *testing.T) {
	_, cfg := writeProject(t, nil)

	out, err := run(t, cfg, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "kiln "))

	out, err = run(t, cfg, "version", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"go_version"`)

	_, err = run(t, cfg, "version", "--format", "xml")
	assert.Error(t, err)
}
