package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/pipeline"
)

func loadYAML(t *testing.T, content string) (*Config, error) {
	t.Helper()
	v := New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(content)))
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, []string{".git", "node_modules", ".kiln"}, cfg.Project.Exclude)
	assert.Equal(t, ".css", cfg.Project.ExtMap[".less"])
	assert.Equal(t, ".kiln/cache", cfg.Cache.Dir)
	assert.Equal(t, "dist", cfg.Release.Output)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Stages)
	assert.Equal(t, CompileConfig{}, cfg.Compile)
}

func TestLoadFromYAML(t *testing.T) {
	cfg, err := loadYAML(t, `
project:
  root: site
  domain: https://cdn.example.com
  exclude: [drafts]
  ext_map:
    ".less": ".css"
    ".tpl": ".html"
compile:
  hash: true
  domain: true
  no_cache: true
stages:
  "parser.less":
    command: lessc
    args: ["-", "--no-color"]
    timeout: 10s
  "optimizer.js":
    command: terser
log:
  format: JSON
`)
	require.NoError(t, err)

	assert.Equal(t, "site", cfg.Project.Root)
	assert.Equal(t, "https://cdn.example.com", cfg.Project.Domain)
	assert.Equal(t, []string{"drafts"}, cfg.Project.Exclude)
	assert.Equal(t, ".html", cfg.Project.ExtMap[".tpl"])
	assert.True(t, cfg.Compile.Hash)
	assert.True(t, cfg.Compile.NoCache)
	assert.False(t, cfg.Compile.Optimize)
	assert.Equal(t, "json", cfg.Log.Format)

	require.Contains(t, cfg.Stages, "parser.less")
	assert.Equal(t, StageConfig{Command: "lessc", Args: []string{"-", "--no-color"}, Timeout: 10 * time.Second},
		cfg.Stages["parser.less"])
	assert.Equal(t, "terser", cfg.Stages["optimizer.js"].Command)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("KILN_COMPILE_HASH", "true")
	t.Setenv("KILN_RELEASE_OUTPUT", "public")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.True(t, cfg.Compile.Hash)
	assert.Equal(t, "public", cfg.Release.Output)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"absolute cache dir", "cache:\n  dir: /tmp/cache\n", "cache.dir"},
		{"traversal in output", "release:\n  output: ../out\n", "release.output"},
		{"unknown stage", "stages:\n  compile.less:\n    command: lessc\n", "stages.compile.less"},
		{"standard is not configurable", "stages:\n  standard.js:\n    command: cat\n", "stages.standard.js"},
		{"shell in command", "stages:\n  parser.less:\n    command: \"lessc;rm\"\n", "stages.parser.less.command"},
		{"shell in args", "stages:\n  parser.less:\n    command: lessc\n    args: [\"$(id)\"]\n", "stages.parser.less.args"},
		{"empty command", "stages:\n  parser.less:\n    args: [\"-\"]\n", "stages.parser.less.command"},
		{"log format", "log:\n  format: xml\n", "log.format"},
		{"ext map", "project:\n  ext_map:\n    less: css\n", "project.ext_map"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadYAML(t, tt.yaml)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, &kerrors.KilnError{Type: kerrors.ErrorTypeConfig, Code: kerrors.ErrCodeConfigInvalid})
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)
	cfg.Compile.Domain = true

	result := Validate(cfg)
	assert.True(t, result.Valid)
	assert.True(t, result.HasWarnings())
	assert.Contains(t, result.String(), "compile.domain")
}

func TestReadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/kiln.yaml", []byte("release:\n  output: www\n"), 0o644))

	v := New()
	v.SetFs(fs)
	require.NoError(t, ReadFile(v, "/proj/kiln.yaml"))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "www", cfg.Release.Output)

	v = New()
	v.SetFs(fs)
	assert.NoError(t, ReadFile(v, ""), "a missing default file is not an error")

	v = New()
	v.SetFs(fs)
	err = ReadFile(v, "/proj/missing.yml")
	require.Error(t, err)
	assert.Equal(t, kerrors.ErrCodeConfigInvalid, kerrors.Code(err))
	assert.Greater(t, len(kerrors.GetErrorChain(err)), 1, "the read error is kept as the cause")
}

func TestSettings(t *testing.T) {
	c := CompileConfig{Debug: true, Hash: true, NoCache: true}
	s := c.Settings()
	assert.True(t, s.Debug)
	assert.True(t, s.Hash)
	assert.True(t, s.NoCache)
	assert.False(t, s.Optimize)
}

func TestRegistry(t *testing.T) {
	cfg := &Config{Stages: map[string]StageConfig{
		"parser.LESS":  {Command: "lessc", Args: []string{"-"}},
		"optimizer.js": {Command: "terser"},
	}}
	reg, err := cfg.Registry("/proj")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"optimizer.js", "parser.less"}, reg.Keys())

	stage, ok := reg.Lookup(pipeline.Key(pipeline.Parser, ".less"))
	require.True(t, ok)
	assert.Equal(t, "lessc -", stage.(*pipeline.CommandStage).String())

	cfg.Stages["bogus"] = StageConfig{Command: "x"}
	_, err = cfg.Registry("/proj")
	assert.Error(t, err)

	delete(cfg.Stages, "bogus")
	cfg.Stages["parser.less"] = StageConfig{Command: "lessc;id"}
	_, err = cfg.Registry("/proj")
	require.Error(t, err)
	assert.True(t, kerrors.HasErrorType(err, kerrors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "invalid stage parser.less")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "compile::no_cache", Key("compile", "no_cache"))

	v := New()
	v.Set(Key("stages", "parser.less", "command"), "lessc")
	assert.Equal(t, "lessc", v.GetString("stages::parser.less::command"))
	assert.IsType(t, &viper.Viper{}, v)
}
