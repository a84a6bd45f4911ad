// Package config loads kiln configuration with Viper from a YAML file,
// KILN_ environment variables and command-line flags.
//
// Keys are joined with "::" instead of Viper's default "." so that stage
// keys such as "parser.less" and extension map entries such as ".less"
// survive as single map keys. Flags and environment variables address
// nested values as compile::hash and KILN_COMPILE_HASH.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/kiln/internal/compile"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/pipeline"
	"github.com/conneroisu/kiln/internal/resolve"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "KILN"
	// DefaultFile is read from the working directory when no file is given.
	DefaultFile = ".kiln.yml"
	// KeyDelimiter separates the levels of a configuration key.
	KeyDelimiter = "::"
)

type Config struct {
	Project ProjectConfig          `mapstructure:"project" yaml:"project"`
	Compile CompileConfig          `mapstructure:"compile" yaml:"compile"`
	Cache   CacheConfig            `mapstructure:"cache" yaml:"cache"`
	Release ReleaseConfig          `mapstructure:"release" yaml:"release"`
	Stages  map[string]StageConfig `mapstructure:"stages" yaml:"stages"`
	Log     LogConfig              `mapstructure:"log" yaml:"log"`
}

type ProjectConfig struct {
	Root    string            `mapstructure:"root" yaml:"root"`
	Domain  string            `mapstructure:"domain" yaml:"domain"`
	Exclude []string          `mapstructure:"exclude" yaml:"exclude"`
	ExtMap  map[string]string `mapstructure:"ext_map" yaml:"ext_map"`
}

type CompileConfig struct {
	Unique   bool `mapstructure:"unique" yaml:"unique"`
	Debug    bool `mapstructure:"debug" yaml:"debug"`
	Optimize bool `mapstructure:"optimize" yaml:"optimize"`
	Lint     bool `mapstructure:"lint" yaml:"lint"`
	Test     bool `mapstructure:"test" yaml:"test"`
	Hash     bool `mapstructure:"hash" yaml:"hash"`
	Domain   bool `mapstructure:"domain" yaml:"domain"`
	NoCache  bool `mapstructure:"no_cache" yaml:"no_cache"`
}

type CacheConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type ReleaseConfig struct {
	Output string `mapstructure:"output" yaml:"output"`
}

// StageConfig runs an external command as a pipeline stage.
type StageConfig struct {
	Command string        `mapstructure:"command" yaml:"command"`
	Args    []string      `mapstructure:"args" yaml:"args"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Key joins the levels of a configuration key.
func Key(parts ...string) string {
	return strings.Join(parts, KeyDelimiter)
}

// DefaultExtMap maps source extensions to the extension of their compiled
// form.
func DefaultExtMap() map[string]string {
	return map[string]string{
		".less":   ".css",
		".scss":   ".css",
		".sass":   ".css",
		".styl":   ".css",
		".ts":     ".js",
		".tsx":    ".js",
		".jsx":    ".js",
		".coffee": ".js",
		".es6":    ".js",
		".md":     ".html",
	}
}

// New returns a Viper instance with kiln's key delimiter, defaults and
// environment binding.
func New() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(KeyDelimiter, "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers the default value of every scalar key, which also
// makes each key reachable through the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(Key("project", "root"), ".")
	v.SetDefault(Key("project", "domain"), "")
	v.SetDefault(Key("project", "exclude"), []string{".git", "node_modules", ".kiln"})
	v.SetDefault(Key("project", "ext_map"), DefaultExtMap())

	for _, name := range []string{"unique", "debug", "optimize", "lint", "test", "hash", "domain", "no_cache"} {
		v.SetDefault(Key("compile", name), false)
	}

	v.SetDefault(Key("cache", "dir"), ".kiln/cache")
	v.SetDefault(Key("release", "output"), "dist")
	v.SetDefault(Key("log", "level"), "info")
	v.SetDefault(Key("log", "format"), "text")
}

// ReadFile reads the configuration file. An empty file name looks for
// DefaultFile in the working directory; a missing default file is not an
// error.
func ReadFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return kerrors.Wrap(err, kerrors.ErrorTypeConfig, kerrors.ErrCodeConfigInvalid,
				"unable to read config file "+file)
		}
		return nil
	}

	v.SetConfigFile(DefaultFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return nil
		}
		return kerrors.Wrap(err, kerrors.ErrorTypeConfig, kerrors.ErrCodeConfigInvalid,
			"unable to read config file "+DefaultFile)
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, kerrors.Wrap(err, kerrors.ErrorTypeConfig, kerrors.ErrCodeConfigInvalid,
			"unable to decode configuration")
	}

	if cfg.Project.ExtMap == nil {
		cfg.Project.ExtMap = map[string]string{}
	}
	if cfg.Stages == nil {
		cfg.Stages = map[string]StageConfig{}
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if result := Validate(&cfg); result.HasErrors() {
		first := result.Errors[0]
		return nil, kerrors.NewConfigError(kerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid configuration: %s", first.Error())).
			WithContext("errors", len(result.Errors))
	}
	return &cfg, nil
}

// Settings converts the compile section into compiler settings.
func (c CompileConfig) Settings() compile.Settings {
	return compile.Settings{
		Unique:   c.Unique,
		Debug:    c.Debug,
		Optimize: c.Optimize,
		Lint:     c.Lint,
		Test:     c.Test,
		Hash:     c.Hash,
		Domain:   c.Domain,
		NoCache:  c.NoCache,
	}
}

// ProjectOptions returns the resolver options of the project section.
// extra patterns, such as the output and cache directories, are excluded
// as well.
func (c *Config) ProjectOptions(extra ...string) []resolve.Option {
	return []resolve.Option{
		resolve.WithDomain(c.Project.Domain),
		resolve.WithExtMap(c.Project.ExtMap),
		resolve.WithExclude(append(append([]string{}, c.Project.Exclude...), extra...)...),
	}
}

// Registry builds a pipeline registry with one command stage per entry of
// the stages section. Commands run in dir.
func (c *Config) Registry(dir string) (*pipeline.Registry, error) {
	reg := pipeline.NewRegistry()
	for key, sc := range c.Stages {
		name, ext, ok := pipeline.ParseKey(key)
		if !ok {
			return nil, kerrors.NewConfigError(kerrors.ErrCodeConfigInvalid, "invalid stage key "+key)
		}
		stage, err := pipeline.NewCommandStage(sc.Command, sc.Args, dir, sc.Timeout)
		if err != nil {
			return nil, kerrors.Wrap(err, kerrors.ErrorTypeConfig, kerrors.ErrCodeConfigInvalid,
				"invalid stage "+key)
		}
		reg.Register(pipeline.Key(name, ext), stage)
	}
	return reg, nil
}
