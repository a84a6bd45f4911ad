package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/kiln/internal/config"
)

// flagBinding ties a flag to its configuration key.
type flagBinding struct {
	name      string
	shorthand string
	key       string
	usage     string
}

var boolFlags = []flagBinding{
	{"optimize", "o", config.Key("compile", "optimize"), "run optimizer stages"},
	{"hash", "m", config.Key("compile", "hash"), "fingerprint public URLs and release paths"},
	{"domain", "D", config.Key("compile", "domain"), "prefix public URLs with project.domain"},
	{"lint", "", config.Key("compile", "lint"), "run lint stages"},
	{"test", "t", config.Key("compile", "test"), "run test stages"},
	{"unique", "u", config.Key("compile", "unique"), "use a cache root of this run only"},
	{"debug", "", config.Key("compile", "debug"), "use the debug cache root"},
	{"no-cache", "", config.Key("compile", "no_cache"), "never revert from the compile cache"},
}

var stringFlags = []flagBinding{
	{"root", "r", config.Key("project", "root"), "project root"},
	{"dest", "d", config.Key("release", "output"), "release output directory, relative to the root"},
}

// newCompileFlags returns the flags shared by every compiling command,
// bound into v. Commands add the same set so one binding serves all.
func newCompileFlags(v *viper.Viper) *pflag.FlagSet {
	fs := pflag.NewFlagSet("compile", pflag.ContinueOnError)
	for _, f := range boolFlags {
		fs.BoolP(f.name, f.shorthand, false, f.usage)
	}
	for _, f := range stringFlags {
		fs.StringP(f.name, f.shorthand, "", f.usage)
	}
	for _, f := range append(append([]flagBinding{}, boolFlags...), stringFlags...) {
		_ = v.BindPFlag(f.key, fs.Lookup(f.name))
	}
	return fs
}
