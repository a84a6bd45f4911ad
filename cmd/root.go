// Package cmd provides the kiln command-line interface.
//
// Configuration is read from, highest priority first:
//
//  1. command-line flags (--hash, --dest, ...)
//  2. environment variables, KILN_<SECTION>_<OPTION> (KILN_COMPILE_HASH)
//  3. the configuration file: --config, else KILN_CONFIG_FILE, else .kiln.yml
//  4. built-in defaults
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/kiln/internal/config"
)

// cli holds the state shared by the commands of one invocation.
type cli struct {
	v            *viper.Viper
	cfgFile      string
	compileFlags *pflag.FlagSet
}

// Execute runs the kiln command line.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}
	c.compileFlags = newCompileFlags(c.v)

	root := &cobra.Command{
		Use:   "kiln",
		Short: "Compile and release static front-end assets",
		Long: `kiln compiles the static assets of a web project: it resolves resource
references in scripts, stylesheets and markup, embeds inlined files,
fingerprints public URLs and writes the release to an output directory.

Quick Start:
  kiln release                 Compile the project into ./dist
  kiln release --hash -d out   Fingerprint URLs and write to ./out
  kiln watch                   Release again on every change
  kiln expand index.html       Show the directive tags of a file
  kiln clean                   Remove the compile cache`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.readConfig()
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "",
		"config file (default is .kiln.yml, can also use KILN_CONFIG_FILE env var)")
	root.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = c.v.BindPFlag(config.Key("log", "level"), root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newReleaseCmd(c),
		newWatchCmd(c),
		newCleanCmd(c),
		newExpandCmd(c),
		newVersionCmd(),
	)
	return root
}

// readConfig reads the configuration file named by --config, else by
// KILN_CONFIG_FILE, else .kiln.yml when present.
func (c *cli) readConfig() error {
	file := c.cfgFile
	if file == "" {
		file = os.Getenv("KILN_CONFIG_FILE")
	}
	return config.ReadFile(c.v, file)
}
