package cmd

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/release"
	"github.com/conneroisu/kiln/internal/resource"
)

func newReleaseCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "release [files...]",
		Aliases: []string{"r"},
		Short:   "Compile the project and write the release",
		Long: `Compile every project file, or only the given files, and write the
compiled form to the output directory at each file's release path.

A file that fails to compile is reported and the release goes on; the
command fails when any file failed.

Examples:
  kiln release                       # release the whole project
  kiln release --hash --domain       # fingerprinted URLs with the CDN domain
  kiln release -d public index.html  # one file into ./public`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			r := env.releaser()
			r.Setup()

			files := make([]*resource.Resource, 0, len(args))
			for _, arg := range args {
				res := env.lookup(arg)
				if res == nil {
					return fmt.Errorf("no such project file: %s", arg)
				}
				files = append(files, res)
			}

			result, err := r.Run(cmd.Context(), files...)
			if result != nil {
				printResult(cmd, result)
			}
			return err
		},
	}
	cmd.Flags().AddFlagSet(c.compileFlags)
	return cmd
}

// lookup finds the project file named by a command-line argument. The
// argument is taken relative to the working directory when that lands
// inside the project, else relative to the project root.
func (e *environment) lookup(arg string) *resource.Resource {
	if abs, err := filepath.Abs(arg); err == nil {
		abs = filepath.ToSlash(abs)
		if rel, ok := strings.CutPrefix(abs, strings.TrimSuffix(e.root, "/")+"/"); ok {
			if res := e.project.Lookup("/" + rel); res != nil {
				return res
			}
		}
	}
	return e.project.Lookup(path.Clean("/" + filepath.ToSlash(arg)))
}

func printResult(cmd *cobra.Command, result *release.Result) {
	out := cmd.OutOrStdout()
	for _, f := range result.Failed {
		if f.Code != "" {
			fmt.Fprintf(out, "FAIL %s [%s]\n", f.Path, f.Code)
			continue
		}
		fmt.Fprintf(out, "FAIL %s\n", f.Path)
	}
	fmt.Fprintf(out, "released %d files (%d from cache, %d failed) in %s\n",
		len(result.Written), result.CacheHits, len(result.Failed), result.Duration.Round(time.Millisecond))
}
