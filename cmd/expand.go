package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/expand"
)

func newExpandCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand <file>",
		Short: "Print a file with its references expanded into directive tags",
		Long: `Print the intermediate form of a file: every resource reference the
compiler would resolve is replaced by its <<<keyword:literal>>> directive
tag. Nothing is compiled or written.

Examples:
  kiln expand index.html
  kiln expand js/app.js`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			full, err := filepath.Abs(filepath.Join(env.root, args[0]))
			if filepath.IsAbs(args[0]) {
				full, err = args[0], nil
			}
			if err != nil {
				return err
			}

			res := env.project.FileAt(filepath.ToSlash(full))
			if res == nil {
				return fmt.Errorf("no such file: %s", args[0])
			}
			if err := res.Read(); err != nil {
				return err
			}
			if !res.IsText() {
				return fmt.Errorf("%s is not a text file", args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), expand.Expand(res.Kind, res.Text()))
			return nil
		},
	}
	cmd.Flags().AddFlagSet(c.compileFlags)
	return cmd
}
