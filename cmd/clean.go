package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanCmd(c *cli) *cobra.Command {
	var current bool

	cmd := &cobra.Command{
		Use:   "clean [root]",
		Short: "Remove compile cache roots",
		Long: `Remove compile cache roots from the cache directory.

Without arguments every compile root is removed. A root name such as
"release-hash" removes that root only; --current removes the root that the
current compile flags select.

Examples:
  kiln clean                  # everything
  kiln clean release-optimize # one root
  kiln clean --current --hash # the root of "kiln release --hash"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			target := "all compile roots"
			switch {
			case current:
				target = env.compiler.Setup(env.cfg.Compile.Settings())
			case name != "":
				target = "compile/" + name
			}

			if err := env.compiler.Clean(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", target, env.store.Dir())
			return nil
		},
	}
	cmd.Flags().AddFlagSet(c.compileFlags)
	cmd.Flags().BoolVar(&current, "current", false, "remove the root selected by the compile flags")
	return cmd
}
