package cmd

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/watcher"
)

func newWatchCmd(c *cli) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"w"},
		Short:   "Release, then release again on every change",
		Long: `Run a release, then watch the project and release again whenever files
change. Bursts of changes are grouped; unchanged files are reverted from the
compile cache. Failed files are reported and watching goes on.

Examples:
  kiln watch                   # watch with the configured settings
  kiln watch --hash --debounce 500ms`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.environment(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := env.releaser()
			r.Setup()
			if result, err := r.Run(ctx); result != nil {
				printResult(cmd, result)
			} else if err != nil {
				return err
			}

			fw, err := watcher.NewFileWatcher(debounce, env.logger)
			if err != nil {
				return err
			}
			defer fw.Stop()

			fw.AddFilter(watcher.NoGitFilter)
			fw.AddFilter(watcher.NoTempFilter)
			fw.AddFilter(func(p string) bool { return !env.project.Excluded(filepath.ToSlash(p)) })
			fw.AddHandler(watcher.ReleaseHandler(r, env.logger))

			if err := fw.AddRecursive(env.root); err != nil {
				return err
			}
			if err := fw.Start(ctx); err != nil {
				return err
			}
			env.logger.Info(ctx, "watching for changes", "root", env.root)

			<-ctx.Done()
			if ctx.Err() == context.Canceled {
				return nil
			}
			return ctx.Err()
		},
	}
	cmd.Flags().AddFlagSet(c.compileFlags)
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "quiet period before a rebuild")
	return cmd
}
