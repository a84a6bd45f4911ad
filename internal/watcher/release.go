package watcher

import (
	"context"

	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/release"
	"github.com/conneroisu/kiln/internal/resource"
)

// Releaser runs a release over the given files, or over the whole project
// when none are given.
type Releaser interface {
	Run(ctx context.Context, files ...*resource.Resource) (*release.Result, error)
}

// ReleaseHandler re-runs a full release for every batch of changes. The
// cache keeps unchanged files cheap and invalidates files that embed a
// changed one. Failed files are reported and the watch goes on.
func ReleaseHandler(r Releaser, logger logging.Logger) ChangeHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("watcher")

	return func(ctx context.Context, events []ChangeEvent) error {
		paths := make([]string, len(events))
		for i, e := range events {
			paths[i] = e.Path
		}
		logger.Info(ctx, "rebuilding", "changed", paths)

		result, err := r.Run(ctx)
		if result == nil {
			return err
		}
		for _, f := range result.Failed {
			logger.Warn(ctx, f.Err, "file failed", "file", f.Path)
		}
		logger.Info(ctx, "rebuild finished",
			"written", len(result.Written),
			"failed", len(result.Failed),
			"cache_hits", result.CacheHits,
			"duration_ms", result.Duration.Milliseconds())
		return nil
	}
}
