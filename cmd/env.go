package cmd

import (
	"io"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/conneroisu/kiln/internal/cache"
	"github.com/conneroisu/kiln/internal/compile"
	"github.com/conneroisu/kiln/internal/config"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/release"
	"github.com/conneroisu/kiln/internal/resolve"
	"github.com/conneroisu/kiln/internal/version"
)

// environment is a loaded configuration with the project, compiler and
// logger built from it.
type environment struct {
	cfg      *config.Config
	logger   logging.Logger
	root     string
	project  *resolve.Project
	store    *cache.Store
	compiler *compile.Compiler
}

func (c *cli) environment(stderr io.Writer) (*environment, error) {
	cfg, err := config.Load(c.v)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: stderr,
	})

	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, err
	}
	root = filepath.ToSlash(root)

	fs := afero.NewOsFs()
	project := resolve.NewProject(fs, root, cfg.ProjectOptions(cfg.Release.Output, cfg.Cache.Dir)...)
	registry, err := cfg.Registry(root)
	if err != nil {
		return nil, err
	}
	store := cache.NewStore(fs, path.Join(root, cfg.Cache.Dir), cache.WithVersion(version.CacheKey()))

	return &environment{
		cfg:      cfg,
		logger:   logger,
		root:     root,
		project:  project,
		store:    store,
		compiler: compile.New(project, store, registry, compile.WithLogger(logger)),
	}, nil
}

func (e *environment) releaser() *release.Releaser {
	return release.New(e.project, e.compiler, path.Join(e.root, e.cfg.Release.Output),
		e.cfg.Compile.Settings(), release.WithLogger(e.logger))
}
