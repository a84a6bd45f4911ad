// Package release compiles project files and writes their compiled form to
// an output directory, at each resource's release path.
package release

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/kiln/internal/compile"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/resolve"
	"github.com/conneroisu/kiln/internal/resource"
)

// Failure is a file whose compile failed.
type Failure struct {
	Path string
	// Code is the error code of Err, empty when it has none.
	Code string
	Err  error
}

// Result describes one release run.
type Result struct {
	// Written lists the output files in release order.
	Written   []string
	Failed    []Failure
	CacheHits int
	Duration  time.Duration
}

// Releaser runs releases of one project. Runs are serialised: resources are
// shared between runs and compiled in place.
type Releaser struct {
	project  *resolve.Project
	compiler *compile.Compiler
	output   string
	settings compile.Settings
	logger   logging.Logger
	metrics  *Metrics

	mu      sync.Mutex
	top     *resource.Resource
	current *Result
}

// Option configures a Releaser.
type Option func(*Releaser)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Releaser) { r.logger = logger }
}

// WithMetrics records every run into m.
func WithMetrics(m *Metrics) Option {
	return func(r *Releaser) { r.metrics = m }
}

// New creates a releaser writing below output on the project filesystem.
func New(project *resolve.Project, compiler *compile.Compiler, output string, settings compile.Settings, opts ...Option) *Releaser {
	r := &Releaser{
		project:  project,
		compiler: compiler,
		output:   path.Clean(output),
		settings: settings,
		logger:   logging.NewNopLogger(),
		metrics:  NewMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("release")
	return r
}

// Metrics returns the metrics tracker.
func (r *Releaser) Metrics() *Metrics { return r.metrics }

// Setup applies the releaser's settings to the compiler and returns the
// cache root name.
func (r *Releaser) Setup() string {
	settings := r.settings
	user := settings.Hooks.AfterCacheRevert
	settings.Hooks.AfterCacheRevert = func(res *resource.Resource) {
		if r.current != nil && res == r.top {
			r.current.CacheHits++
		}
		if user != nil {
			user(res)
		}
	}
	return r.compiler.Setup(settings)
}

// Run compiles files, or every project file when none are given, and
// writes each compiled file to the output directory. A failing file does
// not stop the run; the returned error joins every failure.
func (r *Releaser) Run(ctx context.Context, files ...*resource.Resource) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := logging.StartOperation(r.logger, "release")
	start := time.Now()

	if len(files) == 0 {
		all, err := r.project.Walk()
		if err != nil {
			op.EndWithError(ctx, err)
			return nil, kerrors.NewIOError(kerrors.ErrCodeFileNotFound, "unable to walk project "+r.project.Root(), err)
		}
		files = all
	}

	result := &Result{}
	r.current = result
	defer func() { r.current, r.top = nil, nil }()

	var errs []error
	for _, res := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, err := r.releaseFile(ctx, res)
		if err != nil {
			result.Failed = append(result.Failed, Failure{Path: res.SubPath, Code: kerrors.Code(err), Err: err})
			errs = append(errs, err)
			// every other file would fail the same way
			if kerrors.HasErrorType(err, kerrors.ErrorTypeConfig) {
				break
			}
			continue
		}
		result.Written = append(result.Written, out)
	}

	result.Duration = time.Since(start)
	r.metrics.Record(result)

	err := errors.Join(errs...)
	if err != nil {
		op.EndWithError(ctx, err)
	} else {
		op.End(ctx, "files", len(result.Written), "cache_hits", result.CacheHits)
	}
	return result, err
}

func (r *Releaser) releaseFile(ctx context.Context, res *resource.Resource) (string, error) {
	r.top = res
	if _, err := r.compiler.Compile(ctx, res); err != nil {
		return "", err
	}

	out := path.Join(r.output, res.ReleasePath(r.settings.Hash))
	fs := r.project.Fs()
	if err := fs.MkdirAll(path.Dir(out), 0o755); err != nil {
		return "", kerrors.NewIOError(kerrors.ErrCodeInvalidPath, "unable to create output directory", err).
			WithLocation(out, 0, 0)
	}
	if err := afero.WriteFile(fs, out, res.Content(), 0o644); err != nil {
		return "", kerrors.NewIOError(kerrors.ErrCodeInvalidPath, "unable to write output file", err).
			WithLocation(out, 0, 0)
	}
	r.logger.Debug(ctx, "file released", "file", res.SubPath, "output", out)
	return out, nil
}
