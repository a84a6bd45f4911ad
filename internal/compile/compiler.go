// Package compile turns project resources into their release form.
//
// Compile runs one top-level compile session: it reverts the resource from
// the cache or runs the stage pipeline over it, and the pipeline's standard
// step expands and resolves every resource reference in the content,
// compiling embedded and fingerprinted targets depth first. Every session
// owns its cycle guard, so independent top-level compiles never share
// state.
package compile

import (
	"context"
	"sync"

	"github.com/conneroisu/kiln/internal/cache"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/lock"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/pipeline"
	"github.com/conneroisu/kiln/internal/resolve"
	"github.com/conneroisu/kiln/internal/resource"
)

// Resolver maps reference literals to resources and module identifiers.
type Resolver interface {
	ModuleID(literal, dir string) resolve.ModuleRef
	Reference(literal, dir string) resolve.Reference
	FileAt(absPath string) *resource.Resource
}

// Hook observes a resource at a point of the compile lifecycle. It may
// change the resource but not its identity.
type Hook func(res *resource.Resource)

// Hooks are called synchronously around cache reverts and fresh compiles.
// Nil hooks are skipped.
type Hooks struct {
	BeforeCacheRevert Hook
	AfterCacheRevert  Hook
	BeforeCompile     Hook
	AfterCompile      Hook
}

func (h Hook) call(res *resource.Resource) {
	if h != nil {
		h(res)
	}
}

// Settings control a compile run.
type Settings struct {
	// Unique gives the run a cache root of its own.
	Unique   bool
	Debug    bool
	Optimize bool
	Lint     bool
	Test     bool
	// Hash fingerprints public URLs and compiles uri targets first.
	Hash bool
	// Domain prefixes public URLs with the resource domain.
	Domain bool
	// NoCache never reverts from the cache. Results are still saved.
	NoCache bool
	Hooks   Hooks
}

// Compiler compiles resources of one project.
type Compiler struct {
	resolver   Resolver
	store      *cache.Store
	dispatcher *pipeline.Dispatcher
	logger     logging.Logger
	errs       *kerrors.ErrorHandler

	mu       sync.RWMutex
	settings Settings
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger. Compile failures are reported through it.
func WithLogger(logger logging.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// New creates a compiler. Setup must be called before Compile.
func New(resolver Resolver, store *cache.Store, registry *pipeline.Registry, opts ...Option) *Compiler {
	c := &Compiler{
		resolver: resolver,
		store:    store,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if registry == nil {
		registry = pipeline.NewRegistry()
	}
	c.dispatcher = pipeline.NewDispatcher(registry, c.logger)
	c.logger = c.logger.WithComponent("compile")
	c.errs = kerrors.NewErrorHandler(c.logger)
	return c
}

// Setup applies settings and selects the matching cache root, whose name it
// returns.
func (c *Compiler) Setup(settings Settings) string {
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()

	name := cache.RootName(cache.RootOptions{
		Unique:   settings.Unique,
		Debug:    settings.Debug,
		Optimize: settings.Optimize,
		Hash:     settings.Hash,
		Domain:   settings.Domain,
	})
	c.store.SetRoot(name)
	return name
}

// Settings returns the settings of the last Setup.
func (c *Compiler) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Clean removes the cache root name below "compile/", or the current root
// when name is empty, or every compile root when Setup was never called.
func (c *Compiler) Clean(name string) error {
	return c.store.Clean(name)
}

// Compile compiles res and everything it embeds. On failure the error is
// logged once and returned, and res must not be used.
func (c *Compiler) Compile(ctx context.Context, res *resource.Resource) (*resource.Resource, error) {
	if c.store.Root() == "" {
		c.errs.Handle(ctx, kerrors.ErrCacheUninitialized)
		return nil, kerrors.ErrCacheUninitialized
	}
	if res == nil || res.RealPath == "" || res.RealPath == "." {
		sub := ""
		if res != nil {
			sub = res.SubPath
		}
		err := kerrors.NewValidationError(kerrors.ErrCodeInvalidResource,
			"unable to compile ["+sub+"]: invalid file realpath")
		c.errs.Handle(ctx, err)
		return nil, err
	}

	s := &session{
		compiler: c,
		settings: c.Settings(),
		guard:    lock.New(),
		logger:   c.logger,
	}
	s.guard.Enter(res.RealPath)
	if err := s.compile(ctx, res); err != nil {
		s.guard.Reset()
		c.errs.Handle(ctx, err, "file", res.SubPath)
		return nil, err
	}
	return res, nil
}
