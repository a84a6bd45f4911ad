package compile

import (
	"context"

	"github.com/conneroisu/kiln/internal/cache"
	"github.com/conneroisu/kiln/internal/lock"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/pipeline"
	"github.com/conneroisu/kiln/internal/resource"
)

// session is one top-level compile and every nested compile it triggers.
type session struct {
	compiler *Compiler
	settings Settings
	guard    *lock.Guard
	logger   logging.Logger
}

func compilable(res *resource.Resource) bool {
	return res.UseCompile && res.Ext != "" && res.Ext != "."
}

// compile compiles res. Files with compilation enabled go through the
// cache; other files are read as they are. A resource that is not a file
// but compilable runs the pipeline over the content it already carries.
func (s *session) compile(ctx context.Context, res *resource.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug(ctx, "compile start", "file", res.RealPath)

	switch {
	case res.IsFile() && compilable(res):
		if err := s.compileFile(ctx, res); err != nil {
			return err
		}
	case res.IsFile():
		if err := res.Read(); err != nil {
			return err
		}
	case compilable(res):
		if err := s.process(ctx, res); err != nil {
			return err
		}
	}

	if s.settings.Hash && res.UseHash {
		res.Fingerprint()
	}
	res.Compiled = true
	s.logger.Debug(ctx, "compile end", "file", res.RealPath)
	s.guard.Release(res.RealPath)
	return nil
}

// compileFile reverts res from its cache record, or compiles it from
// source and saves the result.
func (s *session) compileFile(ctx context.Context, res *resource.Resource) error {
	rec, err := s.compiler.store.Record(res.RealPath)
	if err != nil {
		return err
	}
	res.Cache = rec
	hooks := s.settings.Hooks

	var snap cache.Snapshot
	if res.UseCache && !s.settings.NoCache && rec.Revert(&snap) {
		hooks.BeforeCacheRevert.call(res)
		res.Requires = snap.Info.Requires
		res.Extras = snap.Info.Extras
		res.SetContent(snap.Content)
		hooks.AfterCacheRevert.call(res)
		return nil
	}

	hooks.BeforeCompile.call(res)
	res.Requires = []string{}
	res.Extras = map[string]any{}
	if err := res.Read(); err != nil {
		return err
	}
	if err := s.process(ctx, res); err != nil {
		return err
	}
	hooks.AfterCompile.call(res)

	info := cache.Info{Requires: res.Requires, Extras: res.Extras}
	if err := rec.Save(res.Content(), info); err != nil {
		s.logger.Warn(ctx, err, "unable to save cache record", "file", res.RealPath)
	}
	return nil
}

func (s *session) process(ctx context.Context, res *resource.Resource) error {
	return s.compiler.dispatcher.Process(ctx, res, pipeline.Options{
		Lint:     s.settings.Lint,
		Test:     s.settings.Test,
		Optimize: s.settings.Optimize,
		Standard: s.standard,
	})
}
