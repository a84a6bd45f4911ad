package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/resource"
)

// Positioner is implemented by stage errors that know where in the source
// they happened.
type Positioner interface {
	Position() (line, column int)
}

// StageError is a stage failure annotated with the stage key and the source
// location. It matches kerrors.ErrStageFailed with errors.Is and unwraps to
// the stage's own error.
type StageError struct {
	Key    string
	File   string
	Line   int
	Column int
	Err    error
}

// Error formats the failure as "key: message [file:line:column]".
func (e *StageError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc += fmt.Sprintf(":%d", e.Line)
		if e.Column > 0 {
			loc += fmt.Sprintf(":%d", e.Column)
		}
	}
	return fmt.Sprintf("%s: %s [%s]", e.Key, strings.TrimSpace(e.Err.Error()), loc)
}

// Unwrap exposes both the taxonomy sentinel and the stage error.
func (e *StageError) Unwrap() []error {
	return []error{kerrors.ErrStageFailed, e.Err}
}

// Options selects the optional stages of a run.
type Options struct {
	Lint     bool
	Test     bool
	Optimize bool
	// Standard runs between the preprocessor and the postprocessor.
	Standard func(ctx context.Context, res *resource.Resource) error
}

// Dispatcher runs registered stages over resources.
type Dispatcher struct {
	registry *Registry
	logger   logging.Logger
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger.WithComponent("pipeline"),
	}
}

// Registry returns the stage registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Process runs, in order: the parser for the source extension, then for the
// compiled extension the preprocessor, Standard, the postprocessor, and lint,
// test and optimizer when enabled in opts. Per-resource switches can turn
// each step off.
func (d *Dispatcher) Process(ctx context.Context, res *resource.Resource, opts Options) error {
	if res.UseParser {
		if err := d.pipe(ctx, res, Parser, res.Ext, false); err != nil {
			return err
		}
	}
	if res.RExt == "" {
		return nil
	}

	steps := []struct {
		enabled bool
		name    StageName
		keep    bool
	}{
		{res.UsePreprocessor, Preprocessor, false},
		{res.UseStandard, Standard, false},
		{res.UsePostprocessor, Postprocessor, false},
		{opts.Lint && res.UseLint, Lint, true},
		{opts.Test && res.UseTest, Test, true},
		{opts.Optimize && res.UseOptimizer, Optimizer, false},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if step.name == Standard {
			if opts.Standard != nil {
				if err := opts.Standard(ctx, res); err != nil {
					return err
				}
			}
			continue
		}
		if err := d.pipe(ctx, res, step.name, res.RExt, step.keep); err != nil {
			return err
		}
	}
	return nil
}

// pipe runs the stage registered for name and ext. With keep set the stage
// works on a copy and the content is left as it was.
func (d *Dispatcher) pipe(ctx context.Context, res *resource.Resource, name StageName, ext string, keep bool) error {
	key := Key(name, ext)
	stage, ok := d.registry.Lookup(key)
	if !ok {
		return nil
	}

	content := res.Content()
	in := content
	if keep {
		in = bytes.Clone(content)
	}
	d.logger.Debug(ctx, "pipe start", "key", key, "file", res.RealPath)
	out, err := stage.Process(ctx, in, res)
	if err != nil {
		d.logger.Debug(ctx, "pipe fail", "key", key, "file", res.RealPath)
		return annotate(key, res, err)
	}
	d.logger.Debug(ctx, "pipe end", "key", key, "file", res.RealPath)

	switch {
	case keep:
		res.SetContent(content)
	case out == nil:
		d.logger.Warn(ctx, nil, "invalid content return of pipe ["+key+"]", "file", res.RealPath)
	default:
		res.SetContent(out)
	}
	return nil
}

func annotate(key string, res *resource.Resource, err error) error {
	se := &StageError{Key: key, File: res.RealPath, Err: err}

	var ke *kerrors.KilnError
	if errors.As(err, &ke) {
		if ke.FilePath != "" {
			se.File = ke.FilePath
		}
		se.Line, se.Column = ke.Line, ke.Column
	}
	var pos Positioner
	if errors.As(err, &pos) {
		if line, column := pos.Position(); line > 0 {
			se.Line, se.Column = line, column
		}
	}
	return se
}
