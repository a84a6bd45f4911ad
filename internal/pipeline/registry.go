// Package pipeline runs the per-extension processing stages of a resource.
//
// Stages are registered under a composite key, the stage name followed by
// an extension ("parser.less", "optimizer.js"). A resource is processed in
// a fixed order; a stage missing from the registry is skipped.
package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/conneroisu/kiln/internal/resource"
)

// StageName names a processing step.
type StageName string

const (
	Parser        StageName = "parser"
	Preprocessor  StageName = "preprocessor"
	Standard      StageName = "standard"
	Postprocessor StageName = "postprocessor"
	Lint          StageName = "lint"
	Test          StageName = "test"
	Optimizer     StageName = "optimizer"
)

// StageNames lists the registrable stages in execution order. Standard is
// absent: it is the resolution engine and always built in.
var StageNames = []StageName{Parser, Preprocessor, Postprocessor, Lint, Test, Optimizer}

// Key returns the registry key of a stage for ext, e.g. "parser.less".
func Key(name StageName, ext string) string {
	return string(name) + strings.ToLower(ext)
}

// Stage transforms the content of a resource. A nil result with a nil error
// leaves the content unchanged and is reported as a warning.
type Stage interface {
	Process(ctx context.Context, content []byte, res *resource.Resource) ([]byte, error)
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, content []byte, res *resource.Resource) ([]byte, error)

// Process calls f.
func (f StageFunc) Process(ctx context.Context, content []byte, res *resource.Resource) ([]byte, error) {
	return f(ctx, content, res)
}

// Registry maps composite keys to stages.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register stores stage under key, replacing any previous entry.
func (r *Registry) Register(key string, stage Stage) {
	r.mu.Lock()
	r.stages[strings.ToLower(key)] = stage
	r.mu.Unlock()
}

// Lookup returns the stage registered under key.
func (r *Registry) Lookup(key string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[strings.ToLower(key)]
	return s, ok
}

// Keys returns the registered keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.stages))
	for k := range r.stages {
		keys = append(keys, k)
	}
	return keys
}

// ParseKey splits a registry key into its stage name and extension. It
// reports false when key does not start with a registrable stage name
// followed by a dotted extension.
func ParseKey(key string) (StageName, string, bool) {
	for _, name := range StageNames {
		if ext, ok := strings.CutPrefix(key, string(name)); ok && len(ext) > 1 && ext[0] == '.' {
			return name, ext, true
		}
	}
	return "", "", false
}
