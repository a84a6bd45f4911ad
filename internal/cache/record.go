package cache

import (
	"path"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// Info is the metadata snapshot saved next to compiled content.
type Info struct {
	Requires []string       `yaml:"requires"`
	Extras   map[string]any `yaml:"extras,omitempty"`
}

// Snapshot receives the state restored by Revert.
type Snapshot struct {
	Content []byte
	Info    Info
}

// meta is the on-disk sidecar of a record.
type meta struct {
	Version string           `yaml:"version"`
	Source  string           `yaml:"source"`
	Stamp   int64            `yaml:"stamp"`
	Deps    map[string]int64 `yaml:"deps,omitempty"`
	Info    Info             `yaml:"info"`
}

// Record is the cache entry of one source file in one compile root.
type Record struct {
	store       *Store
	source      string
	sourceStamp int64
	contentFile string
	metaFile    string

	mu   sync.Mutex
	deps map[string]int64
}

// Source returns the real path of the cached file.
func (r *Record) Source() string { return r.source }

// Revert fills snap with the saved content and metadata and reports whether
// the record is still valid: saved by the same version, and neither the
// source nor any dependency modified since.
func (r *Record) Revert(snap *Snapshot) bool {
	data, err := afero.ReadFile(r.store.fs, r.metaFile)
	if err != nil {
		return false
	}
	var m meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return false
	}
	if m.Version != r.store.version || m.Source != r.source || m.Stamp != r.sourceStamp || r.sourceStamp == 0 {
		return false
	}
	for dep, stamp := range m.Deps {
		if r.store.stamp(dep) != stamp {
			return false
		}
	}

	content, ok := r.store.memory.get(r.contentFile, m.Stamp)
	if !ok {
		content, err = afero.ReadFile(r.store.fs, r.contentFile)
		if err != nil {
			return false
		}
		r.store.memory.set(r.contentFile, m.Stamp, content)
	}

	r.mu.Lock()
	for dep, stamp := range m.Deps {
		r.deps[dep] = stamp
	}
	r.mu.Unlock()

	snap.Content = content
	snap.Info = m.Info
	if snap.Info.Requires == nil {
		snap.Info.Requires = []string{}
	}
	if snap.Info.Extras == nil {
		snap.Info.Extras = map[string]any{}
	}
	return true
}

// Save writes content and info, stamped with the current modification times
// of the source and of every dependency added so far.
func (r *Record) Save(content []byte, info Info) error {
	m := meta{
		Version: r.store.version,
		Source:  r.source,
		Stamp:   r.sourceStamp,
		Deps:    r.snapshotDeps(),
		Info:    info,
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return kerrors.NewInternalError(kerrors.ErrCodeInvalidResource, "unable to encode cache metadata", err).
			WithLocation(r.source, 0, 0)
	}

	fs := r.store.fs
	if err := fs.MkdirAll(path.Dir(r.contentFile), 0o755); err != nil {
		return kerrors.NewIOError(kerrors.ErrCodeInvalidPath, "unable to create cache directory", err)
	}
	if err := afero.WriteFile(fs, r.contentFile, content, 0o644); err != nil {
		return kerrors.NewIOError(kerrors.ErrCodeInvalidPath, "unable to write cache content", err).
			WithLocation(r.contentFile, 0, 0)
	}
	if err := afero.WriteFile(fs, r.metaFile, data, 0o644); err != nil {
		return kerrors.NewIOError(kerrors.ErrCodeInvalidPath, "unable to write cache metadata", err).
			WithLocation(r.metaFile, 0, 0)
	}
	r.store.memory.set(r.contentFile, m.Stamp, content)
	return nil
}

// AddDependency records that the cached content depends on the file at p.
func (r *Record) AddDependency(p string) {
	stamp := r.store.stamp(p)
	r.mu.Lock()
	r.deps[p] = stamp
	r.mu.Unlock()
}

// MergeDependencies adds every dependency of other to r.
func (r *Record) MergeDependencies(other *Record) {
	if other == nil || other == r {
		return
	}
	deps := other.snapshotDeps()
	r.mu.Lock()
	for p, stamp := range deps {
		r.deps[p] = stamp
	}
	r.mu.Unlock()
}

// Deps returns the recorded dependency paths in lexical order.
func (r *Record) Deps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.deps))
	for p := range r.deps {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Record) snapshotDeps() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.deps))
	for p, stamp := range r.deps {
		out[p] = stamp
	}
	return out
}
