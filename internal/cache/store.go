// Package cache persists compiled resource contents between runs.
//
// A Store owns a cache directory on an afero filesystem. Every compile
// configuration writes below its own root (see Root), and every source file
// gets a Record inside that root holding the last compiled content plus a
// YAML metadata sidecar. A record reverts only while the source and every
// dependency it was compiled against keep their modification times.
package cache

import (
	"fmt"
	"hash/crc32"
	"math/rand/v2"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// CompileDir is the directory below the cache dir holding every named
// compile root.
const CompileDir = "compile"

const defaultMemoryLimit = 32 << 20

// RootOptions selects a compile root name.
type RootOptions struct {
	Unique   bool
	Debug    bool
	Optimize bool
	Hash     bool
	Domain   bool
}

// RootName names the cache root for opts: "compile/" followed by "debug" or
// "release" and the "-optimize", "-hash" and "-domain" suffixes, or a fresh
// "compile_<unix ms>-<random>" when opts.Unique is set.
func RootName(opts RootOptions) string {
	if opts.Unique {
		return fmt.Sprintf("%s_%d-%s", CompileDir, time.Now().UnixMilli(),
			strconv.FormatUint(rand.Uint64(), 36))
	}
	var b strings.Builder
	b.WriteString(CompileDir + "/")
	if opts.Debug {
		b.WriteString("debug")
	} else {
		b.WriteString("release")
	}
	if opts.Optimize {
		b.WriteString("-optimize")
	}
	if opts.Hash {
		b.WriteString("-hash")
	}
	if opts.Domain {
		b.WriteString("-domain")
	}
	return b.String()
}

// Store hands out cache records below dir.
type Store struct {
	fs      afero.Fs
	dir     string
	version string
	table   *crc32.Table
	memory  *contentCache

	mu   sync.RWMutex
	root string
}

// Option configures a Store.
type Option func(*Store)

// WithVersion stamps records with version. Records written by another
// version never revert.
func WithVersion(version string) Option {
	return func(s *Store) { s.version = version }
}

// WithMemoryLimit bounds the in-memory content cache in bytes.
func WithMemoryLimit(limit int64) Option {
	return func(s *Store) { s.memory = newContentCache(limit) }
}

// NewStore creates a store writing below dir on fs.
func NewStore(fs afero.Fs, dir string, opts ...Option) *Store {
	s := &Store{
		fs:      fs,
		dir:     path.Clean(dir),
		version: "dev",
		table:   crc32.MakeTable(crc32.Castagnoli),
		memory:  newContentCache(defaultMemoryLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// SetRoot selects the compile root used by Record.
func (s *Store) SetRoot(name string) {
	s.mu.Lock()
	s.root = name
	s.mu.Unlock()
}

// Root returns the current compile root, empty before SetRoot.
func (s *Store) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Record opens the cache record of the source file at realPath in the
// current root. It fails when no root has been selected yet.
func (s *Store) Record(realPath string) (*Record, error) {
	root := s.Root()
	if root == "" {
		return nil, kerrors.ErrCacheUninitialized
	}

	base := path.Base(realPath)
	sum := strconv.FormatUint(uint64(crc32.Checksum([]byte(realPath), s.table)), 16)
	name := path.Join(s.dir, root, base+"-"+sum)

	r := &Record{
		store:       s,
		source:      realPath,
		contentFile: name + ".tmp",
		metaFile:    name + ".yml",
		deps:        make(map[string]int64),
	}
	r.sourceStamp = s.stamp(realPath)
	return r, nil
}

// Clean removes a cache root: the named root below "compile/" when name is
// set, otherwise the current root, otherwise the whole "compile/" tree.
func (s *Store) Clean(name string) error {
	var target string
	switch {
	case name != "":
		if strings.Contains(name, "..") {
			return kerrors.ErrPathTraversal(name)
		}
		target = path.Join(s.dir, CompileDir, name)
	case s.Root() != "":
		target = path.Join(s.dir, s.Root())
	default:
		target = path.Join(s.dir, CompileDir)
	}

	s.memory.clear()
	if err := s.fs.RemoveAll(target); err != nil {
		return kerrors.NewIOError(kerrors.ErrCodeFileNotFound, "unable to clean cache", err).
			WithLocation(target, 0, 0)
	}
	return nil
}

// Stats reports in-memory content cache entries, hits, misses and
// evictions.
func (s *Store) Stats() (entries int, hits, misses, evictions int64) {
	return s.memory.stats()
}

// stamp returns the modification time of p in nanoseconds, or 0 when p
// does not exist.
func (s *Store) stamp(p string) int64 {
	info, err := s.fs.Stat(p)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixNano()
}
