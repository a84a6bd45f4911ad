// Package internal contains the implementation packages of kiln.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - lang: directive tags, the <<<keyword:literal>>> intermediate form
//   - expand: script, stylesheet and markup scanners producing directive tags
//   - resource: the compilable file unit, its release path and public URL
//   - resolve: project files, reference literals and module identifiers
//   - lock: the embedding cycle guard
//   - cache: compile roots, cache records and the in-memory content cache
//   - pipeline: the stage registry, external command stages and the dispatcher
//   - compile: the compiler, its resolution engine and cache short-circuit
//   - release: whole-project runs writing compiled files to the output
//   - watcher: file system monitoring with debouncing
//   - config: configuration loading and validation
//   - errors, logging, validation, version: shared infrastructure
//
// # Data Flow
//
// A release walks the project and compiles each file. Compiling a file
// either reverts it from its cache record or reads it, runs the parser and
// preprocessor stages, expands its references into directive tags,
// resolves every tag (compiling embedded files recursively under the cycle
// guard), runs the remaining stages and saves a new cache record. The
// watcher triggers a new release after every burst of changes; unchanged
// files come back from the cache.
package internal
