package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/internal/pipeline"
	"github.com/conneroisu/kiln/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder
	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}
	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)
	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// Validate checks cfg and reports every problem found. Errors make the
// configuration unusable; warnings point at settings that have no effect.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateProject(&cfg.Project, result)
	validateCompile(cfg, result)
	validateDir("cache.dir", cfg.Cache.Dir, result)
	validateDir("release.output", cfg.Release.Output, result)
	validateStages(cfg.Stages, result)

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		result.addError("log.level", cfg.Log.Level, err.Error(),
			"Use one of debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		result.addError("log.format", cfg.Log.Format, "unknown log format "+cfg.Log.Format,
			"Use 'text' or 'json'")
	}

	result.Valid = !result.HasErrors()
	return result
}

func validateProject(p *ProjectConfig, result *ValidationResult) {
	if strings.TrimSpace(p.Root) == "" {
		result.addError("project.root", p.Root, "project root is empty", "Use '.' for the working directory")
	}
	for _, pattern := range p.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			result.addError("project.exclude", pattern, "malformed pattern: "+err.Error())
		}
	}
	for from, to := range p.ExtMap {
		if !strings.HasPrefix(from, ".") || !strings.HasPrefix(to, ".") {
			result.addError("project.ext_map", from+": "+to, "extensions must start with '.'",
				"Write entries as '.less': '.css'")
		}
	}
}

func validateCompile(cfg *Config, result *ValidationResult) {
	if cfg.Compile.Domain && cfg.Project.Domain == "" {
		result.addWarning("compile.domain", true, "domain is enabled but project.domain is empty",
			"Set project.domain to the CDN prefix")
	}
}

func validateDir(field, dir string, result *ValidationResult) {
	if dir == "" {
		result.addError(field, dir, "directory is empty")
		return
	}
	if err := validation.ValidateRelativePath(dir); err != nil {
		result.addError(field, dir, err.Error(),
			"Use a path relative to the project root",
			"Paths must not contain '..'")
	}
}

func validateStages(stages map[string]StageConfig, result *ValidationResult) {
	keys := make([]string, 0, len(stages))
	for key := range stages {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sc := stages[key]
		field := "stages." + key
		if _, _, ok := pipeline.ParseKey(key); !ok {
			result.addError(field, key, "stage key must be <stage>.<extension>",
				"Stages: parser, preprocessor, postprocessor, lint, test, optimizer")
			continue
		}
		if sc.Command == "" {
			result.addError(field+".command", sc.Command, "command is empty")
			continue
		}
		if err := validation.ValidateCommand(sc.Command); err != nil {
			result.addError(field+".command", sc.Command, err.Error(),
				"Use a command name found on PATH")
		}
		for _, arg := range sc.Args {
			if err := validation.ValidateArgument(arg); err != nil {
				result.addError(field+".args", arg, err.Error(),
					"Arguments are passed without a shell; drop shell syntax")
			}
		}
		if sc.Timeout < 0 {
			result.addError(field+".timeout", sc.Timeout, "timeout is negative")
		}
	}
}
