// Package validation checks configuration values that reach the filesystem
// or a child process.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// shell metacharacters rejected in commands and arguments
var dangerous = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}

// ValidateArgument validates a command line argument to prevent command
// injection.
func ValidateArgument(arg string) error {
	for _, char := range dangerous {
		if strings.Contains(arg, char) {
			return kerrors.ErrCommandInjection(arg).
				WithContext("reason", fmt.Sprintf("contains dangerous character: %q", char))
		}
	}

	if strings.Contains(arg, "..") {
		return kerrors.ErrPathTraversal(arg)
	}

	return nil
}

// ValidateCommand validates the executable of an external stage. Bare names
// are looked up on PATH; absolute paths are only allowed below /usr/bin,
// /usr/local/bin and /bin.
func ValidateCommand(command string) error {
	if command == "" {
		return kerrors.NewValidationError(kerrors.ErrCodeInvalidPath, "command cannot be empty")
	}
	if strings.ContainsAny(command, " \t") {
		return kerrors.ErrCommandInjection(command).
			WithContext("reason", "command must not contain whitespace, use args")
	}
	if err := ValidateArgument(command); err != nil {
		return err
	}

	if filepath.IsAbs(command) {
		for _, dir := range []string{"/usr/bin/", "/usr/local/bin/", "/bin/"} {
			if strings.HasPrefix(command, dir) {
				return nil
			}
		}
		return kerrors.NewSecurityError(kerrors.ErrCodeInvalidPath, "absolute command path not allowed: "+command)
	}
	return nil
}

// ValidateRelativePath validates a directory that must stay inside the
// project: relative, non-empty and without traversal.
func ValidateRelativePath(path string) error {
	if path == "" {
		return kerrors.ErrInvalidPath(path)
	}
	if filepath.IsAbs(path) {
		return kerrors.ErrInvalidPath(path).WithContext("reason", "path must be relative")
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(path, "..") {
		return kerrors.ErrPathTraversal(path)
	}

	for _, char := range []string{";", "&", "|", "$", "`", "<", ">"} {
		if strings.Contains(path, char) {
			return kerrors.ErrInvalidPath(path).
				WithContext("reason", fmt.Sprintf("contains dangerous character: %q", char))
		}
	}
	return nil
}
