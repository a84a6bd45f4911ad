package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/resource"
	"github.com/conneroisu/kiln/internal/validation"
)

// CommandStage runs an external program as a stage: the content goes to
// its stdin and its stdout becomes the new content. The resource path is
// exported as KILN_FILE.
type CommandStage struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
}

// NewCommandStage validates command and args and returns the stage. dir is
// the working directory of the child process.
func NewCommandStage(command string, args []string, dir string, timeout time.Duration) (*CommandStage, error) {
	if err := validation.ValidateCommand(command); err != nil {
		return nil, fmt.Errorf("command validation failed: %w", err)
	}
	for _, arg := range args {
		if err := validation.ValidateArgument(arg); err != nil {
			return nil, fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}
	return &CommandStage{
		command: command,
		args:    append([]string(nil), args...),
		dir:     dir,
		timeout: timeout,
	}, nil
}

// String returns the command line.
func (c *CommandStage) String() string {
	return strings.Join(append([]string{c.command}, c.args...), " ")
}

// Process runs the command over content.
func (c *CommandStage) Process(ctx context.Context, content []byte, res *resource.Resource) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(), "KILN_FILE="+res.RealPath)
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s timed out: %w", c.command, ctx.Err())
		}
		return nil, newCommandError(c.command, strings.TrimSpace(stderr.String()), err)
	}
	return stdout.Bytes(), nil
}

// CommandError is a failed command stage. Its position is that of the
// first located diagnostic the command printed.
type CommandError struct {
	Command     string
	Output      string
	Diagnostics []kerrors.Diagnostic
	Err         error
}

func newCommandError(command, output string, err error) *CommandError {
	return &CommandError{
		Command:     command,
		Output:      output,
		Diagnostics: kerrors.ParseDiagnostics(output),
		Err:         err,
	}
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s failed: %v\nOutput: %s", e.Command, e.Err, e.Output)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Position implements Positioner.
func (e *CommandError) Position() (line, column int) {
	if d, ok := kerrors.FirstLocated(e.Diagnostics); ok {
		return d.Position()
	}
	return 0, 0
}
