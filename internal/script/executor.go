// Package script runs descriptor script lists through a single shell process.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	foundationerrors "git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgbuilder/internal/logfields"
)

// Script is one ordered list of command lines and the process state it runs with.
type Script struct {
	// Name labels the script in logs and errors: build, package or clean.
	Name  string
	Lines []string
	Dir   string
	// Env is the complete child environment.
	Env []string
}

// ExitError reports a script whose shell exited with a non-zero status.
type ExitError struct {
	Script string
	Code   int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s script exited with status %d", e.Script, e.Code)
}

// Executor runs scripts. All lines of a script share one shell, so exports, cd and shell
// variables carry over from line to line.
type Executor struct {
	shell           string
	stdout          io.Writer
	stderr          io.Writer
	continueOnError bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithShell selects the shell binary.
func WithShell(path string) Option {
	return func(e *Executor) { e.shell = path }
}

// WithOutput forwards child stdout and stderr to the given writers.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithContinueOnError downgrades a non-zero exit to a warning. Lines after a failing one
// still run.
func WithContinueOnError(enabled bool) Option {
	return func(e *Executor) { e.continueOnError = enabled }
}

// NewExecutor creates an Executor using /bin/sh and the process stdout and stderr.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{shell: "/bin/sh", stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Join renders the lines as the body handed to the shell.
func Join(lines []string) string {
	return strings.Join(lines, "\n")
}

// Run executes s and blocks until the shell exits. An empty script does nothing.
func (e *Executor) Run(ctx context.Context, s Script) error {
	if len(s.Lines) == 0 {
		return nil
	}

	args := []string{"-c", Join(s.Lines)}
	if !e.continueOnError {
		args = append([]string{"-e"}, args...)
	}
	// #nosec G204 -- running descriptor scripts is the purpose of this package
	cmd := exec.CommandContext(ctx, e.shell, args...)
	cmd.Dir = s.Dir
	cmd.Env = s.Env
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	slog.Debug("Running script", slog.String("script", s.Name), logfields.Path(s.Dir), slog.Int("lines", len(s.Lines)))
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return foundationerrors.ScriptError(fmt.Sprintf("failed to start %s script", s.Name)).
			WithContext("script", s.Name).
			WithContext("shell", e.shell).
			WithCause(err).
			Build()
	}

	code := exitErr.ExitCode()
	if e.continueOnError {
		slog.Warn("Script exited with non-zero status", slog.String("script", s.Name), logfields.ExitCode(code))
		return nil
	}
	return foundationerrors.WrapError(&ExitError{Script: s.Name, Code: code}, foundationerrors.CategoryScript,
		fmt.Sprintf("%s script failed", s.Name)).
		Fatal().
		WithContext("script", s.Name).
		WithContext("exit_code", code).
		Build()
}
