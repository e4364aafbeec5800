// Package executor runs the external encoder and multiplexer processes and turns
// their output into progress records.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/sisyphus-worker/internal/command"
	"github.com/sisyphus-worker/pkg/logger"
)

const tailLines = 20

// Command is one external process invocation.
type Command struct {
	Path string
	Args []string
	// OKExitCodes lists exit codes treated as success; empty means only 0.
	OKExitCodes []int
}

// Tokens returns the full argument vector including the program.
func (c Command) Tokens() []string {
	return append([]string{c.Path}, c.Args...)
}

// String returns the shell-quoted command line.
func (c Command) String() string {
	return command.Quote(c.Tokens())
}

func (c Command) okExit(code int) bool {
	if len(c.OKExitCodes) == 0 {
		return code == 0
	}
	return slices.Contains(c.OKExitCodes, code)
}

// ExitError reports a process that terminated with a disallowed exit code.
type ExitError struct {
	Code        int
	CommandLine string
	Tail        []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("process exited with code %d: %s", e.Code, e.CommandLine)
	if len(e.Tail) > 0 {
		msg += "\n" + strings.Join(e.Tail, "\n")
	}
	return msg
}

// CommandFactory builds the *exec.Cmd for a program and its arguments.
type CommandFactory func(ctx context.Context, name string, args ...string) *exec.Cmd

// Runner starts processes and feeds their merged stdout/stderr to a Monitor.
type Runner struct {
	factory CommandFactory
	// Output receives a dimmed echo of every line when set.
	Output io.Writer
}

// NewRunner creates a runner. A nil factory uses exec.CommandContext, which kills
// the process when ctx is cancelled.
func NewRunner(factory CommandFactory) *Runner {
	if factory == nil {
		factory = exec.CommandContext
	}
	return &Runner{factory: factory}
}

// Run starts cmd, scans its output line by line until EOF and then waits for it.
// mon may be nil when the process reports no progress.
func (r *Runner) Run(ctx context.Context, cmd Command, mon *Monitor) error {
	logger.Infof("▶️  %s", cmd.String())

	c := r.factory(ctx, cmd.Path, cmd.Args...)
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create pipe: %w", err)
	}
	c.Stdout = pw
	c.Stderr = pw

	if err := c.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	// The child holds its own copy; closing ours lets the reader see EOF on exit.
	pw.Close()

	out := newTail(tailLines)
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		out.add(line)
		echoDimmed(r.Output, line)
		if mon != nil {
			mon.Observe(line)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Debugf("Scanner error (may be normal): %v", err)
		// Drain so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
	}
	pr.Close()

	waitErr := c.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", cmd.Path, ctxErr)
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return fmt.Errorf("wait %s: %w", cmd.Path, waitErr)
		}
		code = exitErr.ExitCode()
	}
	if !cmd.okExit(code) {
		return &ExitError{Code: code, CommandLine: cmd.String(), Tail: out.snapshot()}
	}
	if code != 0 {
		logger.Warnf("⚠️ %s exited with code %d (accepted)", cmd.Path, code)
	}
	return nil
}
