// Package module defines the task module contract and the closed set of modules a
// job can name: ffmpeg, handbrake, mkvmerge and cleanup.
package module

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sisyphus-worker/internal/command"
	"github.com/sisyphus-worker/internal/config"
	"github.com/sisyphus-worker/internal/executor"
	"github.com/sisyphus-worker/internal/fonts"
	"github.com/sisyphus-worker/internal/probe"
	"github.com/sisyphus-worker/internal/status"
)

// Module is one task of a job. Validate must not have side effects; Run performs
// exactly one external process invocation (or cleanup action).
type Module interface {
	Name() string
	Validate(ctx context.Context) error
	Run(ctx context.Context) error
}

// ProgressReporter receives progress records from a running module.
type ProgressReporter interface {
	Publish(p status.Progress)
}

// ProcessRunner executes an external command, feeding its output to mon.
type ProcessRunner interface {
	Run(ctx context.Context, cmd executor.Command, mon *executor.Monitor) error
}

// ProfileLookup resolves a named encode profile into options.
type ProfileLookup interface {
	Profile(ctx context.Context, name string) (command.Options, error)
}

// Env carries the collaborators a module needs.
type Env struct {
	JobTitle string
	Config   *config.Config
	Progress ProgressReporter
	Probe    probe.Provider
	Fonts    fonts.Reader
	Profiles ProfileLookup
	Runner   ProcessRunner
	// LookPath resolves binaries; nil means exec.LookPath.
	LookPath func(file string) (string, error)
}

func (e Env) lookPath(file string) (string, error) {
	if e.LookPath != nil {
		return e.LookPath(file)
	}
	return exec.LookPath(file)
}

func (e Env) publish(p status.Progress) {
	if e.Progress != nil {
		e.Progress.Publish(p)
	}
}

func (e Env) monitor(matcher executor.Matcher, total int64) *executor.Monitor {
	return executor.NewMonitor(matcher, total, e.publish)
}

func (e Env) binaries() config.BinariesConfig {
	if e.Config == nil {
		return config.BinariesConfig{}
	}
	return e.Config.Binaries
}

// requireBinary resolves a binary or fails validation.
func requireBinary(env Env, module, binary string) (string, error) {
	if binary == "" {
		return "", &ValidationError{Module: module, Message: "no binary configured"}
	}
	path, err := env.lookPath(binary)
	if err != nil {
		return "", &ValidationError{Module: module, Message: fmt.Sprintf("Could not find the %s binary %q", module, binary), Err: err}
	}
	return path, nil
}

// requireFile fails validation unless path is an existing regular file.
func requireFile(module, path, what string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		abs, _ := filepath.Abs(path)
		return &ValidationError{Module: module, Message: fmt.Sprintf("The %s '%s' does not exist or is not a file.", what, abs), Err: err}
	}
	return nil
}

// errNotValidated is returned by Run when Validate has not succeeded first.
func errNotValidated(module string) error {
	return &ConfigurationError{Module: module, Message: "the task must be validated before it runs"}
}

// runFailure converts a runner error into a RunFailureError.
func runFailure(module string, err error) error {
	var exitErr *executor.ExitError
	if errors.As(err, &exitErr) {
		return &RunFailureError{
			Module:  module,
			Message: fmt.Sprintf("`%s` command returned exit code %d: %s", module, exitErr.Code, exitErr.CommandLine),
			Err:     err,
		}
	}
	return &RunFailureError{Module: module, Message: err.Error(), Err: err}
}
