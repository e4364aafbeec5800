package module

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrRunFailure    = errors.New("run failure")
	ErrModuleInit    = errors.New("module init error")
)

// ConfigurationError reports malformed or missing static configuration, detected
// before any external effect.
type ConfigurationError struct {
	Module  string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Module, e.Message)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ValidationError reports a missing binary, input file or font at validate time.
type ValidationError struct {
	Module  string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation error: %s", e.Module, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// RunFailureError reports a failed run, usually a disallowed process exit code.
type RunFailureError struct {
	Module  string
	Message string
	Err     error
}

func (e *RunFailureError) Error() string {
	return fmt.Sprintf("%s: run failure: %s", e.Module, e.Message)
}

func (e *RunFailureError) Is(target error) bool { return target == ErrRunFailure }

func (e *RunFailureError) Unwrap() error { return e.Err }

// ModuleInitError reports a module that could not be constructed from its task
// configuration.
type ModuleInitError struct {
	Module  string
	Message string
	Err     error
}

func (e *ModuleInitError) Error() string {
	return fmt.Sprintf("%s: init error: %s", e.Module, e.Message)
}

func (e *ModuleInitError) Is(target error) bool { return target == ErrModuleInit }

func (e *ModuleInitError) Unwrap() error { return e.Err }

// IsTaxonomy reports whether err belongs to the module error taxonomy.
func IsTaxonomy(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrRunFailure) ||
		errors.Is(err, ErrModuleInit)
}

// Describe returns the module name and message carried by a taxonomy error.
func Describe(err error) (module, message string, ok bool) {
	var (
		cfgErr  *ConfigurationError
		valErr  *ValidationError
		runErr  *RunFailureError
		initErr *ModuleInitError
	)
	switch {
	case errors.As(err, &cfgErr):
		return cfgErr.Module, cfgErr.Message, true
	case errors.As(err, &valErr):
		return valErr.Module, valErr.Message, true
	case errors.As(err, &runErr):
		return runErr.Module, runErr.Message, true
	case errors.As(err, &initErr):
		return initErr.Module, initErr.Message, true
	}
	return "", "", false
}
