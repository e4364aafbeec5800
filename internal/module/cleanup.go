package module

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sisyphus-worker/internal/command"
	"github.com/sisyphus-worker/internal/fileops"
	"github.com/sisyphus-worker/pkg/logger"
)

const CleanupName = "cleanup"

type copySpec struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type cleanupStep struct {
	name  string
	raw   json.RawMessage
	paths []string
	pairs []copySpec
}

type cleanupAction func(step cleanupStep) error

// Cleanup runs file housekeeping commands in the order they are configured.
type Cleanup struct {
	steps   []cleanupStep
	env     Env
	actions map[string]cleanupAction
}

func newCleanup(raw json.RawMessage, env Env) (Module, error) {
	var cfg command.Options
	if err := decodeConfig(CleanupName, raw, &cfg); err != nil {
		return nil, err
	}

	c := &Cleanup{env: env}
	c.actions = map[string]cleanupAction{
		"verify_exists": c.verifyExists,
		"delete_files":  c.deleteFiles,
		"copy_files":    c.copyFiles,
		"move_files":    c.moveFiles,
	}

	for _, opt := range cfg {
		data, err := json.Marshal(opt.Value)
		if err != nil {
			return nil, &ModuleInitError{Module: CleanupName, Message: fmt.Sprintf("command '%s': %v", opt.Key, err), Err: err}
		}
		c.steps = append(c.steps, cleanupStep{name: opt.Key, raw: data})
	}
	return c, nil
}

func (c *Cleanup) Name() string { return CleanupName }

// Validate checks every command name and decodes its arguments.
func (c *Cleanup) Validate(ctx context.Context) error {
	for i := range c.steps {
		step := &c.steps[i]
		if _, ok := c.actions[step.name]; !ok {
			return &ConfigurationError{Module: CleanupName, Message: fmt.Sprintf("There is no '%s' function defined in the module.", step.name)}
		}

		var err error
		switch step.name {
		case "copy_files", "move_files":
			err = json.Unmarshal(step.raw, &step.pairs)
		default:
			err = json.Unmarshal(step.raw, &step.paths)
		}
		if err != nil {
			return &ConfigurationError{Module: CleanupName, Message: fmt.Sprintf("invalid arguments for '%s': %v", step.name, err)}
		}
	}
	return nil
}

func (c *Cleanup) Run(ctx context.Context) error {
	if err := c.Validate(ctx); err != nil {
		return err
	}
	for _, step := range c.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.actions[step.name](step); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cleanup) verifyExists(step cleanupStep) error {
	for _, path := range step.paths {
		if !fileops.Exists(path) {
			return &RunFailureError{Module: CleanupName, Message: fmt.Sprintf("Cannot verify file '%s' exists.", absPath(path))}
		}
	}
	return nil
}

func (c *Cleanup) deleteFiles(step cleanupStep) error {
	for _, path := range step.paths {
		if err := fileops.Remove(path); err != nil {
			return &RunFailureError{Module: CleanupName, Message: fmt.Sprintf("Cannot delete file '%s': %v", path, err), Err: err}
		}
	}
	logger.Infof("🧹 [%s -> %s] Deleted %d file(s)", c.env.JobTitle, CleanupName, len(step.paths))
	return nil
}

func (c *Cleanup) copyFiles(step cleanupStep) error {
	for _, p := range step.pairs {
		if err := fileops.Copy(p.Source, p.Destination); err != nil {
			return &RunFailureError{Module: CleanupName, Message: fmt.Sprintf("Cannot copy '%s' to '%s': %v", p.Source, p.Destination, err), Err: err}
		}
	}
	return nil
}

func (c *Cleanup) moveFiles(step cleanupStep) error {
	for _, p := range step.pairs {
		if err := fileops.Move(p.Source, p.Destination); err != nil {
			return &RunFailureError{Module: CleanupName, Message: fmt.Sprintf("Cannot move '%s' to '%s': %v", p.Source, p.Destination, err), Err: err}
		}
	}
	return nil
}
