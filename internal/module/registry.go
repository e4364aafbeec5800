package module

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Constructor builds a module from its raw task configuration.
type Constructor func(raw json.RawMessage, env Env) (Module, error)

// Registry maps task names to constructors.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns the registry of built-in modules.
func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{
		FfmpegName:    newFfmpeg,
		HandbrakeName: newHandbrake,
		MkvmergeName:  newMkvmerge,
		CleanupName:   newCleanup,
	}}
}

// Names returns the registered task names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the module registered under name. Unknown names fail with a
// ConfigurationError; constructor failures are returned as ModuleInitError.
func (r *Registry) New(name string, raw json.RawMessage, env Env) (Module, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, &ConfigurationError{
			Module:  name,
			Message: fmt.Sprintf("There is no module named '%s' (available: %v).", name, r.Names()),
		}
	}
	m, err := ctor(raw, env)
	if err != nil {
		if IsTaxonomy(err) {
			return nil, err
		}
		return nil, &ModuleInitError{Module: name, Message: err.Error(), Err: err}
	}
	return m, nil
}

// decodeConfig strictly decodes a task configuration into dst.
func decodeConfig(module string, raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &ModuleInitError{Module: module, Message: "missing task configuration"}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &ModuleInitError{Module: module, Message: fmt.Sprintf("invalid configuration: %v", err), Err: err}
	}
	return nil
}
