package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidJob marks a job document that cannot be decoded.
var ErrInvalidJob = errors.New("invalid job")

// Job is an ordered list of tasks pulled from the queue.
type Job struct {
	Title string
	ID    string
	Tasks []Task
}

// Task names a module and carries its raw configuration.
type Task struct {
	Name   string
	Config json.RawMessage
}

// TaskNames returns the task names in execution order.
func (j *Job) TaskNames() []string {
	names := make([]string, len(j.Tasks))
	for i, t := range j.Tasks {
		names[i] = t.Name
	}
	return names
}

// Chain renders the task names as "a -> b -> c".
func (j *Job) Chain() string {
	return strings.Join(j.TaskNames(), " -> ")
}

// Decode parses a job document:
//
//	{"job_title": "...", "job_id": "...", "tasks": [{"<module>": {...}}, ...]}
//
// Each tasks entry must have exactly one key. Documents without "tasks" are read in
// the flat form where every other top-level key is a task, in document order.
func Decode(data []byte) (*Job, error) {
	fields, err := orderedObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	job := &Job{}
	var tasks json.RawMessage
	var flat []Task
	for _, f := range fields {
		switch f.key {
		case "job_title":
			job.Title, err = scalarString(f.value)
		case "job_id":
			job.ID, err = scalarString(f.value)
		case "tasks":
			tasks = f.value
		default:
			flat = append(flat, Task{Name: f.key, Config: f.value})
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidJob, f.key, err)
		}
	}

	if tasks == nil {
		job.Tasks = flat
		return job, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(tasks, &entries); err != nil {
		return nil, fmt.Errorf("%w: tasks: %v", ErrInvalidJob, err)
	}
	for i, entry := range entries {
		members, err := orderedObject(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: task %d: %v", ErrInvalidJob, i, err)
		}
		if len(members) != 1 {
			return nil, fmt.Errorf("%w: task %d must name exactly one module, got %d keys", ErrInvalidJob, i, len(members))
		}
		job.Tasks = append(job.Tasks, Task{Name: members[0].key, Config: members[0].value})
	}
	return job, nil
}

type member struct {
	key   string
	value json.RawMessage
}

// orderedObject splits a JSON object into its members, keeping document order.
func orderedObject(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return members, nil
}

// scalarString accepts a JSON string or number.
func scalarString(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("expected string or number")
	}
	return n.String(), nil
}
