// Package status holds the worker state observed by the telemetry publisher.
//
// The pipeline and the active module write; the heartbeat and the status API read.
// Every write replaces the whole value so readers never see a half-updated message.
package status

import (
	"fmt"
	"sync"
)

// State is the externally visible worker state.
type State string

const (
	StateStartup      State = "startup"
	StateIdle         State = "idle"
	StateDisconnected State = "disconnected"
	StateInProgress   State = "in_progress"
	StateFailed       State = "failed"
	StateCompleted    State = "completed"
)

// Message is the heartbeat payload.
type Message struct {
	Status   State  `json:"status"`
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Task     string `json:"task"`
	JobTitle string `json:"job_title,omitempty"`
	JobID    string `json:"job_id,omitempty"`
}

// Progress is the completion record of the running external process.
type Progress struct {
	CurrentFrame    int64  `json:"current_frame"`
	TotalFrames     int64  `json:"total_frames"`
	PercentComplete string `json:"percent_complete"`
}

// NewProgress builds a record, formatting the percentage with two decimals.
func NewProgress(current, total int64) Progress {
	percent := 0.0
	if total > 0 {
		percent = float64(current) / float64(total) * 100
	}
	return Progress{
		CurrentFrame:    current,
		TotalFrames:     total,
		PercentComplete: fmt.Sprintf("%0.2f", percent),
	}
}

// Snapshot is a consistent copy of the board.
type Snapshot struct {
	Message  Message   `json:"message"`
	Progress *Progress `json:"progress,omitempty"`
}

// Board is the single slot shared between the pipeline and the telemetry publisher.
type Board struct {
	mu       sync.RWMutex
	hostname string
	version  string
	msg      Message
	progress *Progress
}

// NewBoard creates a board in the startup state.
func NewBoard(hostname, version string) *Board {
	b := &Board{hostname: hostname, version: version}
	b.msg = b.message(StateStartup, "startup", "", "")
	return b
}

func (b *Board) message(state State, task, jobTitle, jobID string) Message {
	return Message{
		Status:   state,
		Hostname: b.hostname,
		Version:  b.version,
		Task:     task,
		JobTitle: jobTitle,
		JobID:    jobID,
	}
}

// Set replaces the status message. Progress from a previous task is cleared.
func (b *Board) Set(state State, task, jobTitle, jobID string) {
	msg := b.message(state, task, jobTitle, jobID)
	b.mu.Lock()
	b.msg = msg
	b.progress = nil
	b.mu.Unlock()
}

// SetProgress replaces the progress record.
func (b *Board) SetProgress(p Progress) {
	b.mu.Lock()
	b.progress = &p
	b.mu.Unlock()
}

// Snapshot returns a copy of the current message and progress.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := Snapshot{Message: b.msg}
	if b.progress != nil {
		p := *b.progress
		snap.Progress = &p
	}
	return snap
}
