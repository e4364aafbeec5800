package processor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisyphus-worker/internal/module"
	"github.com/sisyphus-worker/internal/queue"
	"github.com/sisyphus-worker/internal/status"
)

type fakeNotifier struct {
	success []string
	failure []string
}

func (n *fakeNotifier) NotifySuccess(title, body string) error {
	n.success = append(n.success, body)
	return nil
}

func (n *fakeNotifier) NotifyError(title, body string) error {
	n.failure = append(n.failure, body)
	return nil
}

func newService(notifier Notifier) (*Service, *status.Board) {
	board := status.NewBoard("node1", "test")
	env := func(jobTitle string) module.Env { return module.Env{JobTitle: jobTitle} }
	return New(module.NewRegistry(), board, env, notifier), board
}

func cleanupTask(t *testing.T, cfg map[string]any) queue.Task {
	t.Helper()
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	return queue.Task{Name: "cleanup", Config: raw}
}

func TestProcessStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.mkv")
	keep := filepath.Join(dir, "keep.mkv")
	require.NoError(t, os.WriteFile(present, nil, 0o600))
	require.NoError(t, os.WriteFile(keep, nil, 0o600))

	job := &queue.Job{Title: "T", ID: "1", Tasks: []queue.Task{
		cleanupTask(t, map[string]any{"verify_exists": []string{present}}),
		cleanupTask(t, map[string]any{"verify_exists": []string{filepath.Join(dir, "x.mkv")}}),
		cleanupTask(t, map[string]any{"delete_files": []string{keep}}),
	}}

	notifier := &fakeNotifier{}
	svc, board := newService(notifier)
	err := svc.Process(context.Background(), job)
	require.Error(t, err)

	var jobErr *JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, "cleanup", jobErr.Task)
	assert.Equal(t, 1, jobErr.Index)
	assert.Contains(t, jobErr.Error(), "cleanup#1")
	assert.True(t, errors.Is(err, module.ErrRunFailure))
	assert.FileExists(t, keep, "the task after the failing one must not run")

	snap := board.Snapshot()
	assert.Equal(t, status.StateFailed, snap.Message.Status)
	assert.Equal(t, "1", snap.Message.JobID)
	require.Len(t, notifier.failure, 1)
	assert.Contains(t, notifier.failure[0], "cleanup#1")
	assert.Empty(t, notifier.success)
}

func TestProcessEndToEndMissingFile(t *testing.T) {
	job, err := queue.Decode([]byte(`{"job_title":"T","job_id":"1","tasks":[{"cleanup":{"verify_exists":["x.mkv"]}}]}`))
	require.NoError(t, err)

	svc, _ := newService(nil)
	err = svc.Process(context.Background(), job)

	var runErr *module.RunFailureError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, "cleanup", runErr.Module)
}

func TestProcessUnknownModuleFailsJob(t *testing.T) {
	job := &queue.Job{Title: "T", ID: "2", Tasks: []queue.Task{{Name: "transcode", Config: json.RawMessage(`{}`)}}}
	svc, board := newService(nil)

	err := svc.Process(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, module.ErrConfiguration))
	assert.Equal(t, "transcode", board.Snapshot().Message.Task)
}

func TestProcessInitErrorFailsJob(t *testing.T) {
	job := &queue.Job{Title: "T", ID: "3", Tasks: []queue.Task{{Name: "ffmpeg", Config: json.RawMessage(`"nope"`)}}}
	svc, _ := newService(nil)
	assert.True(t, errors.Is(svc.Process(context.Background(), job), module.ErrModuleInit))
}

func TestProcessCompletes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mkv")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))
	dst := filepath.Join(dir, "b.mkv")

	job := &queue.Job{Title: "T", ID: "4", Tasks: []queue.Task{
		cleanupTask(t, map[string]any{"copy_files": []map[string]string{{"source": src, "destination": dst}}}),
		cleanupTask(t, map[string]any{"verify_exists": []string{dst}}),
	}}

	notifier := &fakeNotifier{}
	svc, board := newService(notifier)
	require.NoError(t, svc.Process(context.Background(), job))

	assert.Equal(t, status.StateCompleted, board.Snapshot().Message.Status)
	require.Len(t, notifier.success, 1)
	assert.Contains(t, notifier.success[0], "**T** (4)")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{3*time.Minute + 7*time.Second, "3m7s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}
