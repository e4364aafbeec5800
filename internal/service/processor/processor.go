package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sisyphus-worker/internal/module"
	"github.com/sisyphus-worker/internal/queue"
	"github.com/sisyphus-worker/internal/status"
	"github.com/sisyphus-worker/pkg/logger"
)

// JobError reports the task that failed a job. Index is the task's position in
// the job, starting at 0.
type JobError struct {
	JobTitle string
	JobID    string
	Task     string
	Index    int
	Err      error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s (%s) failed at task %s: %v", e.JobTitle, e.JobID, taskLabel(e.Task, e.Index), e.Err)
}

// taskLabel names a task by module and position, e.g. "cleanup#1".
func taskLabel(name string, index int) string {
	return fmt.Sprintf("%s#%d", name, index)
}

func (e *JobError) Unwrap() error { return e.Err }

// Notifier sends job outcome notifications.
type Notifier interface {
	NotifySuccess(title, body string) error
	NotifyError(title, body string) error
}

// EnvFactory builds the module environment for one job.
type EnvFactory func(jobTitle string) module.Env

// Service runs the tasks of a job in order.
type Service struct {
	registry *module.Registry
	board    *status.Board
	env      EnvFactory
	notifier Notifier
}

// New creates a new processor service. notifier may be nil.
func New(registry *module.Registry, board *status.Board, env EnvFactory, notifier Notifier) *Service {
	return &Service{
		registry: registry,
		board:    board,
		env:      env,
		notifier: notifier,
	}
}

// stepTimer tracks timing for a processing step.
type stepTimer struct {
	name  string
	start time.Time
}

func startStep(name string) *stepTimer {
	return &stepTimer{name: name, start: time.Now()}
}

func (s *stepTimer) done() time.Duration {
	return time.Since(s.start)
}

// formatDuration formats duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// Process implements queue.Processor. Tasks run strictly in order; the first
// failure abandons the rest of the job and is returned as a *JobError.
func (s *Service) Process(ctx context.Context, job *queue.Job) error {
	jobTimer := startStep("job")

	s.board.Set(status.StateInProgress, "preparing", job.Title, job.ID)
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("🎬 ACCEPTED JOB: %s: %s", job.Title, job.ID)
	logger.Infof(" + [%s] Tasks in job: %s", job.Title, job.Chain())
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	env := s.env(job.Title)
	durations := make([]string, 0, len(job.Tasks))

	for i, task := range job.Tasks {
		s.board.Set(status.StateInProgress, task.Name, job.Title, job.ID)
		t := startStep(task.Name)

		if err := s.runTask(ctx, job, task, env); err != nil {
			return s.fail(job, task.Name, i, err, jobTimer.done())
		}

		elapsed := t.done()
		durations = append(durations, fmt.Sprintf("%s %s", task.Name, formatDuration(elapsed)))
		logger.Infof(" + [%s -> %s] Completed task in %s", job.Title, task.Name, formatDuration(elapsed))
	}

	total := jobTimer.done()
	s.board.Set(status.StateCompleted, "completed", job.Title, job.ID)
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("✅ COMPLETED JOB: %s: %s", job.Title, job.ID)
	logger.Infof("⏱️  DURATION: %s", formatDuration(total))
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	s.notifySuccess(job, durations, total)
	return nil
}

func (s *Service) runTask(ctx context.Context, job *queue.Job, task queue.Task, env module.Env) error {
	m, err := s.registry.New(task.Name, task.Config, env)
	if err != nil {
		return err
	}
	logger.Infof(" + [%s] Successfully loaded module: %s", job.Title, m.Name())
	logger.Debugf(" + [%s -> %s] Validating data: %s", job.Title, task.Name, string(task.Config))

	if err := m.Validate(ctx); err != nil {
		return err
	}
	logger.Infof(" + [%s -> %s] Running task from module...", job.Title, task.Name)
	return m.Run(ctx)
}

func (s *Service) fail(job *queue.Job, task string, index int, err error, elapsed time.Duration) error {
	label := taskLabel(task, index)
	if mod, msg, ok := module.Describe(err); ok {
		logger.Errorf(" ! [%s -> %s] %s: %s", job.Title, label, errorKind(err), msg)
		if mod != task {
			logger.Errorf(" ! [%s -> %s] raised by module '%s'", job.Title, label, mod)
		}
	} else {
		logger.Errorf(" ! [%s -> %s] unexpected error: %v", job.Title, label, err)
	}
	logger.Errorf("❌ JOB FAILED: %s: %s", job.Title, job.ID)
	logger.Infof("⏱️  DURATION: %s", formatDuration(elapsed))

	s.board.Set(status.StateFailed, task, job.Title, job.ID)
	jobErr := &JobError{JobTitle: job.Title, JobID: job.ID, Task: task, Index: index, Err: err}
	s.notifyError(job, label, err)
	return jobErr
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, module.ErrConfiguration):
		return "ConfigurationError"
	case errors.Is(err, module.ErrValidation):
		return "ValidationError"
	case errors.Is(err, module.ErrRunFailure):
		return "RunFailureError"
	case errors.Is(err, module.ErrModuleInit):
		return "ModuleInitError"
	}
	return "Error"
}

func (s *Service) notifySuccess(job *queue.Job, durations []string, total time.Duration) {
	if s.notifier == nil {
		return
	}

	title := "🎬 Job Completed"
	body := fmt.Sprintf("**%s** (%s)\n\nTasks: %s\nTotal: %s", job.Title, job.ID, strings.Join(durations, ", "), formatDuration(total))

	if err := s.notifier.NotifySuccess(title, body); err != nil {
		logger.Warnf("⚠️ Failed to send notification: %v", err)
	}
}

func (s *Service) notifyError(job *queue.Job, task string, err error) {
	if s.notifier == nil {
		return
	}

	title := "❌ Job Failed"
	body := fmt.Sprintf("**%s** (%s)\nFailed at: %s\nError: %v", job.Title, job.ID, task, err)

	if notifyErr := s.notifier.NotifyError(title, body); notifyErr != nil {
		logger.Warnf("⚠️ Failed to send error notification: %v", notifyErr)
	}
}

var _ queue.Processor = (*Service)(nil)
