package queue

import (
	"context"
	"fmt"

	"github.com/sisyphus-worker/internal/client/api"
	"github.com/sisyphus-worker/pkg/logger"
)

// JobAPI is the part of the API client the HTTP source needs.
type JobAPI interface {
	WorkerState(ctx context.Context, workerID string) (api.WorkerState, error)
	PollJob(ctx context.Context) ([]byte, error)
}

// HTTPSource polls the job API. A worker the server does not know yet, or has
// disabled, receives no jobs.
type HTTPSource struct {
	api      JobAPI
	workerID string
	url      string

	lastState api.WorkerState
	stateSeen bool
}

func NewHTTPSource(client JobAPI, workerID, url string) *HTTPSource {
	return &HTTPSource{api: client, workerID: workerID, url: url}
}

func (s *HTTPSource) Describe() string {
	return fmt.Sprintf("API queue '%s'", s.url)
}

func (s *HTTPSource) Poll(ctx context.Context) (*Job, error) {
	state, err := s.api.WorkerState(ctx, s.workerID)
	if err != nil {
		return nil, s.transport(ctx, err)
	}
	s.logState(state)
	if state != api.WorkerEnabled {
		return nil, nil
	}

	body, err := s.api.PollJob(ctx)
	if err != nil {
		return nil, s.transport(ctx, err)
	}
	if body == nil {
		return nil, nil
	}
	logger.Info("📬 New job found for worker!")
	return Decode(body)
}

// logState logs state changes only, so an idle worker does not repeat itself.
func (s *HTTPSource) logState(state api.WorkerState) {
	if s.stateSeen && state == s.lastState {
		return
	}
	s.stateSeen = true
	s.lastState = state
	switch state {
	case api.WorkerUnknown:
		logger.Info("⏳ Waiting for worker status from server...")
	case api.WorkerDisabled:
		logger.Warn("⛔ Worker is disabled and cannot accept jobs!")
	case api.WorkerEnabled:
		logger.Info("✅ Worker is enabled")
	}
}

func (s *HTTPSource) transport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
