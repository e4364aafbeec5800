// Package telemetry publishes the worker status and task progress to the
// coordinating server, either through the HTTP API or as expiring redis keys.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sisyphus-worker/internal/client/api"
	"github.com/sisyphus-worker/internal/status"
)

// Sink receives status and progress publications.
type Sink interface {
	PublishStatus(ctx context.Context, msg status.Message) error
	PublishProgress(ctx context.Context, p status.Progress) error
}

// StatusPoster is the part of the API client the HTTP sink needs.
type StatusPoster interface {
	PostStatus(ctx context.Context, req api.StatusRequest) error
}

// HTTPSink posts every publication to the API. Progress travels as the "data"
// field of the last status message.
type HTTPSink struct {
	client   StatusPoster
	workerID string

	mu       sync.Mutex
	msg      status.Message
	progress *status.Progress
}

func NewHTTPSink(client StatusPoster, workerID string) *HTTPSink {
	return &HTTPSink{client: client, workerID: workerID}
}

func (s *HTTPSink) PublishStatus(ctx context.Context, msg status.Message) error {
	s.mu.Lock()
	if msg.Status != status.StateInProgress || msg.Task != s.msg.Task || msg.JobID != s.msg.JobID {
		s.progress = nil
	}
	s.msg = msg
	req := s.request()
	s.mu.Unlock()
	return s.client.PostStatus(ctx, req)
}

func (s *HTTPSink) PublishProgress(ctx context.Context, p status.Progress) error {
	s.mu.Lock()
	s.progress = &p
	req := s.request()
	s.mu.Unlock()
	return s.client.PostStatus(ctx, req)
}

func (s *HTTPSink) request() api.StatusRequest {
	req := api.StatusRequest{Message: s.msg, WorkerID: s.workerID}
	if s.progress != nil {
		p := *s.progress
		req.Data = &p
	}
	return req
}

// RedisSink writes "status:<worker id>" and "progress:<worker id>" keys. Both
// expire, so a dead worker disappears from the dashboard on its own.
type RedisSink struct {
	client         *redis.Client
	workerID       string
	statusExpiry   time.Duration
	progressExpiry time.Duration
}

func NewRedisSink(client *redis.Client, workerID string, statusExpiry, progressExpiry time.Duration) *RedisSink {
	return &RedisSink{
		client:         client,
		workerID:       workerID,
		statusExpiry:   statusExpiry,
		progressExpiry: progressExpiry,
	}
}

// StatusKey returns the key holding the worker status.
func (s *RedisSink) StatusKey() string { return "status:" + s.workerID }

// ProgressKey returns the key holding the task progress.
func (s *RedisSink) ProgressKey() string { return "progress:" + s.workerID }

func (s *RedisSink) PublishStatus(ctx context.Context, msg status.Message) error {
	return s.set(ctx, s.StatusKey(), msg, s.statusExpiry)
}

func (s *RedisSink) PublishProgress(ctx context.Context, p status.Progress) error {
	return s.set(ctx, s.ProgressKey(), p, s.progressExpiry)
}

func (s *RedisSink) set(ctx context.Context, key string, v any, expiry time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, expiry).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
