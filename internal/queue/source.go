package queue

import (
	"context"
	"errors"
)

// ErrTransport marks a failure to reach the queue backend.
var ErrTransport = errors.New("queue transport")

// Source hands out jobs. Poll returns nil, nil when no job is available.
type Source interface {
	Poll(ctx context.Context) (*Job, error)
	// Describe names the queue in log lines.
	Describe() string
}
