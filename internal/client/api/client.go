package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sisyphus-worker/internal/command"
	"github.com/sisyphus-worker/internal/config"
	"github.com/sisyphus-worker/internal/status"
	"github.com/sisyphus-worker/pkg/logger"
)

// ErrNotFound is returned when the server has no record for the request.
var ErrNotFound = errors.New("not found")

// WorkerState is the server's view of whether this worker may take jobs.
type WorkerState int

const (
	// WorkerUnknown means the server has not registered the worker yet.
	WorkerUnknown WorkerState = iota
	WorkerEnabled
	WorkerDisabled
)

// Client wraps the job API.
type Client struct {
	baseURL string
	client  *resty.Client
}

// NewClient creates a new API client.
func NewClient(cfg config.APIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  client,
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

type disableResponse struct {
	Disabled bool `json:"disabled"`
}

// WorkerState asks the server whether the worker is disabled.
func (c *Client) WorkerState(ctx context.Context, workerID string) (WorkerState, error) {
	var out disableResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.url("/disable/" + url.PathEscape(workerID)))
	if err != nil {
		return WorkerUnknown, fmt.Errorf("api request: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return WorkerUnknown, nil
	case resp.IsError():
		return WorkerUnknown, fmt.Errorf("api error: %s: %s", resp.Status(), resp.String())
	case out.Disabled:
		return WorkerDisabled, nil
	default:
		return WorkerEnabled, nil
	}
}

// PollJob fetches the next job document. It returns nil when the queue is empty.
func (c *Client) PollJob(ctx context.Context) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.url("/queue/poll"))
	if err != nil {
		return nil, fmt.Errorf("api request: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("api error: %s: %s", resp.Status(), resp.String())
	}
	logger.Debugf("📬 Job document received (%d bytes)", len(resp.Body()))
	return resp.Body(), nil
}

// StatusRequest is the heartbeat body.
type StatusRequest struct {
	status.Message
	WorkerID string           `json:"worker_id"`
	Data     *status.Progress `json:"data,omitempty"`
}

// PostStatus publishes a heartbeat.
func (c *Client) PostStatus(ctx context.Context, req StatusRequest) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.url("/workers/status"))
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("api error: %s: %s", resp.Status(), resp.String())
	}
	return nil
}

type profileResponse struct {
	Settings command.Options `json:"settings"`
}

// Profile loads the settings of a named ffmpeg encode profile from the worker
// data endpoint. A record without settings yields no options.
func (c *Client) Profile(ctx context.Context, name string) (command.Options, error) {
	var out profileResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"module":  "ffmpeg",
			"dataset": "profiles",
			"name":    name,
		}).
		SetResult(&out).
		Get(c.url("/worker/data"))
	if err != nil {
		return nil, fmt.Errorf("api request: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("profile %q: %w", name, ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("api error: %s: %s", resp.Status(), resp.String())
	}
	return out.Settings, nil
}
