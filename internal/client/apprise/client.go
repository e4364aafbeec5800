package apprise

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sisyphus-worker/internal/config"
	"github.com/sisyphus-worker/pkg/logger"
)

// Notification types understood by Apprise.
const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeFailure = "failure"
)

// Client wraps the Apprise API.
type Client struct {
	cfg      config.AppriseConfig
	hostname string
	client   *resty.Client
}

// NewClient creates a new Apprise client. Titles are prefixed with the worker
// hostname so several workers can share one channel.
func NewClient(cfg config.AppriseConfig, hostname string) *Client {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)

	return &Client{
		cfg:      cfg,
		hostname: hostname,
		client:   client,
	}
}

// NotifyRequest is the request body for Apprise.
type NotifyRequest struct {
	Body  string `json:"body"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"` // info, success, warning, failure
	Tag   string `json:"tag,omitempty"`
}

// Notify sends a notification via Apprise. It is a no-op when disabled.
func (c *Client) Notify(ctx context.Context, title, body, notifyType string) error {
	if !c.cfg.Enabled {
		return nil
	}

	tag := c.cfg.Tag
	if tag == "" {
		tag = "all"
	}
	if c.hostname != "" {
		title = fmt.Sprintf("[%s] %s", c.hostname, title)
	}

	url := fmt.Sprintf("%s/notify/%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Key)
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(NotifyRequest{Title: title, Body: body, Type: notifyType, Tag: tag}).
		Post(url)
	if err != nil {
		return fmt.Errorf("apprise request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("apprise error: %s", resp.String())
	}

	logger.Debugf("🔔 Notification sent: %s", title)
	return nil
}

// NotifySuccess sends a job completion notification.
func (c *Client) NotifySuccess(title, body string) error {
	return c.Notify(context.Background(), title, body, TypeSuccess)
}

// NotifyError sends a job failure notification.
func (c *Client) NotifyError(title, body string) error {
	return c.Notify(context.Background(), title, body, TypeFailure)
}

// NotifyInfo sends an informational notification.
func (c *Client) NotifyInfo(ctx context.Context, title, body string) error {
	return c.Notify(ctx, title, body, TypeInfo)
}
