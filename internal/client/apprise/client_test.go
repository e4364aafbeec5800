package apprise

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisyphus-worker/internal/config"
)

func TestNotify(t *testing.T) {
	var got NotifyRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(config.AppriseConfig{Enabled: true, BaseURL: srv.URL + "/", Key: "media"}, "node1")
	require.NoError(t, c.NotifyError("Job Failed", "boom"))

	assert.Equal(t, "/notify/media", path)
	assert.Equal(t, "[node1] Job Failed", got.Title)
	assert.Equal(t, TypeFailure, got.Type)
	assert.Equal(t, "all", got.Tag)
}

func TestNotifyDisabled(t *testing.T) {
	c := NewClient(config.AppriseConfig{Enabled: false, BaseURL: "http://127.0.0.1:1"}, "node1")
	assert.NoError(t, c.NotifyInfo(context.Background(), "t", "b"))
}

func TestNotifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	c := NewClient(config.AppriseConfig{Enabled: true, BaseURL: srv.URL, Key: "k", Tag: "ops"}, "")
	err := c.NotifySuccess("t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}
