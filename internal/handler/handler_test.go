package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisyphus-worker/internal/queue"
	"github.com/sisyphus-worker/internal/status"
	"github.com/sisyphus-worker/internal/version"
)

type staticStats queue.Stats

func (s staticStats) Stats() queue.Stats { return queue.Stats(s) }

func newTestRouter(board *status.Board) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(New(board, staticStats{Completed: 3, Failed: 1}, "worker-1"), false)
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndVersion(t *testing.T) {
	r := newTestRouter(status.NewBoard("node1", "1.2.3"))

	w := get(t, r, "/api/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get(t, r, "/api/v1/version")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), version.Version)
}

func TestStatus(t *testing.T) {
	board := status.NewBoard("node1", "1.2.3")
	board.Set(status.StateInProgress, "handbrake", "Show S01E01", "7")
	board.SetProgress(status.NewProgress(30, 120))
	r := newTestRouter(board)

	w := get(t, r, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "worker-1", resp.WorkerID)
	assert.Equal(t, status.StateInProgress, resp.Status.Status)
	assert.Equal(t, "handbrake", resp.Status.Task)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, "25.00", resp.Progress.PercentComplete)
	require.NotNil(t, resp.Jobs)
	assert.Equal(t, int64(3), resp.Jobs.Completed)
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(status.NewBoard("node1", "1.2.3"))
	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/v1/queue").Code)
}
