package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sisyphus-worker/internal/queue"
	"github.com/sisyphus-worker/internal/status"
	"github.com/sisyphus-worker/internal/version"
	"github.com/sisyphus-worker/pkg/logger"
)

// StatsProvider exposes the worker job counters.
type StatsProvider interface {
	Stats() queue.Stats
}

// Handler serves the worker status API.
type Handler struct {
	board    *status.Board
	stats    StatsProvider
	workerID string
	started  time.Time
}

// New creates a new Handler. stats may be nil.
func New(board *status.Board, stats StatsProvider, workerID string) *Handler {
	return &Handler{
		board:    board,
		stats:    stats,
		workerID: workerID,
		started:  time.Now(),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", h.Health)
		api.GET("/version", h.Version)
		api.GET("/status", h.Status)
	}
}

// Health returns service health status.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Version returns service version.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": version.Version})
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	WorkerID string           `json:"worker_id"`
	Uptime   string           `json:"uptime"`
	Status   status.Message   `json:"status"`
	Progress *status.Progress `json:"progress,omitempty"`
	Jobs     *queue.Stats     `json:"jobs,omitempty"`
}

// Status returns the current worker state and task progress.
func (h *Handler) Status(c *gin.Context) {
	snap := h.board.Snapshot()
	resp := StatusResponse{
		WorkerID: h.workerID,
		Uptime:   time.Since(h.started).Truncate(time.Second).String(),
		Status:   snap.Message,
		Progress: snap.Progress,
	}
	if h.stats != nil {
		stats := h.stats.Stats()
		resp.Jobs = &stats
	}
	c.JSON(http.StatusOK, resp)
}

// RequestLogger returns a gin middleware for logging HTTP requests.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		code := c.Writer.Status()
		if path != "/api/v1/health" || code >= 400 {
			logger.Debugf("HTTP %s %s → %d (%v)", c.Request.Method, path, code, time.Since(start))
		}
	}
}

// NewRouter builds the engine with recovery, request logging and all routes.
func NewRouter(h *Handler, release bool) *gin.Engine {
	if release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	h.RegisterRoutes(router)
	return router
}
