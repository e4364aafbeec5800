package telemetry

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sisyphus-worker/internal/status"
	"github.com/sisyphus-worker/pkg/logger"
)

const publishTimeout = 3 * time.Second

// Heartbeat publishes the board on a fixed interval.
type Heartbeat struct {
	board    *status.Board
	sink     Sink
	interval time.Duration
}

func NewHeartbeat(board *status.Board, sink Sink, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Heartbeat{board: board, sink: sink, interval: interval}
}

// Run publishes immediately and then every interval until ctx is cancelled.
// Publication failures are logged and otherwise ignored.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		h.publish(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Heartbeat) publish(ctx context.Context) {
	snap := h.board.Snapshot()
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := h.sink.PublishStatus(ctx, snap.Message); err != nil {
		logger.Debugf("💓 Heartbeat failed: %v", err)
		return
	}
	if snap.Progress != nil {
		if err := h.sink.PublishProgress(ctx, *snap.Progress); err != nil {
			logger.Debugf("💓 Progress refresh failed: %v", err)
		}
	}
}

// ProgressPublisher records progress on the board and forwards it to the sink,
// at most once per interval. The final record of a task always goes through.
// Publish never waits on the sink; Run delivers the latest pending record.
type ProgressPublisher struct {
	board   *status.Board
	sink    Sink
	limiter *rate.Limiter
	pending chan status.Progress
}

func NewProgressPublisher(board *status.Board, sink Sink, minInterval time.Duration) *ProgressPublisher {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &ProgressPublisher{
		board:   board,
		sink:    sink,
		limiter: rate.NewLimiter(limit, 1),
		pending: make(chan status.Progress, 1),
	}
}

// Publish implements the module progress reporter. A record still waiting for
// delivery is replaced by the newer one.
func (p *ProgressPublisher) Publish(pr status.Progress) {
	p.board.SetProgress(pr)

	final := pr.TotalFrames > 0 && pr.CurrentFrame >= pr.TotalFrames
	if !final && !p.limiter.Allow() {
		return
	}

	for {
		select {
		case p.pending <- pr:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

// Run sends pending records to the sink until ctx is cancelled.
func (p *ProgressPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pr := <-p.pending:
			p.send(ctx, pr)
		}
	}
}

func (p *ProgressPublisher) send(ctx context.Context, pr status.Progress) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.sink.PublishProgress(ctx, pr); err != nil {
		logger.Debugf("📈 Progress publish failed: %v", err)
	}
}
