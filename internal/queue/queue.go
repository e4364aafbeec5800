package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sisyphus-worker/internal/config"
	"github.com/sisyphus-worker/internal/status"
	"github.com/sisyphus-worker/pkg/logger"
)

// Processor is the interface that processes a job.
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// Stats counts jobs handled since startup.
type Stats struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Worker polls a Source and hands jobs to the Processor one at a time.
type Worker struct {
	source    Source
	processor Processor
	board     *status.Board
	settings  func() config.QueueConfig

	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// NewWorker creates a worker. settings is read before every poll so delays can be
// changed while running.
func NewWorker(source Source, processor Processor, board *status.Board, settings func() config.QueueConfig) *Worker {
	return &Worker{
		source:    source,
		processor: processor,
		board:     board,
		settings:  settings,
	}
}

// Stats returns the job counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Completed: w.completed.Load(),
		Failed:    w.failed.Load(),
		Rejected:  w.rejected.Load(),
	}
}

// Run polls until ctx is cancelled. Jobs are processed sequentially; transport
// failures mark the worker disconnected and back off without exiting.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("📥 Worker online, ready to process jobs.")

	waiting := false
	connected := true
	for {
		qc := w.settings()
		if err := sleep(ctx, qc.PollDelay); err != nil {
			return err
		}

		job, err := w.source.Poll(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, ErrTransport) {
			if connected {
				logger.Warnf("⚠️ Cannot reach %s: %v", w.source.Describe(), err)
				connected = false
			}
			waiting = false
			w.board.Set(status.StateDisconnected, "disconnected", "", "")
			if err := sleep(ctx, qc.FailureDelay); err != nil {
				return err
			}
			continue
		}
		if !connected {
			logger.Infof("🔌 Reconnected to %s", w.source.Describe())
			connected = true
		}

		if err != nil {
			w.rejected.Add(1)
			logger.Errorf("❌ Rejected job from %s: %v", w.source.Describe(), err)
			continue
		}

		if job == nil {
			if !waiting {
				logger.Infof("⏳ Waiting for job in %s", w.source.Describe())
				waiting = true
			}
			w.board.Set(status.StateIdle, "idle", "", "")
			continue
		}

		waiting = false
		if err := w.processor.Process(ctx, job); err != nil {
			w.failed.Add(1)
		} else {
			w.completed.Add(1)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
