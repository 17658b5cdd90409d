package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Worker runs the pipeline on a fixed interval in the background
type Worker struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a new pipeline worker
func NewWorker(p *Pipeline, interval time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{
		pipeline: p,
		interval: interval,
		logger:   logger.Named("worker"),
	}
}

// Start launches the polling loop. It is a no-op when already running.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true
	go w.loop(ctx)
}

// Stop ends the polling loop and waits for the current pass to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.cancel()
	<-w.done
	w.running = false
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("pipeline worker started", zap.Duration("interval", w.interval))
	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("pipeline worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	res, err := w.pipeline.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("pipeline pass failed", zap.Error(err))
		return
	}
	if res.Scored > 0 {
		w.logger.Info("scored completed transactions",
			zap.Int("scored", res.Scored),
			zap.Int("flagged", res.Flagged),
			zap.Int64("checkpoint", res.Checkpoint),
		)
	}
}
