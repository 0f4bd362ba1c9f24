package cleanup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/articlepdf/internal/pdf/cache"
)

// Worker is the retention loop: on a fixed interval it deletes cache rows
// older than the configured age, regardless of pending/cached/failed state.
// A pending row that grew too old is discarded with it; no caller is
// notified.
type Worker struct {
	store    *cache.Store
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
	metrics  *CleanupMetrics
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorker creates a retention worker.
func NewWorker(
	store *cache.Store,
	interval time.Duration,
	maxAge time.Duration,
	logger *zap.Logger,
	metrics *CleanupMetrics,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the periodic loop. Errors are logged and swallowed; the
// loop continues on the same interval until Shutdown.
func (w *Worker) Start() {
	w.logger.Info("Retention worker starting",
		zap.Duration("interval", w.interval),
		zap.Duration("max_age", w.maxAge))

	ticker := time.NewTicker(w.interval)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.runCleanup()
			case <-w.ctx.Done():
				w.logger.Info("Retention worker shutting down")
				return
			}
		}
	}()
}

// Shutdown stops the loop and waits for an in-flight run to finish.
func (w *Worker) Shutdown() {
	w.logger.Info("Stopping retention worker")
	w.cancel()
	w.wg.Wait()
	w.logger.Info("Retention worker stopped")
}

func (w *Worker) runCleanup() {
	startTime := time.Now().UTC()
	w.logger.Info("Removing articles older than retention window",
		zap.Duration("max_age", w.maxAge))

	removed, err := w.store.PruneOlderThan(w.ctx, w.maxAge)

	duration := time.Since(startTime)
	w.metrics.RecordDuration(duration.Seconds())

	if err != nil {
		w.logger.Error("Unexpected error during removing old articles", zap.Error(err))
		w.metrics.RecordRun("failure")
		return
	}

	w.metrics.RecordRun("success")
	if removed > 0 {
		w.metrics.RecordRowsDeleted(removed)
	}

	w.logger.Info("Old articles were deleted from the cache",
		zap.Int64("rows", removed),
		zap.Duration("duration", duration))
}
