package enricher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/articlepdf/internal/pdf/cache"
	"github.com/edgecomet/articlepdf/pkg/types"
)

// Renderer produces PDF payloads for all requested variants of a URL in one
// invocation, yielding each payload as it is produced. Variants already
// yielded before a failure are not retracted.
type Renderer interface {
	Render(ctx context.Context, url string, variants []types.Variant, yield func(types.Variant, []byte) error) error
}

// Worker is the batch enrichment loop: on a fixed interval it drains the
// pending queue, groups entries by URL and renders each URL group once.
//
// The queue has no per-row claim or lease; the worker assumes it is the only
// enrichment instance running against the store.
type Worker struct {
	store    *cache.Store
	renderer Renderer
	interval time.Duration
	logger   *zap.Logger
	metrics  *EnricherMetrics
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorker creates a batch enrichment worker.
func NewWorker(
	store *cache.Store,
	renderer Renderer,
	interval time.Duration,
	logger *zap.Logger,
	metrics *EnricherMetrics,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:    store,
		renderer: renderer,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the periodic loop. The loop only exits on Shutdown; tick
// failures are logged and the next tick runs on schedule.
func (w *Worker) Start() {
	w.logger.Info("Enrichment worker starting",
		zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.runEnrichment()
			case <-w.ctx.Done():
				w.logger.Info("Enrichment worker shutting down")
				return
			}
		}
	}()
}

// Shutdown stops the loop and waits for an in-flight tick to finish.
func (w *Worker) Shutdown() {
	w.logger.Info("Stopping enrichment worker")
	w.cancel()
	w.wg.Wait()
	w.logger.Info("Enrichment worker stopped")
}

func (w *Worker) runEnrichment() {
	startTime := time.Now().UTC()

	if err := w.generateAndSave(w.ctx); err != nil {
		w.logger.Error("Unexpected error during batch PDF generation", zap.Error(err))
		w.metrics.RecordRun("failure")
	} else {
		w.metrics.RecordRun("success")
	}

	w.metrics.RecordDuration(time.Since(startTime).Seconds())
}

// urlGroup collects the distinct devices and layouts pending for one URL.
// Not necessarily the full six-way cross product - only what is queued.
type urlGroup struct {
	url     string
	devices []types.DeviceType
	inlines []bool
}

func (g *urlGroup) variants() []types.Variant {
	variants := make([]types.Variant, 0, len(g.devices)*len(g.inlines))
	for _, inlined := range g.inlines {
		for _, device := range g.devices {
			variants = append(variants, types.Variant{Device: device, Inlined: inlined})
		}
	}
	return variants
}

// generateAndSave performs one enrichment tick. Failures of one URL group
// are isolated: they mark that URL failed and processing continues with the
// remaining groups.
func (w *Worker) generateAndSave(ctx context.Context) error {
	entries, err := w.store.DequeuePending(ctx)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		w.logger.Debug("No articles to process")
		return nil
	}

	w.logger.Info("Found articles for generating PDFs",
		zap.Int("entries", len(entries)))

	for _, group := range groupByURL(entries) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.processGroup(ctx, group)
	}

	return nil
}

// processGroup renders all pending variants of one URL with a single
// renderer invocation, persisting each payload as it is yielded so partial
// progress survives a later failure within the same group.
func (w *Worker) processGroup(ctx context.Context, group *urlGroup) {
	w.logger.Info("Started processing article",
		zap.String("url", group.url),
		zap.Int("pending_variants", len(group.devices)*len(group.inlines)))

	err := w.renderer.Render(ctx, group.url, group.variants(), func(variant types.Variant, payload []byte) error {
		if err := w.store.Upsert(ctx, group.url, variant.Device, variant.Inlined, payload); err != nil {
			return err
		}
		w.metrics.RecordVariant()
		return nil
	})
	if err != nil {
		// The whole URL group is flagged, including variants already
		// persisted by this tick. A flagged row keeps its payload but is
		// excluded from future dequeues until the URL is enqueued again.
		if markErr := w.store.MarkURLFailed(ctx, group.url, err.Error()); markErr != nil {
			w.logger.Error("Failed to mark article as failed",
				zap.String("url", group.url),
				zap.Error(markErr))
		}
		w.logger.Error("Cannot process article",
			zap.String("url", group.url),
			zap.Error(err))
		w.metrics.RecordURL("failure")
		return
	}

	w.logger.Info("Article was successfully processed",
		zap.String("url", group.url))
	w.metrics.RecordURL("success")
}

// groupByURL groups dequeued entries by URL, preserving the queue ordering
// across groups (first pending entry seen decides the group's position).
func groupByURL(entries []*cache.CacheEntry) []*urlGroup {
	byURL := make(map[string]*urlGroup)
	var ordered []*urlGroup

	for _, entry := range entries {
		group, ok := byURL[entry.URL]
		if !ok {
			group = &urlGroup{url: entry.URL}
			byURL[entry.URL] = group
			ordered = append(ordered, group)
		}

		if !containsDevice(group.devices, entry.Device) {
			group.devices = append(group.devices, entry.Device)
		}
		if !containsBool(group.inlines, entry.Inlined) {
			group.inlines = append(group.inlines, entry.Inlined)
		}
	}

	return ordered
}

func containsDevice(devices []types.DeviceType, device types.DeviceType) bool {
	for _, d := range devices {
		if d == device {
			return true
		}
	}
	return false
}

func containsBool(values []bool, value bool) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
