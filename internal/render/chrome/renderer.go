package chrome

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/edgecomet/articlepdf/pkg/types"
)

// paperFormat describes the PDF page geometry for one variant, in inches
// (the unit the DevTools printToPDF command expects).
type paperFormat struct {
	width  float64
	height float64
	margin float64
}

const (
	// ISO paper sizes in inches
	a4Width  = 8.27
	a4Height = 11.69
	a5Width  = 5.83
	a5Height = 8.27
	a6Width  = 4.13
	a6Height = 5.83

	// attachmentMarginInches is the 40px top/bottom margin of the paginated
	// layout, converted at CSS 96dpi. Inline layouts print edge to edge.
	attachmentMarginInches = 40.0 / 96.0
)

// viewport dimensions used while the page is prepared and printed.
type viewport struct {
	width  int64
	height int64
	mobile bool
}

// formatFor maps a variant to its paper geometry. Mobile always prints on
// A6; tablet uses A4 for the inline layout and A5 for the attachment;
// desktop always uses A4.
func formatFor(variant types.Variant) (paperFormat, error) {
	margin := attachmentMarginInches
	if variant.Inlined {
		margin = 0
	}

	switch variant.Device {
	case types.DeviceMobile:
		return paperFormat{width: a6Width, height: a6Height, margin: margin}, nil
	case types.DeviceTablet:
		if variant.Inlined {
			return paperFormat{width: a4Width, height: a4Height, margin: margin}, nil
		}
		return paperFormat{width: a5Width, height: a5Height, margin: margin}, nil
	case types.DeviceDesktop:
		return paperFormat{width: a4Width, height: a4Height, margin: margin}, nil
	default:
		return paperFormat{}, fmt.Errorf("%w: %s", ErrUnknownDevice, variant.Device)
	}
}

func viewportFor(device types.DeviceType) viewport {
	switch device {
	case types.DeviceMobile:
		return viewport{width: 412, height: 915, mobile: true}
	case types.DeviceTablet:
		return viewport{width: 768, height: 1024, mobile: true}
	default:
		return viewport{width: 1280, height: 800}
	}
}

// renderPlan orders the requested variants for a single page load: the
// inline layouts are exported first, then the page-break CSS is injected
// once and the paginated attachment layouts follow. The injection is not
// reversible on a live page, which is why the ordering is fixed.
func renderPlan(variants []types.Variant) []types.Variant {
	plan := make([]types.Variant, 0, len(variants))
	for _, v := range variants {
		if v.Inlined {
			plan = append(plan, v)
		}
	}
	for _, v := range variants {
		if !v.Inlined {
			plan = append(plan, v)
		}
	}
	return plan
}

// Renderer drives a shared headless browser to produce PDF variants of
// article pages. A semaphore sized by the pool configuration caps how many
// URLs render concurrently; each render gets its own tab.
type Renderer struct {
	instance *Instance
	config   *Config
	sem      chan struct{}
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewRenderer starts the browser and prepares the render pool.
func NewRenderer(config *Config, logger *zap.Logger) (*Renderer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	instance, err := NewInstance(config, logger)
	if err != nil {
		return nil, err
	}

	poolSize := config.CalculatePoolSize()
	logger.Info("Renderer pool initialized",
		zap.Int("pool_size", poolSize),
		zap.Duration("render_timeout", config.RenderTimeout))

	return &Renderer{
		instance: instance,
		config:   config,
		sem:      make(chan struct{}, poolSize),
		logger:   logger,
	}, nil
}

// Close shuts down the browser. In-flight renders fail with context errors.
func (r *Renderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	return r.instance.Terminate()
}

func (r *Renderer) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// RenderVariant renders a single variant of url. Used by the on-demand path.
func (r *Renderer) RenderVariant(ctx context.Context, url string, variant types.Variant) ([]byte, error) {
	var payload []byte
	err := r.Render(ctx, url, []types.Variant{variant}, func(_ types.Variant, data []byte) error {
		payload = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Render loads url once, prepares the DOM, and exports a PDF for every
// requested variant from the same loaded page, calling yield as each payload
// is produced. Yields made before a failure are final: the renderer never
// retracts them. The whole invocation shares one timeout.
func (r *Renderer) Render(ctx context.Context, url string, variants []types.Variant, yield func(types.Variant, []byte) error) error {
	if len(variants) == 0 {
		return ErrNoVariants
	}
	if r.isClosed() {
		return ErrRendererClosed
	}

	// Reject unknown devices before spending a browser tab on the URL.
	plan := renderPlan(variants)
	for _, variant := range plan {
		if _, err := formatFor(variant); err != nil {
			return types.NewRenderError(url, err.Error(), err)
		}
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return r.wrapContextErr(url, ctx.Err())
	}
	defer func() { <-r.sem }()

	tabCtx, tabCancel := r.instance.NewTab()
	defer tabCancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, r.config.RenderTimeout)
	defer timeoutCancel()

	// The caller's context still governs cancellation.
	go func() {
		select {
		case <-ctx.Done():
			timeoutCancel()
		case <-tabCtx.Done():
		}
	}()

	startTime := time.Now().UTC()

	if err := r.preparePage(tabCtx, url); err != nil {
		return r.wrapRenderErr(url, err)
	}

	breaksSuppressed := false
	for _, variant := range plan {
		if !variant.Inlined && !breaksSuppressed {
			if err := chromedp.Run(tabCtx, chromedp.Evaluate(suppressPageBreaksScript, nil)); err != nil {
				return r.wrapRenderErr(url, fmt.Errorf("%w: %v", ErrPrepareFailed, err))
			}
			breaksSuppressed = true
		}

		payload, err := r.exportVariant(tabCtx, variant)
		if err != nil {
			return r.wrapRenderErr(url, err)
		}

		if err := yield(variant, payload); err != nil {
			return err
		}

		r.logger.Debug("Variant rendered",
			zap.String("url", url),
			zap.String("variant", variant.String()),
			zap.Int("bytes", len(payload)))
	}

	r.logger.Info("Article rendered",
		zap.String("url", url),
		zap.Int("variants", len(plan)),
		zap.Duration("duration", time.Since(startTime)))

	return nil
}

// preparePage navigates to the URL and runs the declutter pipeline:
// lazy-load everything by scrolling to the bottom, then strip navigation,
// banners and dead links.
func (r *Renderer) preparePage(ctx context.Context, url string) error {
	if err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrNavigateFailed, err)
	}

	if err := chromedp.Run(ctx,
		chromedp.Evaluate(scrollToBottomScript, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	); err != nil {
		// Scroll failure is not fatal: the page is still printable, just
		// possibly with unloaded lazy images.
		r.logger.Warn("Lazy-load scroll failed", zap.String("url", url), zap.Error(err))
	}

	for _, script := range prepareScripts {
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, nil)); err != nil {
			return fmt.Errorf("%w: %v", ErrPrepareFailed, err)
		}
	}

	return nil
}

// exportVariant applies the variant's viewport and prints the current page.
func (r *Renderer) exportVariant(ctx context.Context, variant types.Variant) ([]byte, error) {
	format, err := formatFor(variant)
	if err != nil {
		return nil, err
	}
	vp := viewportFor(variant.Device)

	var payload []byte
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := emulation.SetDeviceMetricsOverride(vp.width, vp.height, 1, vp.mobile).Do(ctx); err != nil {
			return err
		}

		data, _, err := page.PrintToPDF().
			WithPaperWidth(format.width).
			WithPaperHeight(format.height).
			WithMarginTop(format.margin).
			WithMarginBottom(format.margin).
			WithMarginLeft(0).
			WithMarginRight(0).
			WithPrintBackground(true).
			Do(ctx)
		if err != nil {
			return err
		}

		payload = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPDF
	}

	return payload, nil
}

func (r *Renderer) wrapContextErr(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewRenderTimeout(url, err)
	}
	return types.NewRenderError(url, err.Error(), err)
}

func (r *Renderer) wrapRenderErr(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewRenderTimeout(url, err)
	}
	var renderErr *types.RenderError
	if errors.As(err, &renderErr) {
		return err
	}
	return types.NewRenderError(url, err.Error(), err)
}
