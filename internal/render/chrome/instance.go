package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Instance owns one headless browser process shared by all renders. Each
// render opens its own tab context from the browser context.
type Instance struct {
	ctx             context.Context
	cancel          context.CancelFunc
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	createdAt       time.Time
	logger          *zap.Logger
}

// NewInstance creates and starts a browser instance with the given configuration
func NewInstance(config *Config, logger *zap.Logger) (*Instance, error) {
	instance := &Instance{
		createdAt: time.Now().UTC(),
		logger:    logger,
	}

	if err := instance.createBrowser(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserStart, err)
	}

	instance.logger.Info("Browser instance created",
		zap.Time("created_at", instance.createdAt))

	return instance, nil
}

// createBrowser initializes the browser process
func (in *Instance) createBrowser(config *Config) error {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-speech-api", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("font-render-hinting", "none"),
	}

	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}

	allocatorOpts := append(chromedp.DefaultExecAllocatorOptions[:], opts...)
	in.allocatorCtx, in.allocatorCancel = chromedp.NewExecAllocator(context.Background(), allocatorOpts...)

	in.ctx, in.cancel = chromedp.NewContext(in.allocatorCtx)

	// Start the browser (this doesn't navigate anywhere yet)
	if err := chromedp.Run(in.ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	return nil
}

// Age returns how long the instance has been running
func (in *Instance) Age() time.Duration {
	return time.Now().UTC().Sub(in.createdAt)
}

// NewTab returns a fresh tab context for one render
func (in *Instance) NewTab() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(in.ctx)
}

// Terminate cleanly shuts down the browser instance
func (in *Instance) Terminate() error {
	if in.cancel != nil {
		in.cancel()
	}
	if in.allocatorCancel != nil {
		in.allocatorCancel()
	}
	return nil
}
