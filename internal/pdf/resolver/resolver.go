package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/edgecomet/articlepdf/internal/pdf/cache"
	"github.com/edgecomet/articlepdf/pkg/types"
)

// Renderer produces a single PDF variant for a URL.
type Renderer interface {
	RenderVariant(ctx context.Context, url string, variant types.Variant) ([]byte, error)
}

// Resolver serves one variant of an article: cache hit returns the stored
// bytes, cache miss renders synchronously and stores the result.
//
// There is no mutual exclusion across concurrent requests for the same
// missing key: two simultaneous misses each render independently and each
// upsert, last writer wins. The store keeps a single row per key either way.
type Resolver struct {
	store    *cache.Store
	renderer Renderer
	logger   *zap.Logger
}

// NewResolver creates a Resolver backed by the given store and renderer.
func NewResolver(store *cache.Store, renderer Renderer, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:    store,
		renderer: renderer,
		logger:   logger,
	}
}

// GetOrGenerate returns the PDF bytes for exactly one (url, device, inlined)
// variant, rendering and caching it on a miss.
func (r *Resolver) GetOrGenerate(ctx context.Context, url string, device types.DeviceType, inlined bool) ([]byte, error) {
	variant := types.Variant{Device: device, Inlined: inlined}

	entry, err := r.store.Find(ctx, url, device, inlined)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	if entry != nil && !entry.Pending() {
		r.logger.Debug("Cache hit",
			zap.String("url", url),
			zap.Stringer("variant", variant),
			zap.Int64("size", entry.PayloadSize))
		return entry.Payload, nil
	}

	r.logger.Info("Cache miss, rendering on demand",
		zap.String("url", url),
		zap.Stringer("variant", variant))

	payload, err := r.renderer.RenderVariant(ctx, url, variant)
	if err != nil {
		return nil, err
	}

	if err := r.store.Upsert(ctx, url, device, inlined, payload); err != nil {
		return nil, fmt.Errorf("store rendered payload: %w", err)
	}

	r.logger.Info("Rendered and cached on demand",
		zap.String("url", url),
		zap.Stringer("variant", variant),
		zap.Int("size", len(payload)))
	return payload, nil
}
