package cache

import (
	"time"

	"github.com/edgecomet/articlepdf/pkg/types"
)

// CacheEntry is one persisted rendering of an article URL for a single
// variant. The (URL, Device, Inlined) triple is the natural cache key.
type CacheEntry struct {
	ID      int64
	URL     string
	Device  types.DeviceType
	Inlined bool

	// Payload holds the rendered PDF bytes. An absent payload together with
	// PayloadSize == 0 marks the entry as pending (enqueued, not rendered).
	Payload     []byte
	PayloadSize int64

	// StoredAt is refreshed on every successful payload write, never on
	// enqueue-only inserts beyond the initial insert time.
	StoredAt time.Time

	// LastError is non-nil once the owning URL's batch render failed. Such
	// rows are excluded from dequeue until the URL is enqueued again.
	LastError *string
}

// Pending reports whether the entry is enqueued but not yet rendered.
func (e *CacheEntry) Pending() bool {
	return e.PayloadSize == 0
}

// Failed reports whether the entry carries a failure marker.
func (e *CacheEntry) Failed() bool {
	return e.LastError != nil
}

// Variant returns the entry's rendering configuration.
func (e *CacheEntry) Variant() types.Variant {
	return types.Variant{Device: e.Device, Inlined: e.Inlined}
}

// Stats summarizes store-wide cache volume.
type Stats struct {
	Rows  int64 `json:"rows"`
	Bytes int64 `json:"bytes"`
}
