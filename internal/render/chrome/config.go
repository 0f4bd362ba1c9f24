package chrome

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// Config holds the configuration for the rendering browser
type Config struct {
	// PoolSize caps concurrent render tabs: "auto" or integer string
	PoolSize string
	// ExecPath overrides the Chrome/Chromium executable path; empty uses
	// whatever chromedp discovers on the host
	ExecPath string
	// RenderTimeout bounds one full render invocation (navigation, DOM
	// preparation and all PDF exports for the URL)
	RenderTimeout time.Duration
}

// DefaultConfig is used in tests to avoid constructing full Config structs
func DefaultConfig() *Config {
	return &Config{
		PoolSize:      "auto",
		RenderTimeout: 60 * time.Second,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.PoolSize != "auto" {
		size, err := strconv.Atoi(c.PoolSize)
		if err != nil {
			return fmt.Errorf("pool size must be 'auto' or valid integer")
		}
		if size <= 0 {
			return fmt.Errorf("pool size must be positive")
		}
	}

	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be positive")
	}

	return nil
}

// CalculatePoolSize determines how many renders may run concurrently.
// Auto sizing: (available RAM - 2GB reserve) / 500MB per render tab.
func (c *Config) CalculatePoolSize() int {
	if c.PoolSize == "auto" {
		return c.calculateAutoPoolSize()
	}

	size, err := strconv.Atoi(c.PoolSize)
	if err != nil || size <= 0 {
		// Fallback to auto if invalid
		return c.calculateAutoPoolSize()
	}

	return size
}

// calculateAutoPoolSize calculates pool size based on available RAM
func (c *Config) calculateAutoPoolSize() int {
	v, err := mem.VirtualMemory()
	var totalRAMBytes int64

	if err != nil {
		// Conservative estimate when system memory cannot be read
		totalRAMBytes = int64(8 * 1024 * 1024 * 1024)
	} else {
		totalRAMBytes = int64(v.Total)
	}

	reservedBytes := int64(2 * 1024 * 1024 * 1024)
	availableBytes := totalRAMBytes - reservedBytes

	tabBytes := int64(500 * 1024 * 1024)

	poolSize := int(availableBytes / tabBytes)

	if poolSize < 2 {
		poolSize = 2
	}
	if poolSize > 50 {
		poolSize = 50
	}

	return poolSize
}
