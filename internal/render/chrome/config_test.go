package chrome

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "explicit pool size",
			mutate: func(c *Config) { c.PoolSize = "8" },
		},
		{
			name:    "non-numeric pool size",
			mutate:  func(c *Config) { c.PoolSize = "many" },
			wantErr: "pool size",
		},
		{
			name:    "zero pool size",
			mutate:  func(c *Config) { c.PoolSize = "0" },
			wantErr: "positive",
		},
		{
			name:    "zero render timeout",
			mutate:  func(c *Config) { c.RenderTimeout = 0 },
			wantErr: "render timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCalculatePoolSizeExplicit(t *testing.T) {
	config := &Config{PoolSize: "7", RenderTimeout: time.Minute}
	assert.Equal(t, 7, config.CalculatePoolSize())
}

func TestCalculatePoolSizeAutoWithinBounds(t *testing.T) {
	config := &Config{PoolSize: "auto", RenderTimeout: time.Minute}
	size := config.CalculatePoolSize()
	assert.GreaterOrEqual(t, size, 2)
	assert.LessOrEqual(t, size, 50)
}

func TestCalculatePoolSizeInvalidFallsBackToAuto(t *testing.T) {
	config := &Config{PoolSize: "-3", RenderTimeout: time.Minute}
	size := config.CalculatePoolSize()
	assert.GreaterOrEqual(t, size, 2)
	assert.LessOrEqual(t, size, 50)
}
