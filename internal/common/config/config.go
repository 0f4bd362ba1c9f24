package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edgecomet/articlepdf/internal/common/logger"
	"github.com/edgecomet/articlepdf/internal/common/urlmatch"
	"github.com/edgecomet/articlepdf/internal/common/yamlutil"
	"github.com/edgecomet/articlepdf/pkg/types"
)

// Config is the top-level pdf-service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Chrome   ChromeConfig   `yaml:"chrome"`
	Enricher EnricherConfig `yaml:"enricher"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      logger.Config  `yaml:"log"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Listen    string         `yaml:"listen"`
	AuthToken string         `yaml:"auth_token"`
	Timeout   types.Duration `yaml:"timeout"`
	// AllowedHosts restricts which article hosts may be rendered or queued.
	// Rules support exact hosts, * wildcards and ~/~* regexps. Empty allows
	// every host.
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// StorageConfig locates the artifact store.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ChromeConfig controls the rendering browser.
type ChromeConfig struct {
	// PoolSize is "auto" or a positive integer string. Auto sizing is
	// derived from available system RAM.
	PoolSize      string         `yaml:"pool_size"`
	ExecPath      string         `yaml:"exec_path"`
	RenderTimeout types.Duration `yaml:"render_timeout"`
}

// EnricherConfig controls the batch enrichment worker.
type EnricherConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Interval types.Duration `yaml:"interval"`
}

// CleanupConfig controls the retention worker.
type CleanupConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Interval types.Duration `yaml:"interval"`
	MaxAge   types.Duration `yaml:"max_age"`
}

// MetricsConfig controls the separate Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Load reads, parses and validates a configuration file.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with baseline values. The enrichment and
// retention intervals and the retention window match the service defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:  ":8080",
			Timeout: types.Duration(90 * time.Second),
		},
		Storage: StorageConfig{
			Path: "data/articles.db",
		},
		Chrome: ChromeConfig{
			PoolSize:      "auto",
			RenderTimeout: types.Duration(60 * time.Second),
		},
		Enricher: EnricherConfig{
			Enabled:  true,
			Interval: types.Duration(30 * time.Second),
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			Interval: types.Duration(60 * time.Minute),
			MaxAge:   types.Duration(30 * 24 * time.Hour),
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Listen:    ":9090",
			Path:      "/metrics",
			Namespace: "articlepdf",
		},
		Log: logger.Config{
			Level: logger.LevelInfo,
			Console: logger.ConsoleConfig{
				Enabled: true,
				Format:  logger.FormatConsole,
			},
		},
	}
}

// Validate checks configuration invariants that cannot be expressed in YAML.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Server.AuthToken == "" {
		return fmt.Errorf("server.auth_token must be configured")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if _, err := urlmatch.Compile(c.Server.AllowedHosts); err != nil {
		return fmt.Errorf("server.allowed_hosts: %w", err)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Chrome.RenderTimeout <= 0 {
		return fmt.Errorf("chrome.render_timeout must be positive")
	}
	if c.Enricher.Enabled && c.Enricher.Interval <= 0 {
		return fmt.Errorf("enricher.interval must be positive")
	}
	if c.Cleanup.Enabled {
		if c.Cleanup.Interval <= 0 {
			return fmt.Errorf("cleanup.interval must be positive")
		}
		if c.Cleanup.MaxAge <= 0 {
			return fmt.Errorf("cleanup.max_age must be positive")
		}
	}
	if c.Metrics.Enabled {
		if c.Metrics.Listen == "" {
			return fmt.Errorf("metrics.listen must not be empty when metrics are enabled")
		}
		if c.Metrics.Listen == c.Server.Listen {
			return fmt.Errorf("metrics.listen must differ from server.listen")
		}
		if c.Metrics.Path == "" {
			return fmt.Errorf("metrics.path must not be empty when metrics are enabled")
		}
	}
	return nil
}
