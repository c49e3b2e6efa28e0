// Package config loads ioclens configuration from YAML with environment
// variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ioclens/internal/browser"
	"ioclens/internal/discovery"
	"ioclens/internal/logging"
	"ioclens/internal/sources"
)

// Config is the full application configuration.
type Config struct {
	Scanner   ScannerConfig          `yaml:"scanner"`
	Sources   []sources.RESTConfig   `yaml:"sources"`
	Watchlist WatchlistConfig        `yaml:"watchlist"`
	Discovery discovery.GeminiConfig `yaml:"discovery"`
	Browser   browser.Config         `yaml:"browser"`
	Store     StoreConfig            `yaml:"store"`
	Logging   logging.Config         `yaml:"logging"`
}

// ScannerConfig tunes match finding and AI discovery thresholds.
type ScannerConfig struct {
	CaseSensitive       bool    `yaml:"case_sensitive"`
	RequireWordBoundary bool    `yaml:"require_word_boundary"`
	MinAIConfidence     float64 `yaml:"min_ai_confidence"`
	LookupTimeout       string  `yaml:"lookup_timeout"`
}

// WatchlistConfig points at a local indicator list file.
type WatchlistConfig struct {
	Path string `yaml:"path"`
}

// StoreConfig locates the scan history database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns the baseline configuration before file and
// environment overrides.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Scanner: ScannerConfig{
			CaseSensitive:       false,
			RequireWordBoundary: true,
			MinAIConfidence:     0.5,
			LookupTimeout:       "20s",
		},
		Discovery: discovery.GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Browser: browser.DefaultConfig(),
		Store: StoreConfig{
			Path: filepath.Join(home, ".ioclens", "history.db"),
		},
		Logging: logging.Config{
			Level: "info",
		},
	}
}

// Load reads the config file at path (optional) over the defaults, applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("IOCLENS_GEMINI_API_KEY"); key != "" {
		cfg.Discovery.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Discovery.APIKey == "" {
		cfg.Discovery.APIKey = key
	}
	if key := os.Getenv("IOCLENS_SOURCE_API_KEY"); key != "" {
		for i := range cfg.Sources {
			if cfg.Sources[i].APIKey == "" {
				cfg.Sources[i].APIKey = key
			}
		}
	}
	if lvl := os.Getenv("IOCLENS_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
}

// Validate checks structural requirements that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("source with empty id")
		}
		if seen[src.ID] {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
		if src.BaseURL == "" {
			return fmt.Errorf("source %q missing base_url", src.ID)
		}
	}
	if c.Scanner.LookupTimeout != "" {
		if _, err := time.ParseDuration(c.Scanner.LookupTimeout); err != nil {
			return fmt.Errorf("invalid lookup_timeout: %w", err)
		}
	}
	if c.Scanner.MinAIConfidence < 0 || c.Scanner.MinAIConfidence > 1 {
		return fmt.Errorf("min_ai_confidence must be in [0, 1]")
	}
	return nil
}

// LookupTimeout parses the configured lookup timeout, falling back to 20s.
func (c *Config) LookupTimeout() time.Duration {
	d, err := time.ParseDuration(c.Scanner.LookupTimeout)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}
