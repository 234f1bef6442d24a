// Package config loads and validates rollup configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for rollup.
type Config struct {
	// Bundle settings
	Bundle BundleConfig `koanf:"bundle"`

	// Tree-shaking report settings
	Report ReportConfig `koanf:"report"`

	// Cache settings
	Cache CacheConfig `koanf:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output"`
}

// BundleConfig controls bundle generation.
type BundleConfig struct {
	Entry  string `koanf:"entry"`
	Output string `koanf:"output"`
	Format string `koanf:"format"` // es, cjs
}

// ReportConfig controls the tree-shaking report.
type ReportConfig struct {
	Enabled bool   `koanf:"enabled"`
	Format  string `koanf:"format"` // text, json, markdown, toon
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	TTL     int    `koanf:"ttl"` // TTL in hours
}

// OutputConfig controls terminal output.
type OutputConfig struct {
	Color   bool `koanf:"color"`
	Verbose bool `koanf:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bundle: BundleConfig{
			Format: "es",
		},
		Report: ReportConfig{
			Enabled: false,
			Format:  "text",
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".rollup/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// searchNames are the config file names probed by LoadOrDefault and
// LoadConfig, in priority order.
var searchNames = []string{
	"rollup.toml",
	"rollup.yaml",
	"rollup.yml",
	"rollup.json",
	".rollup.toml",
	".rollup.yaml",
	".rollup.yml",
	".rollup.json",
}

// LoadOrDefault tries to load config from standard locations or returns
// defaults. Search order is the working directory then .rollup/.
func LoadOrDefault() *Config {
	for _, dir := range []string{".", ".rollup"} {
		for _, name := range searchNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := Load(path)
				if err == nil {
					return cfg
				}
			}
		}
	}

	return DefaultConfig()
}

// LoadResult pairs a loaded config with the file it came from. Source is
// empty when no config file was found and defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

// LoadOption customizes config loading.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
}

// WithPath loads configuration from an explicit file instead of searching
// the standard locations.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadConfig loads configuration with the given options, reporting which
// file was used.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	for _, dir := range []string{".", ".rollup"} {
		for _, name := range searchNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			return &LoadResult{Config: cfg, Source: path}, nil
		}
	}

	return &LoadResult{Config: DefaultConfig()}, nil
}

// Validate checks the loaded configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Bundle.Format {
	case "es", "cjs":
	default:
		return fmt.Errorf("invalid bundle format %q (expected es or cjs)", c.Bundle.Format)
	}

	switch c.Report.Format {
	case "text", "json", "markdown", "toon":
	default:
		return fmt.Errorf("invalid report format %q (expected text, json, markdown, or toon)", c.Report.Format)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("invalid cache ttl %d (must be >= 0)", c.Cache.TTL)
	}

	return nil
}
