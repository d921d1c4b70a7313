// Package config loads the smartcut configuration file.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

type Config struct {
	LogLevel string `yaml:"log_level"`
	NoColor  bool   `yaml:"no_color"`
	Progress bool   `yaml:"progress"`

	// KeyframeScanLimit bounds the packets one keyframe search reads, 0 for no bound.
	KeyframeScanLimit int `yaml:"keyframe_scan_limit"`
	// CopyUnmappedVideo maps audio/video streams no codec is available for as copy only
	// streams. When false they are dropped.
	CopyUnmappedVideo bool `yaml:"copy_unmapped_video"`
}

func Default() *Config {
	return &Config{
		LogLevel:          "info",
		Progress:          true,
		CopyUnmappedVideo: true,
	}
}

// Load reads the configuration at path over the defaults. An empty path searches the usual
// locations; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if cfg.KeyframeScanLimit < 0 {
		return nil, fmt.Errorf("config: %s: keyframe_scan_limit must not be negative", path)
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func findConfigFile() string {
	candidates := []string{
		"./smartcut.yaml",
		"./smartcut.yml",
		filepath.Join(os.Getenv("HOME"), ".smartcut", "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext returns the config stored in ctx, or the defaults.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
