package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for spilld.
// Zero values mean "unspecified" and will be replaced by defaults.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`

	// Spill enables the global spill manager.
	Spill *bool `json:"spill" yaml:"spill" toml:"spill"`
	// SpillOnDemand defaults to on when spilling is enabled.
	SpillOnDemand *bool `json:"spill_on_demand" yaml:"spill_on_demand" toml:"spill_on_demand"`
	// SpillDeviceLimit in bytes; unset means unbounded.
	SpillDeviceLimit *int64 `json:"spill_device_limit" yaml:"spill_device_limit" toml:"spill_device_limit"`
	// DeviceCapacity bounds the simulated device in bytes (0 = unlimited).
	DeviceCapacity int64 `json:"device_capacity" yaml:"device_capacity" toml:"device_capacity"`
	// MaxAllocation caps one API allocation in bytes (0 = 1 GiB).
	MaxAllocation int64 `json:"max_allocation" yaml:"max_allocation" toml:"max_allocation"`

	LogLevel    string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogJSON     bool     `json:"log_json" yaml:"log_json" toml:"log_json"`
	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	// RateLimit caps mutating API requests per second (0 = unlimited).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst" toml:"rate_burst"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := expandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// expandHome resolves a leading "~" or "~/" against the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}

// Validate rejects values no component can honour.
func (c Config) Validate() error {
	if c.SpillDeviceLimit != nil && *c.SpillDeviceLimit < 0 {
		return fmt.Errorf("spill_device_limit must be non-negative, got %d", *c.SpillDeviceLimit)
	}
	if c.DeviceCapacity < 0 {
		return fmt.Errorf("device_capacity must be non-negative, got %d", c.DeviceCapacity)
	}
	if c.MaxAllocation < 0 {
		return fmt.Errorf("max_allocation must be non-negative, got %d", c.MaxAllocation)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate_limit and rate_burst must be non-negative")
	}
	return nil
}
