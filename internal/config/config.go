// Package config loads the analyzer's runtime configuration: six env vars
// (spec.md §6) with optional project/global KDL file overrides, layered the
// way the teacher layered .lci.kdl — project overrides global, env vars
// override both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

type Config struct {
	LogLevel            LogLevel
	CacheSize           int
	CacheTTLSeconds     int
	SemanticEnabled     bool
	SemanticHelperPath  string
	SemanticTimeoutMs   int
}

func Default() *Config {
	return &Config{
		LogLevel:           LogInfo,
		CacheSize:          20,
		CacheTTLSeconds:    300,
		SemanticEnabled:    true,
		SemanticHelperPath: "",
		SemanticTimeoutMs:  2000,
	}
}

// Load builds the effective configuration: defaults, then global
// ~/.goanalyzer.kdl, then project-local <root>/.goanalyzer.kdl, then env
// var overrides (env vars always win).
func Load(root string) (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		if kdlCfg, err := loadKDL(home); err != nil {
			return nil, fmt.Errorf("global config: %w", err)
		} else if kdlCfg != nil {
			merge(cfg, kdlCfg)
		}
	}

	if root != "" {
		if kdlCfg, err := loadKDL(root); err != nil {
			return nil, fmt.Errorf("project config: %w", err)
		} else if kdlCfg != nil {
			merge(cfg, kdlCfg)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge applies non-zero-value fields from override onto base, matching the
// teacher's mergeConfigs precedence (later layer wins per-field, not
// wholesale).
func merge(base, override *Config) {
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	if override.CacheSize != 0 {
		base.CacheSize = override.CacheSize
	}
	if override.CacheTTLSeconds != 0 {
		base.CacheTTLSeconds = override.CacheTTLSeconds
	}
	base.SemanticEnabled = override.SemanticEnabled
	if override.SemanticHelperPath != "" {
		base.SemanticHelperPath = override.SemanticHelperPath
	}
	if override.SemanticTimeoutMs != 0 {
		base.SemanticTimeoutMs = override.SemanticTimeoutMs
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GO_ANALYZER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = LogLevel(strings.ToLower(v))
	}
	if v := os.Getenv("GO_ANALYZER_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheSize = n
		}
	}
	if v := os.Getenv("GO_ANALYZER_CACHE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheTTLSeconds = n
		}
	}
	if v := os.Getenv("GO_ANALYZER_SEMANTIC"); v != "" {
		cfg.SemanticEnabled = v == "1"
	}
	if v := os.Getenv("GO_ANALYZER_SEMANTIC_PATH"); v != "" {
		cfg.SemanticHelperPath = v
	}
	if v := os.Getenv("GO_ANALYZER_SEMANTIC_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SemanticTimeoutMs = n
		}
	}
}

// Validate enforces the bounds spec.md §6 names for each env var.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogDebug, LogInfo, LogWarn, LogError:
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache size must be >= 1, got %d", c.CacheSize)
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("cache ttl must be >= 0, got %d", c.CacheTTLSeconds)
	}
	if c.SemanticHelperPath != "" && !strings.HasPrefix(c.SemanticHelperPath, "/") {
		return fmt.Errorf("semantic helper path must be absolute, got %q", c.SemanticHelperPath)
	}
	if c.SemanticTimeoutMs < 1 {
		return fmt.Errorf("semantic timeout must be >= 1, got %d", c.SemanticTimeoutMs)
	}
	return nil
}
