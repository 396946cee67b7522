// Package config handles environment-based configuration loading with an
// optional YAML file overlay. Every setting has a default; no variable is
// required.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all settings of the log viewer core.
type Config struct {
	// Directories
	DataDir  string `yaml:"data_dir"`
	LogDBDir string `yaml:"logdb_dir"`

	// Import
	ImportConcurrency int           `yaml:"import_concurrency"`
	ImportTimeout     time.Duration `yaml:"import_timeout"`

	// Index
	IndexRescanSchedule string `yaml:"index_rescan_schedule"`
	DetailCacheEntries  int    `yaml:"detail_cache_entries"`
}

// defaultDataDir resolves the per-user application data directory.
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "esolog")
	}
	return "esolog-data"
}

// Load reads the optional config.yaml in the data dir, then applies
// environment overrides, then validates. Validation problems are collected
// into a single error.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:             defaultDataDir(),
		ImportConcurrency:   2,
		ImportTimeout:       30 * time.Minute,
		IndexRescanSchedule: "",
		DetailCacheEntries:  64,
	}

	// Environment can relocate the data dir before the file overlay loads.
	if v := os.Getenv("ESOLOG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if err := cfg.applyFile(filepath.Join(cfg.DataDir, "config.yaml")); err != nil {
		return nil, err
	}

	var errs []string
	cfg.applyEnv(&errs)

	if cfg.LogDBDir == "" {
		cfg.LogDBDir = filepath.Join(cfg.DataDir, "logdbs")
	}

	if cfg.ImportConcurrency <= 0 {
		errs = append(errs, "ESOLOG_IMPORT_CONCURRENCY: must be positive")
	}
	if cfg.ImportTimeout <= 0 {
		errs = append(errs, "ESOLOG_IMPORT_TIMEOUT: must be positive")
	}
	if cfg.DetailCacheEntries <= 0 {
		errs = append(errs, "ESOLOG_DETAIL_CACHE_ENTRIES: must be positive")
	}
	if cfg.IndexRescanSchedule != "" {
		if _, err := cron.ParseStandard(cfg.IndexRescanSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("ESOLOG_INDEX_RESCAN_SCHEDULE: invalid cron expression %q: %v", cfg.IndexRescanSchedule, err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(errs *[]string) {
	c.DataDir = envStr("ESOLOG_DATA_DIR", c.DataDir)
	c.LogDBDir = envStr("ESOLOG_LOGDB_DIR", c.LogDBDir)
	c.ImportConcurrency = envInt("ESOLOG_IMPORT_CONCURRENCY", c.ImportConcurrency, errs)
	c.ImportTimeout = envDuration("ESOLOG_IMPORT_TIMEOUT", c.ImportTimeout, errs)
	c.IndexRescanSchedule = envStr("ESOLOG_INDEX_RESCAN_SCHEDULE", c.IndexRescanSchedule)
	c.DetailCacheEntries = envInt("ESOLOG_DETAIL_CACHE_ENTRIES", c.DetailCacheEntries, errs)
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}
