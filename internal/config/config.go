// Package config loads retouch settings from YAML, .env files and the
// environment, and parses edit recipes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shamspias/retouch"
)

// Environment variables read by Load.
const (
	EnvPremium     = "RETOUCH_PREMIUM"
	EnvQuality     = "RETOUCH_QUALITY"
	EnvWorkers     = "RETOUCH_WORKERS"
	EnvHistory     = "RETOUCH_HISTORY"
	EnvLogLevel    = "RETOUCH_LOG_LEVEL"
	EnvLogFile     = "RETOUCH_LOG_FILE"
	EnvEnhanceUnit = "RETOUCH_ENHANCE_UNIT"
)

// Config holds CLI settings.
type Config struct {
	// Premium unlocks upscale, brush and text.
	Premium bool `yaml:"premium"`
	// Quality is the default batch quality factor in (0, 1].
	Quality float64 `yaml:"quality"`
	// Workers bounds concurrent batch compressions. 0 = one per CPU.
	Workers int `yaml:"workers"`
	// History is the parquet file downloads are recorded in. Empty disables
	// recording.
	History string `yaml:"history"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	LogJSON  bool   `yaml:"log_json"`

	// EnhanceUnit is one simulated enhancement time unit.
	EnhanceUnit time.Duration `yaml:"enhance_unit"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Quality:     retouch.DefaultQuality,
		LogLevel:    "INFO",
		EnhanceUnit: time.Second,
	}
}

// Load reads the YAML file at path (if non-empty), then the given .env files
// (".env" when none are named; missing files are skipped), then RETOUCH_*
// environment variables. Later sources win.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv.Load never overrides variables already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config: env file %q: %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPremium); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvPremium, err)
		}
		c.Premium = b
	}
	if v, ok := lookup(EnvQuality); ok {
		q, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvQuality, err)
		}
		c.Quality = q
	}
	if v, ok := lookup(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v, ok := lookup(EnvHistory); ok {
		c.History = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.LogFile = v
	}
	if v, ok := lookup(EnvEnhanceUnit); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvEnhanceUnit, err)
		}
		c.EnhanceUnit = d
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if !retouch.ValidQuality(c.Quality) {
		return fmt.Errorf("config: quality %v: %w", c.Quality, retouch.ErrInvalidQuality)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if c.EnhanceUnit < 0 {
		return fmt.Errorf("config: enhance_unit must not be negative, got %v", c.EnhanceUnit)
	}
	return nil
}

// Enhancer returns an enhancer using the configured time unit.
func (c Config) Enhancer() *retouch.Enhancer {
	return &retouch.Enhancer{Unit: c.EnhanceUnit, Waiter: retouch.Sleep}
}
