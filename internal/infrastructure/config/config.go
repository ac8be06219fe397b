// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	t2 := cfg.Matcher.UpperThreshold
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Default similarity thresholds for the fuzzy matcher. The lower threshold
// admits weak candidates into the review tier, the upper threshold is the
// acceptance cutoff for automatic confirmation.
const (
	DefaultLowerThreshold = 0.444
	DefaultUpperThreshold = 0.938
)

// Config represents the entire application configuration
type Config struct {
	Source        string              `yaml:"source"`
	Storage       StorageConfig       `yaml:"storage"`
	Matcher       MatcherConfig       `yaml:"matcher"`
	Carbon        CarbonConfig        `yaml:"carbon"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MatcherConfig holds company matching configuration
type MatcherConfig struct {
	// Mode selects the fuzzy matching engine: "internal" runs the
	// in-process algorithm, "external" spawns the configured command.
	Mode    string `yaml:"mode"`
	Command string `yaml:"command"`
	WorkDir string `yaml:"work_dir"`

	LowerThreshold float64 `yaml:"lower_threshold"`
	UpperThreshold float64 `yaml:"upper_threshold"`

	Seeds SeedsConfig `yaml:"seeds"`
}

// SeedsConfig holds paths to the curated seed lists used to bootstrap the
// match cache on first run
type SeedsConfig struct {
	ManualMatches  string `yaml:"manual_matches"`
	FalsePositives string `yaml:"false_positives"`
}

// CarbonConfig holds carbon reference data configuration
type CarbonConfig struct {
	MappingsPath string `yaml:"mappings_path"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${CARBONSYNC_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Source: getEnv("CARBONSYNC_SOURCE", "plaid"),
		Storage: StorageConfig{
			DatabasePath: getEnv("CARBONSYNC_DB_PATH", "carbonsync.db"),
		},
		Matcher: MatcherConfig{
			Mode:           getEnv("MATCHER_MODE", "internal"),
			Command:        os.Getenv("MATCHER_COMMAND"),
			WorkDir:        getEnv("MATCHER_WORK_DIR", "matcher-work"),
			LowerThreshold: getEnvFloat("MATCHER_LOWER_THRESHOLD", DefaultLowerThreshold),
			UpperThreshold: getEnvFloat("MATCHER_UPPER_THRESHOLD", DefaultUpperThreshold),
			Seeds: SeedsConfig{
				ManualMatches:  os.Getenv("MATCHER_MANUAL_SEEDS"),
				FalsePositives: os.Getenv("MATCHER_FALSE_POSITIVE_SEEDS"),
			},
		},
		Carbon: CarbonConfig{
			MappingsPath: os.Getenv("CARBON_MAPPINGS_PATH"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	if cfg, err := Load("config.yaml"); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills in zero-valued fields that have sane defaults
func (c *Config) applyDefaults() {
	if c.Source == "" {
		c.Source = "plaid"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "carbonsync.db"
	}
	if c.Matcher.Mode == "" {
		c.Matcher.Mode = "internal"
	}
	if c.Matcher.WorkDir == "" {
		c.Matcher.WorkDir = "matcher-work"
	}
	if c.Matcher.LowerThreshold == 0 {
		c.Matcher.LowerThreshold = DefaultLowerThreshold
	}
	if c.Matcher.UpperThreshold == 0 {
		c.Matcher.UpperThreshold = DefaultUpperThreshold
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures
func (c *Config) Validate() error {
	if c.Matcher.LowerThreshold < 0 || c.Matcher.LowerThreshold > 1 {
		return fmt.Errorf("matcher.lower_threshold must be in [0,1], got %v", c.Matcher.LowerThreshold)
	}
	if c.Matcher.UpperThreshold < 0 || c.Matcher.UpperThreshold > 1 {
		return fmt.Errorf("matcher.upper_threshold must be in [0,1], got %v", c.Matcher.UpperThreshold)
	}
	if c.Matcher.LowerThreshold > c.Matcher.UpperThreshold {
		return fmt.Errorf("matcher.lower_threshold %v exceeds upper_threshold %v",
			c.Matcher.LowerThreshold, c.Matcher.UpperThreshold)
	}
	if c.Matcher.Mode == "external" && c.Matcher.Command == "" {
		return fmt.Errorf("matcher.command is required when matcher.mode is external")
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}
