package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = ".lexatlas/config.yaml"

// Config holds all lexatlas configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Corpus input
	Corpus CorpusConfig `yaml:"corpus"`

	// Analysis parameters
	Analysis AnalysisConfig `yaml:"analysis"`

	// Report output
	Report ReportConfig `yaml:"report"`

	// Run persistence
	Store StoreConfig `yaml:"store"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// CorpusConfig configures corpus ingestion.
type CorpusConfig struct {
	Path string `yaml:"path"`

	// Per-category sample cap; the first N companies in input order
	// are kept.
	MaxPerCategory int `yaml:"max_per_category"`
}

// AnalysisConfig configures scoring and ranking.
type AnalysisConfig struct {
	// Ranked terms kept per industry.
	TopKeywords int `yaml:"top_keywords"`

	// Parallel category workers; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// ReportConfig configures the markdown output.
type ReportConfig struct {
	Path string `yaml:"path"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "lexatlas",
		Version: "0.1.0",

		Corpus: CorpusConfig{
			Path:           "companies.jsonl",
			MaxPerCategory: 1000,
		},

		Analysis: AnalysisConfig{
			TopKeywords: 20,
			Workers:     0,
		},

		Report: ReportConfig{
			Path: "industry_vocabulary.md",
		},

		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: "data/lexatlas.db",
		},

		Watch: WatchConfig{
			Debounce: "500ms",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an
// error: defaults apply, then environment overrides. A .env file in the
// working directory is honored first so local development can keep
// overrides out of the shell profile.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Invalid
// numeric values are ignored rather than failing the load.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("LEXATLAS_CORPUS"); path != "" {
		c.Corpus.Path = path
	}
	if path := os.Getenv("LEXATLAS_REPORT"); path != "" {
		c.Report.Path = path
	}
	if path := os.Getenv("LEXATLAS_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if v := os.Getenv("LEXATLAS_MAX_PER_CATEGORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Corpus.MaxPerCategory = n
		}
	}
	if v := os.Getenv("LEXATLAS_TOP_KEYWORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Analysis.TopKeywords = n
		}
	}
	if v := os.Getenv("LEXATLAS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Analysis.Workers = n
		}
	}
	if level := os.Getenv("LEXATLAS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetWatchDebounce returns the watch debounce window as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Corpus.MaxPerCategory <= 0 {
		return fmt.Errorf("corpus.max_per_category must be positive, got %d", c.Corpus.MaxPerCategory)
	}
	if c.Analysis.TopKeywords <= 0 {
		return fmt.Errorf("analysis.top_keywords must be positive, got %d", c.Analysis.TopKeywords)
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative, got %d", c.Analysis.Workers)
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	return nil
}
