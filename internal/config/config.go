// Package config provides YAML-based configuration for the taxonomix server
// and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration document.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Jobs       JobsConfig       `yaml:"jobs"`
	GBIF       GBIFConfig       `yaml:"gbif"`
	Processing ProcessingConfig `yaml:"processing"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port                int      `yaml:"port"`
	BindAddress         string   `yaml:"bind_address"`
	AllowOrigins        []string `yaml:"allow_origins"`
	BodyLimit           string   `yaml:"body_limit"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	ShutdownSeconds     int      `yaml:"shutdown_seconds"`
	RequestLogging      bool     `yaml:"request_logging"`
}

// StorageConfig contains file locations.
type StorageConfig struct {
	DataDirectory    string `yaml:"data_directory"`
	UploadsDirectory string `yaml:"uploads_directory"`
	OutputDirectory  string `yaml:"output_directory"`
}

// CacheConfig selects the name cache backend: memory, duckdb or sqlite.
type CacheConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// JobsConfig selects the job store. An empty NATSURL with Embedded set starts
// an in-process NATS server; with neither, jobs are kept in memory.
type JobsConfig struct {
	NATSURL    string `yaml:"nats_url"`
	Embedded   bool   `yaml:"embedded"`
	StoreDir   string `yaml:"store_dir"`
	Bucket     string `yaml:"bucket"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// GBIFConfig configures the external name match service.
type GBIFConfig struct {
	BaseURL        string  `yaml:"base_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimit      float64 `yaml:"rate_limit"`
	Burst          int     `yaml:"burst"`
}

// ProcessingConfig tunes the pipeline.
type ProcessingConfig struct {
	ResolveWorkers int `yaml:"resolve_workers"`
	WarmWorkers    int `yaml:"warm_workers"`
	SampleBytes    int `yaml:"sample_bytes"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                8000,
			BindAddress:         "0.0.0.0",
			AllowOrigins:        []string{"http://localhost:3000"},
			BodyLimit:           "200M",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 0,
			ShutdownSeconds:     30,
			RequestLogging:      true,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			OutputDirectory:  "./data/output",
		},
		Cache: CacheConfig{
			Driver: "sqlite",
			Path:   "./data/cache/names.db",
		},
		Jobs: JobsConfig{
			Embedded:   true,
			StoreDir:   "./data/nats",
			Bucket:     "TAXONOMIX_JOBS",
			TTLMinutes: 24 * 60,
		},
		GBIF: GBIFConfig{
			BaseURL:        "https://api.gbif.org",
			TimeoutSeconds: 5,
			RateLimit:      10,
			Burst:          5,
		},
		Processing: ProcessingConfig{
			ResolveWorkers: 4,
			WarmWorkers:    2,
			SampleBytes:    4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is
// created with the defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration as YAML.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	header := []byte("# Taxonomix configuration\n# This file is auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Cache.Driver {
	case "memory", "duckdb", "sqlite":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.GBIF.BaseURL == "" {
		return fmt.Errorf("gbif.base_url is required")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.OutputDirectory = filepath.Join(dataDir, "output")
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		c.Jobs.NATSURL = url
	}
	if base := os.Getenv("GBIF_BASE_URL"); base != "" {
		c.GBIF.BaseURL = base
	}
	if driver := os.Getenv("CACHE_DRIVER"); driver != "" {
		c.Cache.Driver = strings.ToLower(driver)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location.
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.OutputDirectory,
		&c.Cache.Path,
		&c.Jobs.StoreDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetServerAddr returns the server bind address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GBIFTimeout returns the external call timeout.
func (c *AppConfig) GBIFTimeout() time.Duration {
	return time.Duration(c.GBIF.TimeoutSeconds) * time.Second
}

// JobTTL returns how long job progress is retained by the NATS store.
func (c *AppConfig) JobTTL() time.Duration {
	return time.Duration(c.Jobs.TTLMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.OutputDirectory,
	}
	if c.Cache.Driver != "memory" && c.Cache.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Cache.Path))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
