package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration, loaded once at startup and
// passed into the components that need it.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Scratch struct {
		Dir string `yaml:"dir"`
	} `yaml:"scratch"`

	Converter struct {
		Binary      string `yaml:"binary"`
		TimeoutSecs int    `yaml:"timeout_secs"`
	} `yaml:"converter"`

	Cache struct {
		Enabled   bool          `yaml:"enabled"`
		RedisHost string        `yaml:"redis_host"`
		RedisDB   int           `yaml:"redis_db"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Limits struct {
		MaxBodyBytes  int `yaml:"max_body_bytes"`
		MaxConcurrent int `yaml:"max_concurrent"`
	} `yaml:"limits"`

	Metrics struct {
		Enabled   bool   `yaml:"enabled"`
		Namespace string `yaml:"namespace"`
	} `yaml:"metrics"`
}

// Defaults returns a Config populated with the reference defaults. It is the
// starting point for Load and useful directly in tests.
func Defaults() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":5001"
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14
	cfg.Scratch.Dir = os.TempDir()
	cfg.Converter.Binary = "pandoc"
	cfg.Converter.TimeoutSecs = 30
	cfg.Cache.TTL = 24 * time.Hour
	cfg.Limits.MaxBodyBytes = 4 * 1024 * 1024
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = "md2docx"
	return cfg
}

// Load reads the configuration file named by CONFIG_PATH, falling back to
// ./config.yaml. A missing file yields the defaults; an unreadable or invalid
// file panics, as a service with a broken config must not start.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults()
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the configuration at path. It panics on
// unreadable files, malformed YAML, and invalid values.
func LoadFrom(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: cannot read %s: %v", path, err))
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("config: cannot parse %s: %v", path, err))
	}
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("config: %s: %v", path, err))
	}
	return cfg
}

func (c Config) validate() error {
	if c.Converter.Binary == "" {
		return fmt.Errorf("converter.binary is empty")
	}
	if c.Converter.TimeoutSecs <= 0 {
		return fmt.Errorf("converter.timeout_secs must be positive, got %d", c.Converter.TimeoutSecs)
	}
	if c.Scratch.Dir == "" {
		return fmt.Errorf("scratch.dir is empty")
	}
	if c.Limits.MaxBodyBytes <= 0 {
		return fmt.Errorf("limits.max_body_bytes must be positive, got %d", c.Limits.MaxBodyBytes)
	}
	if c.Limits.MaxConcurrent < 0 {
		return fmt.Errorf("limits.max_concurrent must not be negative, got %d", c.Limits.MaxConcurrent)
	}
	if c.Cache.Enabled {
		if c.Cache.RedisHost == "" {
			return fmt.Errorf("cache.redis_host is empty")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
		}
	}
	return nil
}
