// Package config loads server configuration.
//
// Order: defaults -> YAML file -> environment overrides -> Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stevemurr/simple-todo-server/logging"
	"github.com/stevemurr/simple-todo-server/repository"
	"github.com/stevemurr/simple-todo-server/store"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      store.Config     `yaml:"store"`
	Logging    logging.Config   `yaml:"logging"`
	Pagination PaginationConfig `yaml:"pagination"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PaginationConfig bounds page sizes on the list endpoint.
type PaginationConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"` // 0 disables the cap
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store:   store.DefaultConfig(),
		Logging: logging.DefaultConfig(),
		Pagination: PaginationConfig{
			DefaultLimit: repository.DefaultLimit,
			MaxLimit:     100,
		},
	}
}

// Load reads path over the defaults, then applies environment overrides and
// validates the result. An empty path or a missing file leaves the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Store.Mongo.URI = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("DEFAULT_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DEFAULT_LIMIT: %w", err)
		}
		c.Pagination.DefaultLimit = limit
	}
	return nil
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	if !slices.Contains(store.Backends, c.Store.Backend) {
		return fmt.Errorf("unknown store backend %q (must be one of %s)", c.Store.Backend, strings.Join(store.Backends, ", "))
	}
	if c.Store.Backend != "memory" && c.Store.Backend != "mongo" && c.Store.DataDir == "" {
		return errors.New("store.data_dir cannot be empty")
	}
	if c.Store.Backend == "mongo" && c.Store.Mongo.URI == "" {
		return errors.New("store.mongo.uri cannot be empty")
	}
	if c.Pagination.DefaultLimit <= 0 {
		return fmt.Errorf("pagination.default_limit must be positive: %d", c.Pagination.DefaultLimit)
	}
	if c.Pagination.MaxLimit < 0 {
		return fmt.Errorf("pagination.max_limit must not be negative: %d", c.Pagination.MaxLimit)
	}
	if c.Pagination.MaxLimit > 0 && c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		return fmt.Errorf("pagination.default_limit %d exceeds max_limit %d", c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}
	return c.Logging.Validate()
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
