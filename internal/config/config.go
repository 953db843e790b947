package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the route planner service
type Config struct {
	Server struct {
		Port                string   `yaml:"port" validate:"required,numeric"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds" validate:"gt=0"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds" validate:"gt=0"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds" validate:"gt=0"`
		AllowedOrigins      []string `yaml:"allowed_origins"`
		StaticDir           string   `yaml:"static_dir"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Store struct {
		// Driver selects the stop store: sqlite (default) or postgres
		Driver      string `yaml:"driver" validate:"oneof=sqlite postgres"`
		SQLitePath  string `yaml:"sqlite_path" validate:"required_if=Driver sqlite"`
		DatabaseURL string `yaml:"database_url" validate:"required_if=Driver postgres"`
		// LoadConcurrency bounds parallel per-train stop queries
		LoadConcurrency int `yaml:"load_concurrency" validate:"gt=0"`
	} `yaml:"store"`
	Routing struct {
		// GraphCacheTTLSeconds is how long a built graph is reused; 0 rebuilds per query
		GraphCacheTTLSeconds int `yaml:"graph_cache_ttl_seconds" validate:"gte=0"`
		SearchTimeoutMs      int `yaml:"search_timeout_ms" validate:"gt=0"`
		ResultCacheSize      int `yaml:"result_cache_size" validate:"gte=0"`
		ResultCacheTTLSecs   int `yaml:"result_cache_ttl_seconds" validate:"gte=0"`
		// RefreshIntervalSeconds rebuilds the graph in the background; 0 disables
		RefreshIntervalSeconds int `yaml:"refresh_interval_seconds" validate:"gte=0"`
	} `yaml:"routing"`
}

// GraphCacheTTL returns the graph reuse window
func (c *Config) GraphCacheTTL() time.Duration {
	return time.Duration(c.Routing.GraphCacheTTLSeconds) * time.Second
}

// SearchTimeout returns the per-query search deadline
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Routing.SearchTimeoutMs) * time.Millisecond
}

// ResultCacheTTL returns how long a computed route is served from cache
func (c *Config) ResultCacheTTL() time.Duration {
	return time.Duration(c.Routing.ResultCacheTTLSecs) * time.Second
}

// RefreshInterval returns the background graph rebuild period
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Routing.RefreshIntervalSeconds) * time.Second
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func defaultConfig() Config {
	var c Config
	c.Server.Port = "8000"
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AllowedOrigins = []string{"http://localhost:5173"}
	c.Logging.Level = "info"
	c.Store.Driver = "sqlite"
	c.Store.SQLitePath = "../../data/transit.db"
	c.Store.LoadConcurrency = 8
	c.Routing.GraphCacheTTLSeconds = 60
	c.Routing.SearchTimeoutMs = 2000
	c.Routing.ResultCacheSize = 1024
	c.Routing.ResultCacheTTLSecs = 60
	return c
}

// Load reads configuration from the YAML file named by ROUTEPLANNER_CONFIG (if any),
// applies environment overrides and validates the result
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("ROUTEPLANNER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.StaticDir = getEnv("STATIC_DIR", cfg.Server.StaticDir)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitCSV(v)
	}
	cfg.Logging.Level = strings.ToLower(getEnv("LOG_LEVEL", cfg.Logging.Level))
	cfg.Logging.Pretty = getEnvBool("LOG_PRETTY", cfg.Logging.Pretty)
	cfg.Store.SQLitePath = getEnv("SQLITE_DATABASE", cfg.Store.SQLitePath)
	cfg.Store.DatabaseURL = getEnv("DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Routing.GraphCacheTTLSeconds = getEnvInt("GRAPH_CACHE_TTL_SECONDS", cfg.Routing.GraphCacheTTLSeconds)
	cfg.Routing.SearchTimeoutMs = getEnvInt("SEARCH_TIMEOUT_MS", cfg.Routing.SearchTimeoutMs)
	cfg.Routing.RefreshIntervalSeconds = getEnvInt("GRAPH_REFRESH_INTERVAL_SECONDS", cfg.Routing.RefreshIntervalSeconds)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
