package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Fetch     FetchConfig
	Refine    RefineConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Pipeline  PipelineConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// FetchConfig controls the image fetcher used for perceptual features
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	PerHostRPS   float64       `mapstructure:"per_host_rps"`
	Burst        int           `mapstructure:"burst"`
	Concurrency  int           `mapstructure:"concurrency"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// RefineConfig holds the external refinement collaborator configuration
type RefineConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	InlineBudget int           `mapstructure:"inline_budget"`
}

// CacheConfig holds cache-related configuration for per-URL image features
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute per client IP
	Burst int `mapstructure:"burst"`
}

// PipelineConfig holds the bucketing thresholds. The exact boundary values
// were tuned empirically; only the ordering (confident tighter than
// semi-confident) is load-bearing.
type PipelineConfig struct {
	ConfidentMaxDistance  int     `mapstructure:"confident_max_distance"`
	ConfidentMinComposite float64 `mapstructure:"confident_min_composite"`
	SemiMaxDistance       int     `mapstructure:"semi_max_distance"`
	SemiMinComposite      float64 `mapstructure:"semi_min_composite"`
	MaxImages             int     `mapstructure:"max_images"`
	EnableDebugLogging    bool    `mapstructure:"enable_debug_logging"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/stylelens/")

	// Environment variable settings
	v.SetEnvPrefix("STYLELENS")
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})

	// Fetch defaults
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.max_body_bytes", 10<<20) // 10 MiB
	v.SetDefault("fetch.per_host_rps", 4.0)
	v.SetDefault("fetch.burst", 8)
	v.SetDefault("fetch.concurrency", 12)
	v.SetDefault("fetch.user_agent", "StyleLens/1.0")

	// Refinement defaults (disabled until a base URL is configured)
	v.SetDefault("refine.enabled", false)
	v.SetDefault("refine.timeout", "20s")
	v.SetDefault("refine.inline_budget", 6)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "24h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)
	v.SetDefault("ratelimit.burst", 10)

	// Pipeline defaults
	v.SetDefault("pipeline.confident_max_distance", 8)
	v.SetDefault("pipeline.confident_min_composite", 0.7)
	v.SetDefault("pipeline.semi_max_distance", 16)
	v.SetDefault("pipeline.semi_min_composite", 0.5)
	v.SetDefault("pipeline.max_images", 12)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Refine.Enabled && config.Refine.BaseURL == "" {
		return fmt.Errorf("refine base URL is required when refinement is enabled (set STYLELENS_REFINE_BASE_URL)")
	}

	if config.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch concurrency must be positive, got: %d", config.Fetch.Concurrency)
	}

	p := config.Pipeline
	if p.ConfidentMaxDistance > p.SemiMaxDistance {
		return fmt.Errorf("confident distance threshold (%d) must not exceed semi-confident threshold (%d)",
			p.ConfidentMaxDistance, p.SemiMaxDistance)
	}
	if p.ConfidentMinComposite < p.SemiMinComposite {
		return fmt.Errorf("confident composite threshold (%.2f) must not be below semi-confident threshold (%.2f)",
			p.ConfidentMinComposite, p.SemiMinComposite)
	}

	return nil
}
