package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		os.Unsetenv("STYLELENS_SERVER_PORT")
		os.Unsetenv("STYLELENS_SERVER_ENVIRONMENT")
		os.Unsetenv("STYLELENS_CACHE_TYPE")
		os.Unsetenv("STYLELENS_CACHE_REDIS_URL")
		os.Unsetenv("STYLELENS_CACHE_TTL")
		os.Unsetenv("STYLELENS_REFINE_ENABLED")
		os.Unsetenv("STYLELENS_REFINE_BASE_URL")
		os.Unsetenv("STYLELENS_FETCH_CONCURRENCY")
		os.Unsetenv("STYLELENS_RATELIMIT_PER_IP")
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		// Check defaults
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != 24*time.Hour {
			t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
		}
		if cfg.Fetch.Concurrency != 12 {
			t.Errorf("Fetch.Concurrency = %d, want 12", cfg.Fetch.Concurrency)
		}
		if cfg.Refine.Enabled {
			t.Error("Refine.Enabled = true, want false by default")
		}
		if cfg.Pipeline.ConfidentMaxDistance != 8 {
			t.Errorf("Pipeline.ConfidentMaxDistance = %d, want 8", cfg.Pipeline.ConfidentMaxDistance)
		}
		if cfg.Pipeline.SemiMaxDistance != 16 {
			t.Errorf("Pipeline.SemiMaxDistance = %d, want 16", cfg.Pipeline.SemiMaxDistance)
		}
	})

	t.Run("reads values from environment", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("STYLELENS_SERVER_PORT", "9090")
		os.Setenv("STYLELENS_SERVER_ENVIRONMENT", "production")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
	})

	t.Run("rejects unknown cache type", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("STYLELENS_CACHE_TYPE", "memcached")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for unknown cache type")
		}
	})

	t.Run("requires redis url for redis cache", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("STYLELENS_CACHE_TYPE", "redis")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing redis url")
		}
	})

	t.Run("requires base url when refinement enabled", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("STYLELENS_REFINE_ENABLED", "true")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing refine base url")
		}
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Cache: CacheConfig{Type: "memory"},
			Fetch: FetchConfig{Concurrency: 8},
			Pipeline: PipelineConfig{
				ConfidentMaxDistance:  8,
				ConfidentMinComposite: 0.7,
				SemiMaxDistance:       16,
				SemiMinComposite:      0.5,
			},
		}
	}

	t.Run("accepts valid config", func(t *testing.T) {
		if err := validate(base()); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	t.Run("rejects inverted distance thresholds", func(t *testing.T) {
		cfg := base()
		cfg.Pipeline.ConfidentMaxDistance = 20
		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for inverted distance thresholds")
		}
	})

	t.Run("rejects inverted composite thresholds", func(t *testing.T) {
		cfg := base()
		cfg.Pipeline.ConfidentMinComposite = 0.4
		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for inverted composite thresholds")
		}
	})

	t.Run("rejects non-positive fetch concurrency", func(t *testing.T) {
		cfg := base()
		cfg.Fetch.Concurrency = 0
		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for zero concurrency")
		}
	})
}
