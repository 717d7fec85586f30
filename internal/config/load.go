package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: ./config.yaml or the path in RECEIPT_CONFIG_FILE.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine; environment variables cover everything.
	}

	// Environment variables with RECEIPT_ prefix, e.g. RECEIPT_DATABASE_URL,
	// RECEIPT_PIPELINE_WORKER_COUNT.
	v.SetEnvPrefix("RECEIPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys to Unmarshal; a key
	// must be known to viper for the env lookup to happen. Bind every key
	// the Config struct declares so secrets without defaults (database URL,
	// API keys) are read from the environment too.
	for _, key := range configKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// configKeys lists every key the Config struct maps. Kept in sync with
// config.go so env-only keys get bound alongside the defaulted ones.
func configKeys() []string {
	return []string{
		"server.port",
		"server.log_level",
		"database.url",
		"redis.url",
		"auth.api_key",
		"llm.gemini_api_key",
		"llm.model_name",
		"llm.request_timeout",
		"pipeline.worker_count",
		"pipeline.poll_interval",
		"pipeline.max_attempts",
		"pipeline.backoff_base",
		"pipeline.backoff_cap",
		"pipeline.limiter_capacity",
		"pipeline.limiter_refill_per_sec",
		"pipeline.cache_ttl",
		"pipeline.lease_duration",
		"pipeline.reclaim_interval",
		"storage.root",
	}
}

// setDefaults registers defaults for everything that has a sensible one.
// Secrets (database URL, API keys) deliberately have no default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("llm.model_name", "gemini-1.5-flash-latest")
	v.SetDefault("llm.request_timeout", 60*time.Second)

	v.SetDefault("pipeline.worker_count", 4)
	v.SetDefault("pipeline.poll_interval", time.Second)
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.backoff_base", 2*time.Second)
	v.SetDefault("pipeline.backoff_cap", 5*time.Minute)
	v.SetDefault("pipeline.limiter_capacity", 5)
	v.SetDefault("pipeline.limiter_refill_per_sec", 1.0)
	v.SetDefault("pipeline.cache_ttl", 24*time.Hour)
	v.SetDefault("pipeline.lease_duration", 2*time.Minute)
	v.SetDefault("pipeline.reclaim_interval", 30*time.Second)

	v.SetDefault("storage.root", "./data/blobs")
}
