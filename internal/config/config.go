package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains the result-cache connection settings.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains API authentication settings. The submission API uses a
// static key carried in the X-API-Key header.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key" validate:"required,min=16"`
}

// LLMConfig contains all settings for the external analysis service.
type LLMConfig struct {
	GeminiAPIKey   string        `mapstructure:"gemini_api_key" validate:"required"`
	ModelName      string        `mapstructure:"model_name" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`
}

// PipelineConfig contains the tunables of the asynchronous job pipeline:
// worker pool sizing, retry policy, rate limiting, caching and leases.
type PipelineConfig struct {
	// WorkerCount determines how many concurrent workers process jobs.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// PollInterval bounds how long an idle worker waits before asking the
	// queue for work again.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`

	// MaxAttempts bounds processing attempts before a transiently-failing
	// job is dead-lettered.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`

	// BackoffBase is the first retry delay; doubled per attempt.
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"required"`

	// BackoffCap caps the computed retry delay.
	BackoffCap time.Duration `mapstructure:"backoff_cap" validate:"required"`

	// LimiterCapacity is the token bucket burst size for external calls.
	LimiterCapacity int `mapstructure:"limiter_capacity" validate:"required,gt=0"`

	// LimiterRefillPerSec is the sustained external-call rate.
	LimiterRefillPerSec float64 `mapstructure:"limiter_refill_per_sec" validate:"required,gt=0"`

	// CacheTTL is how long a successful result short-circuits reprocessing.
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"required"`

	// LeaseDuration is how long a worker owns a processing job before the
	// reclaim sweep may return it to the queue.
	LeaseDuration time.Duration `mapstructure:"lease_duration" validate:"required"`

	// ReclaimInterval is how often the reclaim sweep runs.
	ReclaimInterval time.Duration `mapstructure:"reclaim_interval" validate:"required"`
}

// StorageConfig contains blob storage settings for submitted images.
type StorageConfig struct {
	// Root is the directory the filesystem object store writes under.
	Root string `mapstructure:"root" validate:"required"`
}
