package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`
	MaxRetries   int    `mapstructure:"max_retries"    validate:"gte=0,lte=10"`
}

// WorkerConfig contains the job worker loop settings. IdleBackoff is the
// delay after an empty poll, ErrorBackoff the longer delay after an
// unexpected poll error. JobTimeout bounds how long a job may sit in
// processing before the stale sweep releases it back to pending.
type WorkerConfig struct {
	Count              int           `mapstructure:"count"                validate:"required,gte=1,lte=64"`
	IdleBackoff        time.Duration `mapstructure:"idle_backoff"         validate:"required,gt=0"`
	ErrorBackoff       time.Duration `mapstructure:"error_backoff"        validate:"required,gtefield=IdleBackoff"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"          validate:"required,gt=0"`
	StaleCheckInterval time.Duration `mapstructure:"stale_check_interval" validate:"required,gt=0"`
}
