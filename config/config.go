package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - redis.go: Redis and cache configuration
//   - engines.go: External engine configuration (STT, OpenAI, blob store)
//   - pipeline.go: Pipeline and runner configuration
//   - services.go: Service mode configuration
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, relaxed
	// engine requirements). Set DEV=true for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Redis connection and cache TTL configuration
	Redis RedisConfig `envPrefix:"REDIS_"`
	Cache CacheConfig

	// External engine configuration
	Transcription TranscriptionConfig `envPrefix:"TRANSCRIPTION_"`
	OpenAI        OpenAIConfig        `envPrefix:"OPENAI_"`
	Blob          BlobConfig          `envPrefix:"BLOB_"`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"pipeline-runner,completion-logger"`

	// Pipeline configuration
	Pipeline PipelineConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Cache.Sanitize()
	c.Transcription.Sanitize()
	c.OpenAI.Sanitize()
	c.Blob.Sanitize()
	c.Pipeline.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsPipelineRunnerEnabled returns true if the pipeline runner service is enabled.
func (c *AppConfig) IsPipelineRunnerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModePipelineRunner]
}

// IsCompletionLoggerEnabled returns true if the completion logger service is enabled.
func (c *AppConfig) IsCompletionLoggerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeCompletionLogger]
}
