package config

import "time"

// RedisConfig contains Redis connection configuration. Redis backs the result
// cache, memo caches, status store, submission queue, and status push channel.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// CacheConfig contains the TTLs for the Redis-backed caches and stores.
type CacheConfig struct {
	// ResultTTL is the TTL for memoized pipeline results per content fingerprint.
	ResultTTL time.Duration `env:"CACHE_RESULT_TTL" envDefault:"168h"` // 7 days

	// MemoTTL is the TTL for intermediate stage memos (analysis, image refs).
	MemoTTL time.Duration `env:"CACHE_MEMO_TTL" envDefault:"24h"`

	// StatusTTL is the TTL for job status records. Status is transient by
	// design; completed results live in the result cache instead.
	StatusTTL time.Duration `env:"CACHE_STATUS_TTL" envDefault:"1h"`

	// InflightTTL is the TTL for the cross-process in-flight guard per
	// fingerprint. Must exceed the longest expected pipeline run.
	InflightTTL time.Duration `env:"CACHE_INFLIGHT_TTL" envDefault:"15m"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.ResultTTL < time.Minute {
		c.ResultTTL = time.Minute
	}
	if c.MemoTTL < time.Minute {
		c.MemoTTL = time.Minute
	}
	if c.StatusTTL < time.Minute {
		c.StatusTTL = time.Minute
	}
	if c.InflightTTL < time.Minute {
		c.InflightTTL = time.Minute
	}
}
