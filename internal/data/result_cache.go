package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/domain/model"
)

const (
	resultKeyPrefix   = "voicepipe:result:"
	analysisKeyPrefix = "voicepipe:analysis:"
	imageKeyPrefix    = "voicepipe:image:"
	inflightKeyPrefix = "voicepipe:inflight:"
)

// ResultCacheConfig holds TTLs for the content-addressed caches.
type ResultCacheConfig struct {
	// ResultTTL bounds retention of whole-job results keyed by fingerprint.
	ResultTTL time.Duration
	// MemoTTL bounds retention of intermediate analysis/image memo entries.
	MemoTTL time.Duration
	// InflightTTL bounds the cross-process in-flight guard, so a holder that
	// dies without releasing cannot block a fingerprint forever. Must exceed
	// the longest expected pipeline run.
	InflightTTL time.Duration
}

// DefaultResultCacheConfig returns a ResultCacheConfig with sensible defaults.
func DefaultResultCacheConfig() ResultCacheConfig {
	return ResultCacheConfig{
		ResultTTL:   7 * 24 * time.Hour,
		MemoTTL:     24 * time.Hour,
		InflightTTL: 15 * time.Minute,
	}
}

// ResultCacheRepo implements core.ResultCache and core.MemoCache on top of a
// byte-level CacheRepository. Values are JSON-encoded; a decode failure on
// read is treated as a miss so a corrupt entry can never wedge the pipeline.
type ResultCacheRepo struct {
	cache core.CacheRepository
	cfg   ResultCacheConfig
}

// NewResultCacheRepo creates a new ResultCacheRepo.
func NewResultCacheRepo(cache core.CacheRepository, cfg ResultCacheConfig) *ResultCacheRepo {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultResultCacheConfig().ResultTTL
	}
	if cfg.MemoTTL <= 0 {
		cfg.MemoTTL = DefaultResultCacheConfig().MemoTTL
	}
	if cfg.InflightTTL <= 0 {
		cfg.InflightTTL = DefaultResultCacheConfig().InflightTTL
	}
	return &ResultCacheRepo{cache: cache, cfg: cfg}
}

// Get returns the memoized result for a fingerprint, or (nil, nil) on a miss.
func (r *ResultCacheRepo) Get(ctx context.Context, fingerprint string) (*model.CachedResult, error) {
	raw, err := r.cache.Get(ctx, resultKeyPrefix+fingerprint)
	if err != nil {
		return nil, fmt.Errorf("result cache get: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var result model.CachedResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil
	}
	return &result, nil
}

// Put stores the final result for a fingerprint. Concurrent writers for the
// same fingerprint overwrite each other with identical content, which is safe.
func (r *ResultCacheRepo) Put(ctx context.Context, fingerprint string, result *model.CachedResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("result cache encode: %w", err)
	}
	return r.cache.Set(ctx, resultKeyPrefix+fingerprint, raw, r.cfg.ResultTTL)
}

// Delete removes a memoized result, e.g. via the admin CLI.
func (r *ResultCacheRepo) Delete(ctx context.Context, fingerprint string) (bool, error) {
	return r.cache.Delete(ctx, resultKeyPrefix+fingerprint)
}

// Claim marks a fingerprint as in flight with an atomic set-if-absent and
// reports whether the caller became the holder. The guard expires on its own
// when a holder dies without releasing.
func (r *ResultCacheRepo) Claim(ctx context.Context, fingerprint, holder string) (bool, error) {
	held, err := r.cache.SetIfNotExists(ctx, inflightKeyPrefix+fingerprint, []byte(holder), r.cfg.InflightTTL)
	if err != nil {
		return false, fmt.Errorf("claim in-flight guard: %w", err)
	}
	return held, nil
}

// Release drops the in-flight guard once the holder reached a terminal status.
func (r *ResultCacheRepo) Release(ctx context.Context, fingerprint string) error {
	if _, err := r.cache.Delete(ctx, inflightKeyPrefix+fingerprint); err != nil {
		return fmt.Errorf("release in-flight guard: %w", err)
	}
	return nil
}

// GetAnalysis returns the memoized analyzer output for a key, or (nil, nil).
func (r *ResultCacheRepo) GetAnalysis(ctx context.Context, key string) (*model.Analysis, error) {
	raw, err := r.cache.Get(ctx, analysisKeyPrefix+key)
	if err != nil {
		return nil, fmt.Errorf("analysis cache get: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var analysis model.Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, nil
	}
	return &analysis, nil
}

// PutAnalysis memoizes analyzer output under hash(transcript+context).
func (r *ResultCacheRepo) PutAnalysis(ctx context.Context, key string, analysis *model.Analysis) error {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("analysis cache encode: %w", err)
	}
	return r.cache.Set(ctx, analysisKeyPrefix+key, raw, r.cfg.MemoTTL)
}

// GetImageRef returns the memoized image reference for a key, or empty string.
func (r *ResultCacheRepo) GetImageRef(ctx context.Context, key string) (string, error) {
	raw, err := r.cache.Get(ctx, imageKeyPrefix+key)
	if err != nil {
		return "", fmt.Errorf("image cache get: %w", err)
	}
	return string(raw), nil
}

// PutImageRef memoizes one generated image reference under hash(prompt+style).
func (r *ResultCacheRepo) PutImageRef(ctx context.Context, key, imageRef string) error {
	return r.cache.Set(ctx, imageKeyPrefix+key, []byte(imageRef), r.cfg.MemoTTL)
}

var (
	_ core.ResultCache = (*ResultCacheRepo)(nil)
	_ core.MemoCache   = (*ResultCacheRepo)(nil)
)
