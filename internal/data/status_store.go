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
	statusKeyPrefix     = "voicepipe:status:"
	subscriberKeyPrefix = "voicepipe:subscriber:"
)

// StatusStoreConfig holds configuration for the status store.
type StatusStoreConfig struct {
	// TTL bounds how long a job's last status outlives processing. Callers
	// must not assume retention beyond it.
	TTL time.Duration
}

// DefaultStatusStoreConfig returns a StatusStoreConfig with sensible defaults.
func DefaultStatusStoreConfig() StatusStoreConfig {
	return StatusStoreConfig{TTL: time.Hour}
}

// StatusStoreRepo implements core.StatusStore on a byte-level CacheRepository.
type StatusStoreRepo struct {
	cache core.CacheRepository
	ttl   time.Duration
}

// NewStatusStoreRepo creates a new StatusStoreRepo.
func NewStatusStoreRepo(cache core.CacheRepository, cfg StatusStoreConfig) *StatusStoreRepo {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultStatusStoreConfig().TTL
	}
	return &StatusStoreRepo{cache: cache, ttl: ttl}
}

// Save persists the current status with the configured TTL. The orchestrator
// calls this before any push notification so polling clients never lag pushes.
func (s *StatusStoreRepo) Save(ctx context.Context, status *model.ProcessingStatus) error {
	if err := status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("status encode: %w", err)
	}
	return s.cache.Set(ctx, statusKeyPrefix+status.JobID, raw, s.ttl)
}

// Load returns the last saved status for a job, or (nil, nil) when unknown.
func (s *StatusStoreRepo) Load(ctx context.Context, jobID string) (*model.ProcessingStatus, error) {
	raw, err := s.cache.Get(ctx, statusKeyPrefix+jobID)
	if err != nil {
		return nil, fmt.Errorf("status get: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var status model.ProcessingStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("status decode: %w", err)
	}
	return &status, nil
}

// SaveSubscriber records the last-known subscriber handle for a job.
func (s *StatusStoreRepo) SaveSubscriber(ctx context.Context, jobID, handle string) error {
	if handle == "" {
		return nil
	}
	return s.cache.Set(ctx, subscriberKeyPrefix+jobID, []byte(handle), s.ttl)
}

// LoadSubscriber returns the last-known subscriber handle, or empty string.
func (s *StatusStoreRepo) LoadSubscriber(ctx context.Context, jobID string) (string, error) {
	raw, err := s.cache.Get(ctx, subscriberKeyPrefix+jobID)
	if err != nil {
		return "", fmt.Errorf("subscriber get: %w", err)
	}
	return string(raw), nil
}

var _ core.StatusStore = (*StatusStoreRepo)(nil)
