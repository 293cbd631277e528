package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/domain/model"
)

const defaultSubmissionQueueKey = "voicepipe:submissions"

// RedisSubmissionQueue implements core.SubmissionQueue as a Redis list.
// The upload edge LPUSHes serialized jobs; pipeline workers BRPOP them, so
// jobs are delivered in submission order across any number of workers.
type RedisSubmissionQueue struct {
	client redis.UniversalClient
	key    string
}

// NewRedisSubmissionQueue creates a new RedisSubmissionQueue. An empty key
// selects the default queue.
func NewRedisSubmissionQueue(client redis.UniversalClient, key string) *RedisSubmissionQueue {
	if key == "" {
		key = defaultSubmissionQueueKey
	}
	return &RedisSubmissionQueue{client: client, key: key}
}

// Enqueue pushes a job onto the queue.
func (q *RedisSubmissionQueue) Enqueue(ctx context.Context, job *model.VoiceProcessingJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("job encode: %w", err)
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Dequeue blocks up to timeout for the next job. Returns (nil, nil) when the
// wait elapsed without a job arriving.
func (q *RedisSubmissionQueue) Dequeue(ctx context.Context, timeout time.Duration) (*model.VoiceProcessingJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue pop: %w", err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("queue pop: unexpected reply length %d", len(res))
	}

	var job model.VoiceProcessingJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("job decode: %w", err)
	}
	return &job, nil
}

var _ core.SubmissionQueue = (*RedisSubmissionQueue)(nil)
