// Package push delivers status updates to subscribed clients over Redis
// pub/sub. The subscriber handle is opaque to the pipeline; edge servers that
// hold the live client connection subscribe to the matching channel.
package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/domain/model"
)

const channelPrefix = "voicepipe:push:"

// RedisPusher implements core.StatusPusher by publishing serialized statuses
// to a per-subscriber channel. Delivery is best-effort: a channel with no
// subscriber drops the message, which is fine because the StatusStore remains
// the source of truth.
type RedisPusher struct {
	client redis.UniversalClient
}

// NewRedisPusher creates a new RedisPusher.
func NewRedisPusher(client redis.UniversalClient) *RedisPusher {
	return &RedisPusher{client: client}
}

// Push publishes one status update to the subscriber's channel. Errors are
// returned for logging only; callers must not fail the job on them.
func (p *RedisPusher) Push(ctx context.Context, handle string, status *model.ProcessingStatus) error {
	if handle == "" {
		return nil
	}

	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("status encode: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(handle), raw).Err(); err != nil {
		return fmt.Errorf("push publish: %w", err)
	}
	return nil
}

// Channel maps a subscriber handle to its pub/sub channel name. Exposed so
// edge servers share the same mapping.
func Channel(handle string) string {
	return channelPrefix + handle
}

var _ core.StatusPusher = (*RedisPusher)(nil)
