package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echofeed/voicepipe/internal/domain/model"
	"github.com/echofeed/voicepipe/internal/testutil"
)

func TestChannelPublisher(t *testing.T) {
	ctx := context.Background()

	event := func(jobID string) model.CompletionEvent {
		return model.CompletionEvent{
			JobID:       jobID,
			OwnerID:     "owner-0001",
			Result:      model.CachedResult{Transcript: "hello"},
			CompletedAt: testutil.TestTime(),
		}
	}

	t.Run("events drain in publish order", func(t *testing.T) {
		p := NewChannelPublisher(4, nil)
		for i := 0; i < 3; i++ {
			require.NoError(t, p.Publish(ctx, event(fmt.Sprintf("job-%d", i))))
		}
		for i := 0; i < 3; i++ {
			got := <-p.Events()
			assert.Equal(t, fmt.Sprintf("job-%d", i), got.JobID)
		}
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		p := NewChannelPublisher(1, nil)
		require.NoError(t, p.Publish(ctx, event("job-keep")))

		err := p.Publish(ctx, event("job-drop"))
		assert.ErrorIs(t, err, ErrEventDropped)

		got := <-p.Events()
		assert.Equal(t, "job-keep", got.JobID)
	})

	t.Run("non-positive size gets a default buffer", func(t *testing.T) {
		p := NewChannelPublisher(0, nil)
		require.NoError(t, p.Publish(ctx, event("job-0001")))
	})
}
