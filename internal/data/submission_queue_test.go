package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echofeed/voicepipe/internal/testutil"
)

func TestRedisSubmissionQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	client := testutil.SetupTestRedis(t)
	ctx := context.Background()

	t.Run("enqueue then dequeue round-trips", func(t *testing.T) {
		q := NewRedisSubmissionQueue(client, "test:queue:roundtrip")
		want := testutil.NewJob().WithJobID("job-rt").WithLocation("Lisbon").Build()

		require.NoError(t, q.Enqueue(ctx, want))

		got, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.JobID, got.JobID)
		assert.Equal(t, want.ContentFingerprint, got.ContentFingerprint)
		assert.Equal(t, "Lisbon", got.Metadata.Location)
	})

	t.Run("dequeue preserves submission order", func(t *testing.T) {
		q := NewRedisSubmissionQueue(client, "test:queue:order")
		for _, id := range []string{"job-a", "job-b", "job-c"} {
			require.NoError(t, q.Enqueue(ctx, testutil.NewJob().WithJobID(id).Build()))
		}

		for _, want := range []string{"job-a", "job-b", "job-c"} {
			got, err := q.Dequeue(ctx, time.Second)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, want, got.JobID)
		}
	})

	t.Run("empty queue times out with nil job", func(t *testing.T) {
		q := NewRedisSubmissionQueue(client, "test:queue:empty")

		got, err := q.Dequeue(ctx, 100*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("invalid job is rejected at enqueue", func(t *testing.T) {
		q := NewRedisSubmissionQueue(client, "test:queue:invalid")
		job := testutil.NewJob().WithAudioRef("").Build()

		require.Error(t, q.Enqueue(ctx, job))
	})
}
