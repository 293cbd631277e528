package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echofeed/voicepipe/internal/domain/model"
	"github.com/echofeed/voicepipe/internal/testutil"
)

func TestStatusStoreRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("save then load round-trips", func(t *testing.T) {
		store := NewStatusStoreRepo(testutil.NewMemCacheRepository(), StatusStoreConfig{})
		want := &model.ProcessingStatus{
			JobID:     "job-0001",
			Stage:     model.StageTranscribing,
			Progress:  25,
			Message:   "transcribing audio",
			UpdatedAt: testutil.TestTime(),
		}
		require.NoError(t, store.Save(ctx, want))

		got, err := store.Load(ctx, "job-0001")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.Stage, got.Stage)
		assert.Equal(t, want.Progress, got.Progress)
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("unknown job loads as nil", func(t *testing.T) {
		store := NewStatusStoreRepo(testutil.NewMemCacheRepository(), StatusStoreConfig{})
		got, err := store.Load(ctx, "job-missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("invalid status is rejected before write", func(t *testing.T) {
		mem := testutil.NewMemCacheRepository()
		store := NewStatusStoreRepo(mem, StatusStoreConfig{})

		err := store.Save(ctx, &model.ProcessingStatus{
			JobID:    "job-0001",
			Stage:    model.StageComplete, // complete without a result
			Progress: 100,
		})
		require.Error(t, err)
		assert.Zero(t, mem.Len())
	})

	t.Run("subscriber handle round-trips", func(t *testing.T) {
		store := NewStatusStoreRepo(testutil.NewMemCacheRepository(), StatusStoreConfig{})

		got, err := store.LoadSubscriber(ctx, "job-0001")
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, store.SaveSubscriber(ctx, "job-0001", "conn-abc"))

		got, err = store.LoadSubscriber(ctx, "job-0001")
		require.NoError(t, err)
		assert.Equal(t, "conn-abc", got)
	})

	t.Run("empty subscriber handle is a no-op", func(t *testing.T) {
		mem := testutil.NewMemCacheRepository()
		store := NewStatusStoreRepo(mem, StatusStoreConfig{})

		require.NoError(t, store.SaveSubscriber(ctx, "job-0001", ""))
		assert.Zero(t, mem.Len())
	})
}
