package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage(t *testing.T) {
	t.Run("valid stages", func(t *testing.T) {
		for _, s := range []Stage{StageUploaded, StageTranscribing, StageAnalyzing, StageGenerating, StageComplete, StageError} {
			assert.True(t, s.Valid(), "stage %q should be valid", s)
		}
		assert.False(t, Stage("queued").Valid())
		assert.False(t, Stage("").Valid())
	})

	t.Run("terminal stages", func(t *testing.T) {
		assert.True(t, StageComplete.Terminal())
		assert.True(t, StageError.Terminal())
		assert.False(t, StageUploaded.Terminal())
		assert.False(t, StageGenerating.Terminal())
	})

	t.Run("pipeline order", func(t *testing.T) {
		assert.True(t, StageUploaded.Before(StageTranscribing))
		assert.True(t, StageTranscribing.Before(StageAnalyzing))
		assert.True(t, StageAnalyzing.Before(StageGenerating))
		assert.True(t, StageGenerating.Before(StageComplete))
		assert.False(t, StageComplete.Before(StageError))
		assert.False(t, StageGenerating.Before(StageUploaded))
	})

	t.Run("unmarshal text", func(t *testing.T) {
		var s Stage
		require.NoError(t, s.UnmarshalText([]byte("  Transcribing ")))
		assert.Equal(t, StageTranscribing, s)

		assert.Error(t, s.UnmarshalText([]byte("bogus")))
	})
}

func TestVoiceProcessingJobValidate(t *testing.T) {
	valid := func() *VoiceProcessingJob {
		return &VoiceProcessingJob{
			JobID:              "job-1",
			OwnerID:            "owner-1",
			AudioRef:           "https://audio.example.com/a.m4a",
			ContentFingerprint: "fp-1",
			Metadata:           JobMetadata{DurationMs: 1000, Format: "m4a"},
		}
	}

	t.Run("valid job", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("missing audio ref", func(t *testing.T) {
		j := valid()
		j.AudioRef = ""
		assert.Error(t, j.Validate())
	})

	t.Run("missing fingerprint", func(t *testing.T) {
		j := valid()
		j.ContentFingerprint = ""
		assert.Error(t, j.Validate())
	})

	t.Run("missing owner", func(t *testing.T) {
		j := valid()
		j.OwnerID = ""
		assert.Error(t, j.Validate())
	})

	t.Run("negative duration", func(t *testing.T) {
		j := valid()
		j.Metadata.DurationMs = -1
		assert.Error(t, j.Validate())
	})
}

func TestProcessingStatusValidate(t *testing.T) {
	result := &ProcessingResult{Transcript: "hi", Sentiment: NeutralSentiment(), ImageRef: "ref"}
	procErr := &ProcessingError{Kind: ErrorKindUpstreamFailure, Message: "boom", Retryable: true}

	t.Run("non-terminal carries neither result nor error", func(t *testing.T) {
		s := &ProcessingStatus{JobID: "j", Stage: StageTranscribing, Progress: 10}
		require.NoError(t, s.Validate())

		s.Result = result
		assert.Error(t, s.Validate())
	})

	t.Run("complete requires result only", func(t *testing.T) {
		s := &ProcessingStatus{JobID: "j", Stage: StageComplete, Progress: 100, Result: result}
		require.NoError(t, s.Validate())

		s.Result = nil
		assert.Error(t, s.Validate())

		s.Result = result
		s.Error = procErr
		assert.Error(t, s.Validate())
	})

	t.Run("error requires error only", func(t *testing.T) {
		s := &ProcessingStatus{JobID: "j", Stage: StageError, Progress: 40, Error: procErr}
		require.NoError(t, s.Validate())

		s.Result = result
		assert.Error(t, s.Validate())
	})

	t.Run("progress bounds", func(t *testing.T) {
		s := &ProcessingStatus{JobID: "j", Stage: StageAnalyzing, Progress: 101}
		assert.Error(t, s.Validate())
		s.Progress = -1
		assert.Error(t, s.Validate())
	})

	t.Run("requires job id and valid stage", func(t *testing.T) {
		s := &ProcessingStatus{Stage: StageAnalyzing, Progress: 50}
		assert.Error(t, s.Validate())

		s = &ProcessingStatus{JobID: "j", Stage: Stage("weird"), Progress: 50}
		assert.Error(t, s.Validate())
	})
}

func TestNeutralSentiment(t *testing.T) {
	s := NeutralSentiment()
	assert.Equal(t, "neutral", s.Mood)
	assert.Zero(t, s.Confidence)
	assert.InDelta(t, 1.0, s.Scores["neutral"], 1e-9)
}
