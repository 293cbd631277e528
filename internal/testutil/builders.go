package testutil

import (
	"time"

	"github.com/echofeed/voicepipe/internal/domain/model"
)

// JobBuilder provides a fluent interface for building VoiceProcessingJob
// objects for testing.
type JobBuilder struct {
	job *model.VoiceProcessingJob
}

// NewJob creates a new JobBuilder with sensible defaults.
func NewJob() *JobBuilder {
	return &JobBuilder{
		job: &model.VoiceProcessingJob{
			JobID:              "job-0001",
			OwnerID:            "owner-0001",
			AudioRef:           "https://audio.example.com/notes/0001.m4a",
			ContentFingerprint: "fp-0001",
			Metadata: model.JobMetadata{
				DurationMs: 42_000,
				Format:     "m4a",
				Language:   "en",
			},
			SubmittedAt: TestTime(),
		},
	}
}

// WithJobID sets the job ID.
func (b *JobBuilder) WithJobID(id string) *JobBuilder {
	b.job.JobID = id
	return b
}

// WithOwner sets the owner ID.
func (b *JobBuilder) WithOwner(ownerID string) *JobBuilder {
	b.job.OwnerID = ownerID
	return b
}

// WithAudioRef sets the audio reference.
func (b *JobBuilder) WithAudioRef(ref string) *JobBuilder {
	b.job.AudioRef = ref
	return b
}

// WithFingerprint sets the content fingerprint.
func (b *JobBuilder) WithFingerprint(fp string) *JobBuilder {
	b.job.ContentFingerprint = fp
	return b
}

// WithSubscriber sets the subscriber handle.
func (b *JobBuilder) WithSubscriber(handle string) *JobBuilder {
	b.job.SubscriberHandle = handle
	return b
}

// WithMetadata replaces the job metadata.
func (b *JobBuilder) WithMetadata(md model.JobMetadata) *JobBuilder {
	b.job.Metadata = md
	return b
}

// WithLocation sets the recording location.
func (b *JobBuilder) WithLocation(location string) *JobBuilder {
	b.job.Metadata.Location = location
	return b
}

// WithWeather sets the recording weather.
func (b *JobBuilder) WithWeather(weather string) *JobBuilder {
	b.job.Metadata.Weather = weather
	return b
}

// WithRecordedAt sets the recording timestamp.
func (b *JobBuilder) WithRecordedAt(at time.Time) *JobBuilder {
	b.job.Metadata.RecordedAt = &at
	return b
}

// Build returns the constructed job.
func (b *JobBuilder) Build() *model.VoiceProcessingJob {
	cp := *b.job
	return &cp
}

// Analysis returns a small fixed analysis for tests.
func Analysis(mood, prompt string) *model.Analysis {
	return &model.Analysis{
		Sentiment: model.Sentiment{
			Mood:       mood,
			Confidence: 0.9,
			Scores:     map[string]float64{"positive": 0.8, "negative": 0.1, "neutral": 0.1},
		},
		ImagePrompt: prompt,
	}
}

// Transcript returns a fixed transcript for tests.
func Transcript(text string) *model.Transcript {
	return &model.Transcript{Text: text, Confidence: 0.95}
}
