// Package core defines the ports of the voicepipe processing pipeline.
// The core declares interfaces; the data and adapters layers provide
// implementations, following the hexagonal architecture pattern.
package core

import (
	"context"
	"time"

	"github.com/echofeed/voicepipe/internal/domain/model"
)

// CacheRepository defines byte-level cache operations. Implementations must
// provide atomic single-key reads and writes; no cross-key transactions are
// required by this design.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ResultCache memoizes final pipeline results per content fingerprint.
// There is no negative caching: a miss is reported as (nil, nil).
//
// Claim and Release form the cross-process in-flight guard: at most one
// process runs the pipeline for a fingerprint at a time, and the claim
// expires on its own if the holder never releases it.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*model.CachedResult, error)
	Put(ctx context.Context, fingerprint string, result *model.CachedResult) error
	Delete(ctx context.Context, fingerprint string) (bool, error)
	// Claim reports whether the caller became the fingerprint's holder.
	Claim(ctx context.Context, fingerprint, holder string) (bool, error)
	Release(ctx context.Context, fingerprint string) error
}

// MemoCache holds the independent sub-caches for intermediate stage outputs:
// analysis results keyed by hash(transcript+context) and image references
// keyed by hash(prompt+style). These survive job failures, so a resubmission
// after a partial failure skips the stages that already succeeded.
type MemoCache interface {
	GetAnalysis(ctx context.Context, key string) (*model.Analysis, error)
	PutAnalysis(ctx context.Context, key string, analysis *model.Analysis) error
	GetImageRef(ctx context.Context, key string) (string, error)
	PutImageRef(ctx context.Context, key, imageRef string) error
}

// StatusStore persists the evolving ProcessingStatus per job with a bounded
// TTL, plus the last-known subscriber handle for the job. It is the source of
// truth for status: every transition is saved here before any push is attempted.
type StatusStore interface {
	Save(ctx context.Context, status *model.ProcessingStatus) error
	// Load returns (nil, nil) when no status is known for the job.
	Load(ctx context.Context, jobID string) (*model.ProcessingStatus, error)
	SaveSubscriber(ctx context.Context, jobID, handle string) error
	LoadSubscriber(ctx context.Context, jobID string) (string, error)
}

// StatusPusher delivers a status update to the subscriber behind an opaque
// handle. Delivery is best-effort and at-most-once per transition; callers
// log and swallow any returned error.
type StatusPusher interface {
	Push(ctx context.Context, handle string, status *model.ProcessingStatus) error
}

// TranscriptionEngine converts referenced audio into text. Implementations
// wrapping an asynchronous remote API must bound their poll loop and report
// fractional progress in [0,1] through the optional callback.
type TranscriptionEngine interface {
	Transcribe(ctx context.Context, audioRef, language string, progress func(fraction float64)) (*model.Transcript, error)
}

// ContentAnalyzer classifies a transcript (plus the normalized recording
// context) into a mood and derives an image-generation prompt. Malformed
// model output must degrade to a neutral default, never fail the pipeline.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, transcript, contextDescription string) (*model.Analysis, error)
}

// ImageSynthesizer renders one image for a prompt and style variant and
// returns a durable reference to it.
type ImageSynthesizer interface {
	Generate(ctx context.Context, prompt, style string, seed int64) (string, error)
}

// BlobStore persists raw bytes and returns a durable, dereferenceable URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Health(ctx context.Context) error
}

// CompletionPublisher emits a "processing complete" event for downstream
// consumers. Publishing must not block the pipeline: implementations drop
// the event (and report an error for logging) rather than wait.
type CompletionPublisher interface {
	Publish(ctx context.Context, event model.CompletionEvent) error
}

// SubmissionQueue feeds the pipeline runner with jobs already parsed by the
// upload edge. Dequeue blocks up to the given timeout and returns (nil, nil)
// when no job arrived.
type SubmissionQueue interface {
	Enqueue(ctx context.Context, job *model.VoiceProcessingJob) error
	Dequeue(ctx context.Context, timeout time.Duration) (*model.VoiceProcessingJob, error)
}
