package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/domain/model"
	apperrors "github.com/echofeed/voicepipe/internal/errors"
	"github.com/echofeed/voicepipe/internal/observability/metrics"
	"github.com/echofeed/voicepipe/internal/observability/statsd"
)

// Progress bands per stage: each stage owns a sub-range of the 0-100 scale so
// progress stays monotonic and bounded even when an upstream engine's own
// progress estimate is imprecise.
var stageBands = map[model.Stage][2]int{
	model.StageUploaded:     {0, 0},
	model.StageTranscribing: {0, 40},
	model.StageAnalyzing:    {40, 70},
	model.StageGenerating:   {70, 100},
	model.StageComplete:     {100, 100},
}

// Nominal per-stage durations used for the advisory remaining-time estimate.
var stageNominal = map[model.Stage]time.Duration{
	model.StageTranscribing: 20 * time.Second,
	model.StageAnalyzing:    8 * time.Second,
	model.StageGenerating:   25 * time.Second,
}

// StatusTrackerOptions groups dependencies for StatusTracker.
type StatusTrackerOptions struct {
	Store   core.StatusStore  // Required: durable status store
	Pusher  core.StatusPusher // Optional: best-effort push channel
	Logger  *slog.Logger      // Optional: structured logger
	Metrics statsd.Sink       // Optional: metrics sink
}

// StatusTracker owns a job's ProcessingStatus during its active lifetime.
// It enforces monotonic banded progress, saves every transition to the
// StatusStore before attempting a push, and swallows push failures.
type StatusTracker struct {
	store   core.StatusStore
	pusher  core.StatusPusher
	logger  *slog.Logger
	metrics statsd.Sink

	mu   sync.Mutex
	jobs map[string]*jobPublication // publication state per active job
}

// jobPublication serializes status publication for one job. The monotonic
// clamp and the store save happen under the same lock, so the store never
// records a decreasing progress sequence even when stage fan-out goroutines
// publish concurrently.
type jobPublication struct {
	mu            sync.Mutex
	progress      int
	handle        string // subscriber handle resolved from the store
	handleChecked bool
}

// NewStatusTracker constructs a StatusTracker.
func NewStatusTracker(opts StatusTrackerOptions) (*StatusTracker, error) {
	if opts.Store == nil {
		return nil, errors.New("StatusStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "status_tracker")
	}
	return &StatusTracker{
		store:   opts.Store,
		pusher:  opts.Pusher,
		logger:  logger,
		metrics: opts.Metrics,
		jobs:    make(map[string]*jobPublication),
	}, nil
}

// MustNewStatusTracker constructs a StatusTracker and panics on error.
func MustNewStatusTracker(opts StatusTrackerOptions) *StatusTracker {
	t, err := NewStatusTracker(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create StatusTracker: %v", err))
	}
	return t
}

// Load returns the last saved status for a job, or (nil, nil) when unknown.
func (t *StatusTracker) Load(ctx context.Context, jobID string) (*model.ProcessingStatus, error) {
	return t.store.Load(ctx, jobID)
}

// RegisterSubscriber records the job's subscriber handle so late status reads
// can still locate the push channel. Failures are logged, not surfaced.
func (t *StatusTracker) RegisterSubscriber(ctx context.Context, job *model.VoiceProcessingJob) {
	if job.SubscriberHandle == "" {
		return
	}
	if err := t.store.SaveSubscriber(ctx, job.JobID, job.SubscriberHandle); err != nil {
		t.logger.WarnContext(ctx, "save subscriber handle", "job_id", job.JobID, "error", err)
	}
}

// Transition records entry into a stage at the low end of its progress band.
func (t *StatusTracker) Transition(ctx context.Context, job *model.VoiceProcessingJob, stage model.Stage, message string) error {
	band := stageBands[stage]
	return t.publish(ctx, job, &model.ProcessingStatus{
		JobID:    job.JobID,
		Stage:    stage,
		Progress: band[0],
		Message:  message,
	})
}

// StageProgress records intermediate progress within a stage. The fraction in
// [0,1] is mapped into the stage's band; values outside the band are clamped.
func (t *StatusTracker) StageProgress(ctx context.Context, job *model.VoiceProcessingJob, stage model.Stage, fraction float64, message string) error {
	band := stageBands[stage]
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	p := band[0] + int(fraction*float64(band[1]-band[0]))
	return t.publish(ctx, job, &model.ProcessingStatus{
		JobID:    job.JobID,
		Stage:    stage,
		Progress: p,
		Message:  message,
	})
}

// Complete records the successful terminal status with the assembled result.
func (t *StatusTracker) Complete(ctx context.Context, job *model.VoiceProcessingJob, result *model.ProcessingResult, message string) error {
	defer t.forget(job.JobID)
	return t.publish(ctx, job, &model.ProcessingStatus{
		JobID:    job.JobID,
		Stage:    model.StageComplete,
		Progress: 100,
		Message:  message,
		Result:   result,
	})
}

// Fail records the failed terminal status. The failing stage is carried in the
// message; the retryable flag follows the error taxonomy.
func (t *StatusTracker) Fail(ctx context.Context, job *model.VoiceProcessingJob, failedStage model.Stage, cause error) error {
	defer t.forget(job.JobID)
	return t.publish(ctx, job, &model.ProcessingStatus{
		JobID:    job.JobID,
		Stage:    model.StageError,
		Progress: t.lastProgress(job.JobID),
		Message:  fmt.Sprintf("%s stage failed", failedStage),
		Error: &model.ProcessingError{
			Kind:      errorKind(cause),
			Message:   cause.Error(),
			Retryable: apperrors.Retryable(cause),
		},
	})
}

// publish saves the status, then attempts the best-effort push. The save
// always happens first so a polling client is never behind a pushed update.
// Publication holds the job's lock end to end: concurrent publishers for one
// job clamp and save in the same order.
func (t *StatusTracker) publish(ctx context.Context, job *model.VoiceProcessingJob, status *model.ProcessingStatus) error {
	jp := t.jobState(status.JobID)
	jp.mu.Lock()
	defer jp.mu.Unlock()

	if status.Progress < jp.progress {
		status.Progress = jp.progress
	}
	jp.progress = status.Progress
	status.UpdatedAt = time.Now().UTC()
	if status.EstimatedRemainingMs == nil && !status.Stage.Terminal() {
		status.EstimatedRemainingMs = estimateRemainingMs(status.Stage, status.Progress)
	}

	if err := t.store.Save(ctx, status); err != nil {
		return fmt.Errorf("save status: %w", err)
	}

	handle := job.SubscriberHandle
	if handle == "" && t.pusher != nil {
		handle = t.storedHandle(ctx, jp, status.JobID)
	}
	if t.pusher != nil && handle != "" {
		if err := t.pusher.Push(ctx, handle, status); err != nil {
			t.logger.WarnContext(ctx, "status push failed",
				"job_id", status.JobID,
				"stage", status.Stage,
				"error", err,
			)
		}
	}

	metrics.EmitStatusTransition(t.metrics, metrics.StatusMetric{
		Stage:    string(status.Stage),
		Progress: status.Progress,
	})
	return nil
}

// storedHandle resolves the job's registered subscriber handle from the
// store, once per active job. Covers jobs whose queued record carried no
// handle of its own. Called with the job's lock held.
func (t *StatusTracker) storedHandle(ctx context.Context, jp *jobPublication, jobID string) string {
	if jp.handleChecked {
		return jp.handle
	}
	handle, err := t.store.LoadSubscriber(ctx, jobID)
	if err != nil {
		t.logger.WarnContext(ctx, "load subscriber handle", "job_id", jobID, "error", err)
		return ""
	}
	jp.handle = handle
	jp.handleChecked = true
	return handle
}

func (t *StatusTracker) jobState(jobID string) *jobPublication {
	t.mu.Lock()
	defer t.mu.Unlock()
	jp, ok := t.jobs[jobID]
	if !ok {
		jp = &jobPublication{}
		t.jobs[jobID] = jp
	}
	return jp
}

func (t *StatusTracker) lastProgress(jobID string) int {
	jp := t.jobState(jobID)
	jp.mu.Lock()
	defer jp.mu.Unlock()
	return jp.progress
}

func (t *StatusTracker) forget(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, jobID)
}

// estimateRemainingMs derives the advisory remaining-time hint from the
// nominal stage durations and the progress already made.
func estimateRemainingMs(stage model.Stage, progress int) *int64 {
	var remaining time.Duration
	band := stageBands[stage]
	if nominal, ok := stageNominal[stage]; ok && band[1] > band[0] {
		left := float64(band[1]-progress) / float64(band[1]-band[0])
		if left < 0 {
			left = 0
		}
		remaining += time.Duration(left * float64(nominal))
	}
	for s, nominal := range stageNominal {
		if stage.Before(s) {
			remaining += nominal
		}
	}
	if remaining <= 0 {
		return nil
	}
	ms := remaining.Milliseconds()
	return &ms
}

// errorKind maps the error taxonomy onto the status error kinds.
func errorKind(err error) model.ErrorKind {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return model.ErrorKindValidation
	case apperrors.ErrCodeUpstreamTimeout:
		return model.ErrorKindUpstreamTimeout
	case apperrors.ErrCodeUpstreamFailure:
		return model.ErrorKindUpstreamFailure
	case apperrors.ErrCodeGenerationFailed:
		return model.ErrorKindGenerationFailed
	default:
		return model.ErrorKindInternal
	}
}
