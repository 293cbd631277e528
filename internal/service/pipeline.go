// Package service contains the orchestration layer of the voicepipe pipeline:
// the PipelineService drives jobs through the stage machine, the StatusTracker
// owns status publication, and the ChannelPublisher fans completion events out
// to in-process consumers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/domain/model"
	apperrors "github.com/echofeed/voicepipe/internal/errors"
	"github.com/echofeed/voicepipe/internal/observability/metrics"
	"github.com/echofeed/voicepipe/internal/observability/statsd"
)

// PipelineConfig carries the tunables of the orchestrator.
type PipelineConfig struct {
	// ImageStyles lists the style variants requested per job, submission order.
	ImageStyles []string
	// Per-stage deadlines.
	TranscribeTimeout time.Duration
	AnalyzeTimeout    time.Duration
	GenerateTimeout   time.Duration
	// OverallTimeout bounds a detached run started by Submit when no
	// submission queue is configured.
	OverallTimeout time.Duration
	// InflightPoll is how often a run re-checks a fingerprint held in
	// flight by another process for that process's result.
	InflightPoll time.Duration
}

func (c *PipelineConfig) applyDefaults() {
	if len(c.ImageStyles) == 0 {
		c.ImageStyles = []string{"vivid", "natural", "abstract"}
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 5 * time.Minute
	}
	if c.AnalyzeTimeout <= 0 {
		c.AnalyzeTimeout = time.Minute
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = 2 * time.Minute
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = 10 * time.Minute
	}
	if c.InflightPoll <= 0 {
		c.InflightPoll = 500 * time.Millisecond
	}
}

// PipelineServiceOptions groups the dependencies for PipelineService.
type PipelineServiceOptions struct {
	Transcriber core.TranscriptionEngine // Required
	Analyzer    core.ContentAnalyzer     // Required
	Synthesizer core.ImageSynthesizer    // Required
	ResultCache core.ResultCache         // Required
	MemoCache   core.MemoCache           // Required
	Tracker     *StatusTracker           // Required
	Publisher   core.CompletionPublisher // Optional: completion event fan-out
	Queue       core.SubmissionQueue     // Optional: when nil, Submit runs jobs detached
	// DescribeContext builds the deterministic recording-context description
	// fed to the analyzer alongside the transcript.
	DescribeContext func(model.JobMetadata) string // Required
	Logger          *slog.Logger                   // Optional
	Metrics         statsd.Sink                    // Optional
	Config          PipelineConfig
}

// PipelineService executes the voice-processing pipeline: transcription and
// context description in parallel, mood analysis, then image synthesis fan-out.
// Concurrent jobs with the same content fingerprint coalesce onto one run.
type PipelineService struct {
	transcriber core.TranscriptionEngine
	analyzer    core.ContentAnalyzer
	synthesizer core.ImageSynthesizer
	resultCache core.ResultCache
	memoCache   core.MemoCache
	tracker     *StatusTracker
	publisher   core.CompletionPublisher
	queue       core.SubmissionQueue
	describe    func(model.JobMetadata) string
	logger      *slog.Logger
	metrics     statsd.Sink
	cfg         PipelineConfig

	flights singleflight.Group
	// detached tracks goroutines spawned by Submit when no queue is wired.
	detached sync.WaitGroup
}

// flightOutcome is the shared value a coalesced flight resolves to. The
// singleflight error slot stays nil so waiters always receive the outcome.
type flightOutcome struct {
	leaderID    string
	result      *model.CachedResult
	imageRefs   []string
	failedStage model.Stage
	err         error
}

// NewPipelineService constructs a PipelineService with the required dependencies.
func NewPipelineService(opts PipelineServiceOptions) (*PipelineService, error) {
	if opts.Transcriber == nil {
		return nil, errors.New("TranscriptionEngine is required")
	}
	if opts.Analyzer == nil {
		return nil, errors.New("ContentAnalyzer is required")
	}
	if opts.Synthesizer == nil {
		return nil, errors.New("ImageSynthesizer is required")
	}
	if opts.ResultCache == nil {
		return nil, errors.New("ResultCache is required")
	}
	if opts.MemoCache == nil {
		return nil, errors.New("MemoCache is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("StatusTracker is required")
	}
	if opts.DescribeContext == nil {
		return nil, errors.New("DescribeContext is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "pipeline")
	}
	cfg := opts.Config
	cfg.applyDefaults()
	return &PipelineService{
		transcriber: opts.Transcriber,
		analyzer:    opts.Analyzer,
		synthesizer: opts.Synthesizer,
		resultCache: opts.ResultCache,
		memoCache:   opts.MemoCache,
		tracker:     opts.Tracker,
		publisher:   opts.Publisher,
		queue:       opts.Queue,
		describe:    opts.DescribeContext,
		logger:      logger,
		metrics:     opts.Metrics,
		cfg:         cfg,
	}, nil
}

// MustNewPipelineService constructs a PipelineService and panics on error.
func MustNewPipelineService(opts PipelineServiceOptions) *PipelineService {
	s, err := NewPipelineService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create PipelineService: %v", err))
	}
	return s
}

// Submit accepts a job, short-circuits on a cached result, and otherwise hands
// the job to the runner via the submission queue (or a detached run when no
// queue is wired). It returns the assigned job ID.
func (s *PipelineService) Submit(ctx context.Context, job *model.VoiceProcessingJob) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	if err := job.Validate(); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid processing job")
	}

	s.tracker.RegisterSubscriber(ctx, job)

	cached, err := s.resultCache.Get(ctx, job.ContentFingerprint)
	if err != nil {
		// A broken cache degrades to a full run, never a rejected submission.
		s.logger.WarnContext(ctx, "result cache lookup failed", "job_id", job.JobID, "error", err)
	}
	if cached != nil {
		if err := s.completeFromCache(ctx, job, cached); err != nil {
			return "", err
		}
		return job.JobID, nil
	}

	if err := s.tracker.Transition(ctx, job, model.StageUploaded, "audio received"); err != nil {
		return "", err
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "enqueue submission")
		}
		return job.JobID, nil
	}

	// No queue wired: run detached so Submit returns promptly.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.OverallTimeout)
	s.detached.Add(1)
	go func() {
		defer s.detached.Done()
		defer cancel()
		if err := s.Execute(runCtx, job); err != nil {
			s.logger.WarnContext(runCtx, "detached pipeline run failed", "job_id", job.JobID, "error", err)
		}
	}()
	return job.JobID, nil
}

// Wait blocks until all detached runs started by Submit have finished.
func (s *PipelineService) Wait() {
	s.detached.Wait()
}

// GetStatus returns the last published status for a job, or (nil, nil) when
// the job is unknown or its status has expired.
func (s *PipelineService) GetStatus(ctx context.Context, jobID string) (*model.ProcessingStatus, error) {
	return s.tracker.Load(ctx, jobID)
}

// Execute runs the pipeline for one job through to a terminal status. Jobs
// sharing a content fingerprint coalesce: one leader runs the stages, waiters
// receive its outcome and publish their own terminal status from it.
func (s *PipelineService) Execute(ctx context.Context, job *model.VoiceProcessingJob) error {
	v, _, _ := s.flights.Do(job.ContentFingerprint, func() (any, error) {
		out := &flightOutcome{leaderID: job.JobID}
		out.result, out.imageRefs, out.failedStage, out.err = s.runStages(ctx, job)
		return out, nil
	})
	out, ok := v.(*flightOutcome)
	if !ok {
		return apperrors.Internal("unexpected flight outcome type")
	}

	if out.leaderID == job.JobID {
		// Leader finalizes its own status inside runStages via finalize/fail.
		return out.err
	}

	// Waiter: publish a terminal status mirroring the leader's outcome.
	if out.err != nil {
		if err := s.tracker.Fail(ctx, job, out.failedStage, out.err); err != nil {
			s.logger.WarnContext(ctx, "save coalesced failure status", "job_id", job.JobID, "error", err)
		}
		return out.err
	}
	status := &model.ProcessingResult{
		Transcript: out.result.Transcript,
		Sentiment:  out.result.Sentiment,
		ImageRef:   out.result.ImageRef,
		ImageRefs:  out.imageRefs,
	}
	return s.tracker.Complete(ctx, job, status, "processing complete")
}

// runStages drives the leader's run. It returns the cached-result form of the
// outcome for waiters, plus the failing stage on error. Terminal status and
// the completion event for the leader are published here.
func (s *PipelineService) runStages(ctx context.Context, job *model.VoiceProcessingJob) (*model.CachedResult, []string, model.Stage, error) {
	claimed, err := s.resultCache.Claim(ctx, job.ContentFingerprint, job.JobID)
	if err != nil {
		// A broken guard degrades to an unguarded run.
		s.logger.WarnContext(ctx, "in-flight claim failed", "job_id", job.JobID, "error", err)
	} else if !claimed {
		cached, took := s.awaitPeerResult(ctx, job)
		if cached != nil {
			if cerr := s.completeFromCache(ctx, job, cached); cerr != nil {
				return nil, nil, model.StageComplete, cerr
			}
			return cached, nil, "", nil
		}
		if !took {
			werr := apperrors.UpstreamTimeout("timed out waiting for concurrent processing of the same content")
			s.failStage(ctx, job, model.StageUploaded, werr)
			return nil, nil, model.StageUploaded, werr
		}
		claimed = true
	}
	if claimed {
		defer func() {
			if rerr := s.resultCache.Release(ctx, job.ContentFingerprint); rerr != nil {
				s.logger.WarnContext(ctx, "in-flight release failed", "job_id", job.JobID, "error", rerr)
			}
		}()
	}

	transcript, contextDesc, err := s.transcribeStage(ctx, job)
	if err != nil {
		s.failStage(ctx, job, model.StageTranscribing, err)
		return nil, nil, model.StageTranscribing, err
	}

	analysis, err := s.analyzeStage(ctx, job, transcript, contextDesc)
	if err != nil {
		s.failStage(ctx, job, model.StageAnalyzing, err)
		return nil, nil, model.StageAnalyzing, err
	}

	imageRef, imageRefs, err := s.generateStage(ctx, job, analysis)
	if err != nil {
		s.failStage(ctx, job, model.StageGenerating, err)
		return nil, nil, model.StageGenerating, err
	}

	cached := &model.CachedResult{
		Transcript: transcript.Text,
		Sentiment:  analysis.Sentiment,
		ImageRef:   imageRef,
	}
	if err := s.finalize(ctx, job, cached, imageRefs); err != nil {
		return nil, nil, model.StageComplete, err
	}
	return cached, imageRefs, "", nil
}

// awaitPeerResult polls while another process holds the in-flight guard for
// this fingerprint. It returns the peer's result once it lands, or (nil, true)
// when the guard lapsed without one and this run claimed it instead.
func (s *PipelineService) awaitPeerResult(ctx context.Context, job *model.VoiceProcessingJob) (*model.CachedResult, bool) {
	s.logger.InfoContext(ctx, "content in flight elsewhere, waiting",
		"job_id", job.JobID,
		"fingerprint", job.ContentFingerprint,
	)
	ticker := time.NewTicker(s.cfg.InflightPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
		}

		cached, err := s.resultCache.Get(ctx, job.ContentFingerprint)
		if err != nil {
			s.logger.WarnContext(ctx, "result cache lookup failed", "job_id", job.JobID, "error", err)
		} else if cached != nil {
			return cached, false
		}

		claimed, err := s.resultCache.Claim(ctx, job.ContentFingerprint, job.JobID)
		if err != nil {
			s.logger.WarnContext(ctx, "in-flight claim failed", "job_id", job.JobID, "error", err)
		} else if claimed {
			// The peer died without a result; take over the run.
			return nil, true
		}
	}
}

// transcribeStage runs transcription and the recording-context description in
// parallel. Both must succeed; the context description is pure and cannot fail,
// but running it alongside keeps the stage shape uniform.
func (s *PipelineService) transcribeStage(ctx context.Context, job *model.VoiceProcessingJob) (*model.Transcript, string, error) {
	started := time.Now()
	if err := s.tracker.Transition(ctx, job, model.StageTranscribing, "transcribing audio"); err != nil {
		return nil, "", err
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.TranscribeTimeout)
	defer cancel()

	var (
		transcript  *model.Transcript
		contextDesc string
	)
	g, gctx := errgroup.WithContext(stageCtx)
	g.Go(func() error {
		t, err := s.transcriber.Transcribe(gctx, job.AudioRef, job.Metadata.Language, func(fraction float64) {
			// Engine progress maps into the transcribing band; push failures
			// inside the callback are already swallowed by the tracker.
			_ = s.tracker.StageProgress(gctx, job, model.StageTranscribing, fraction, "transcribing audio")
		})
		if err != nil {
			return err
		}
		transcript = t
		return nil
	})
	g.Go(func() error {
		contextDesc = s.describe(job.Metadata)
		return nil
	})
	err := g.Wait()
	s.emitStage(model.StageTranscribing, time.Since(started), err)
	if err != nil {
		return nil, "", err
	}
	return transcript, contextDesc, nil
}

// analyzeStage classifies the transcript, memoized on hash(transcript+context)
// so a resubmission after a downstream failure skips the analyzer call.
func (s *PipelineService) analyzeStage(ctx context.Context, job *model.VoiceProcessingJob, transcript *model.Transcript, contextDesc string) (*model.Analysis, error) {
	started := time.Now()
	if err := s.tracker.Transition(ctx, job, model.StageAnalyzing, "analyzing mood"); err != nil {
		return nil, err
	}

	key := core.AnalysisKey(transcript.Text, contextDesc)
	if memo, err := s.memoCache.GetAnalysis(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "analysis memo lookup failed", "job_id", job.JobID, "error", err)
	} else if memo != nil {
		s.emitStage(model.StageAnalyzing, time.Since(started), nil)
		return memo, nil
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.AnalyzeTimeout)
	defer cancel()

	analysis, err := s.analyzer.Analyze(stageCtx, transcript.Text, contextDesc)
	s.emitStage(model.StageAnalyzing, time.Since(started), err)
	if err != nil {
		return nil, err
	}
	if err := s.memoCache.PutAnalysis(ctx, key, analysis); err != nil {
		s.logger.WarnContext(ctx, "analysis memo store failed", "job_id", job.JobID, "error", err)
	}
	return analysis, nil
}

// generateStage fans out one synthesis request per configured style. The stage
// succeeds when at least one variant succeeds; the canonical image is the
// first success in submission order. Per-style results are memoized on
// hash(prompt+style), so retried jobs only re-request the styles that failed.
func (s *PipelineService) generateStage(ctx context.Context, job *model.VoiceProcessingJob, analysis *model.Analysis) (string, []string, error) {
	started := time.Now()
	if err := s.tracker.Transition(ctx, job, model.StageGenerating, "generating mood images"); err != nil {
		return "", nil, err
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()

	styles := s.cfg.ImageStyles
	refs := make([]string, len(styles))
	errs := make([]error, len(styles))

	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	for i, style := range styles {
		key := core.ImageKey(analysis.ImagePrompt, style)
		if memo, err := s.memoCache.GetImageRef(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "image memo lookup failed", "job_id", job.JobID, "style", style, "error", err)
		} else if memo != "" {
			refs[i] = memo
			// A memo hit reports the same per-variant progress as a fresh
			// generation, so retried jobs show a uniform progress texture.
			fraction := float64(done.Add(1)) / float64(len(styles))
			_ = s.tracker.StageProgress(ctx, job, model.StageGenerating, fraction, "generating mood images")
			continue
		}

		wg.Add(1)
		go func(i int, style, key string) {
			defer wg.Done()
			ref, err := s.synthesizer.Generate(stageCtx, analysis.ImagePrompt, style, int64(i))
			if err != nil {
				errs[i] = fmt.Errorf("style %q: %w", style, err)
			} else {
				refs[i] = ref
				if perr := s.memoCache.PutImageRef(ctx, key, ref); perr != nil {
					s.logger.WarnContext(ctx, "image memo store failed", "job_id", job.JobID, "style", style, "error", perr)
				}
			}
			fraction := float64(done.Add(1)) / float64(len(styles))
			_ = s.tracker.StageProgress(ctx, job, model.StageGenerating, fraction, "generating mood images")
		}(i, style, key)
	}
	wg.Wait()

	var (
		canonical string
		succeeded []string
	)
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if canonical == "" {
			canonical = ref
		}
		succeeded = append(succeeded, ref)
	}
	if canonical == "" {
		err := apperrors.Wrap(errors.Join(errs...), apperrors.ErrCodeGenerationFailed, "all image variants failed")
		s.emitStage(model.StageGenerating, time.Since(started), err)
		return "", nil, err
	}
	for i, err := range errs {
		if err != nil {
			s.logger.WarnContext(ctx, "image variant failed", "job_id", job.JobID, "style", styles[i], "error", err)
		}
	}
	s.emitStage(model.StageGenerating, time.Since(started), nil)
	return canonical, succeeded, nil
}

// finalize writes the memoized result, publishes the COMPLETE status, then
// emits the completion event. Status save failure is the only fatal step here.
func (s *PipelineService) finalize(ctx context.Context, job *model.VoiceProcessingJob, cached *model.CachedResult, imageRefs []string) error {
	if err := s.resultCache.Put(ctx, job.ContentFingerprint, cached); err != nil {
		s.logger.WarnContext(ctx, "result cache store failed", "job_id", job.JobID, "error", err)
	}

	result := &model.ProcessingResult{
		Transcript: cached.Transcript,
		Sentiment:  cached.Sentiment,
		ImageRef:   cached.ImageRef,
		ImageRefs:  imageRefs,
	}
	if err := s.tracker.Complete(ctx, job, result, "processing complete"); err != nil {
		return err
	}

	s.publishCompletion(ctx, job, cached)
	s.logger.InfoContext(ctx, "pipeline complete",
		"job_id", job.JobID,
		"owner_id", job.OwnerID,
		"image_variants", len(imageRefs),
	)
	return nil
}

// completeFromCache publishes a COMPLETE status straight from the memoized
// result. No engine is called and no completion event is emitted; downstream
// consumers already saw this content's completion.
func (s *PipelineService) completeFromCache(ctx context.Context, job *model.VoiceProcessingJob, cached *model.CachedResult) error {
	s.emitStage(model.StageComplete, 0, nil)
	if s.metrics != nil {
		s.metrics.Count("pipeline.cache_hit", 1, nil)
	}
	s.logger.InfoContext(ctx, "result cache hit", "job_id", job.JobID, "fingerprint", job.ContentFingerprint)
	result := &model.ProcessingResult{
		Transcript: cached.Transcript,
		Sentiment:  cached.Sentiment,
		ImageRef:   cached.ImageRef,
	}
	return s.tracker.Complete(ctx, job, result, "processing complete (cached)")
}

func (s *PipelineService) failStage(ctx context.Context, job *model.VoiceProcessingJob, stage model.Stage, cause error) {
	s.logger.WarnContext(ctx, "pipeline stage failed",
		"job_id", job.JobID,
		"stage", stage,
		"retryable", apperrors.Retryable(cause),
		"error", cause,
	)
	if err := s.tracker.Fail(ctx, job, stage, cause); err != nil {
		s.logger.WarnContext(ctx, "save failure status", "job_id", job.JobID, "error", err)
	}
}

func (s *PipelineService) publishCompletion(ctx context.Context, job *model.VoiceProcessingJob, cached *model.CachedResult) {
	if s.publisher == nil {
		return
	}
	event := model.CompletionEvent{
		JobID:       job.JobID,
		OwnerID:     job.OwnerID,
		Result:      *cached,
		CompletedAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "completion event not delivered", "job_id", job.JobID, "error", err)
	}
}

func (s *PipelineService) emitStage(stage model.Stage, d time.Duration, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	if stage == model.StageComplete && d == 0 {
		result = metrics.ResultCacheHit
	}
	metrics.EmitStageLifecycle(s.metrics, metrics.StageMetric{
		Stage:    string(stage),
		Result:   result,
		Duration: d,
		Err:      err,
	})
}
