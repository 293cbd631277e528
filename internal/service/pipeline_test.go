package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/echofeed/voicepipe/internal/core"
	"github.com/echofeed/voicepipe/internal/data"
	"github.com/echofeed/voicepipe/internal/domain/model"
	apperrors "github.com/echofeed/voicepipe/internal/errors"
	"github.com/echofeed/voicepipe/internal/mocks"
	"github.com/echofeed/voicepipe/internal/testutil"
)

// fakeQueue records enqueued jobs and never delivers any.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []*model.VoiceProcessingJob
}

func (q *fakeQueue) Enqueue(_ context.Context, job *model.VoiceProcessingJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Dequeue(context.Context, time.Duration) (*model.VoiceProcessingJob, error) {
	return nil, nil
}

type pipelineFixture struct {
	transcriber *mocks.MockTranscriptionEngine
	analyzer    *mocks.MockContentAnalyzer
	synthesizer *mocks.MockImageSynthesizer
	store       *recordingStore
	repo        *data.ResultCacheRepo
	publisher   *ChannelPublisher
	queue       *fakeQueue
	svc         *PipelineService
}

func newPipelineFixture(t *testing.T, withQueue bool) *pipelineFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &pipelineFixture{
		transcriber: mocks.NewMockTranscriptionEngine(ctrl),
		analyzer:    mocks.NewMockContentAnalyzer(ctrl),
		synthesizer: mocks.NewMockImageSynthesizer(ctrl),
		store:       newRecordingStore(nil),
		repo:        data.NewResultCacheRepo(testutil.NewMemCacheRepository(), data.ResultCacheConfig{}),
		publisher:   NewChannelPublisher(8, nil),
	}

	tracker, err := NewStatusTracker(StatusTrackerOptions{Store: f.store})
	require.NoError(t, err)

	opts := PipelineServiceOptions{
		Transcriber:     f.transcriber,
		Analyzer:        f.analyzer,
		Synthesizer:     f.synthesizer,
		ResultCache:     f.repo,
		MemoCache:       f.repo,
		Tracker:         tracker,
		Publisher:       f.publisher,
		DescribeContext: func(model.JobMetadata) string { return "recorded in Lisbon" },
		Config: PipelineConfig{
			ImageStyles:  []string{"vivid", "natural", "abstract"},
			InflightPoll: 5 * time.Millisecond,
		},
	}
	if withQueue {
		f.queue = &fakeQueue{}
		opts.Queue = f.queue
	}

	f.svc, err = NewPipelineService(opts)
	require.NoError(t, err)
	return f
}

// stages returns the ordered stage sequence saved for a job.
func (f *pipelineFixture) stages(jobID string) []model.Stage {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []model.Stage
	for _, st := range f.store.saved {
		if st.JobID == jobID {
			out = append(out, st.Stage)
		}
	}
	return out
}

func (f *pipelineFixture) expectHappyTranscribe(text string) {
	f.transcriber.EXPECT().
		Transcribe(gomock.Any(), "blob://audio/job-0001.m4a", "en", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, progress func(float64)) (*model.Transcript, error) {
			progress(0.5)
			progress(1)
			return &model.Transcript{Text: text, Confidence: 0.95}, nil
		})
}

func TestPipelineExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path runs every stage in order", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		job := testutil.NewJob().Build()

		f.expectHappyTranscribe("what a wonderful morning")
		analysis := testutil.Analysis("joyful", "a sunlit meadow")
		f.analyzer.EXPECT().
			Analyze(gomock.Any(), "what a wonderful morning", "recorded in Lisbon").
			Return(analysis, nil)
		for i, style := range []string{"vivid", "natural", "abstract"} {
			f.synthesizer.EXPECT().
				Generate(gomock.Any(), "a sunlit meadow", style, int64(i)).
				Return("blob://images/"+style+".png", nil)
		}

		require.NoError(t, f.svc.Execute(ctx, job))

		final := f.store.last(t)
		assert.Equal(t, model.StageComplete, final.Stage)
		assert.Equal(t, 100, final.Progress)
		require.NotNil(t, final.Result)
		assert.Equal(t, "what a wonderful morning", final.Result.Transcript)
		assert.Equal(t, "joyful", final.Result.Sentiment.Mood)
		assert.Equal(t, "blob://images/vivid.png", final.Result.ImageRef)
		assert.Equal(t, []string{
			"blob://images/vivid.png",
			"blob://images/natural.png",
			"blob://images/abstract.png",
		}, final.Result.ImageRefs)

		stages := f.stages(job.JobID)
		assert.Equal(t, model.StageTranscribing, stages[0])
		assert.Equal(t, model.StageComplete, stages[len(stages)-1])

		// Progress never decreases across the saved sequence.
		f.store.mu.Lock()
		prev := -1
		for _, st := range f.store.saved {
			assert.GreaterOrEqual(t, st.Progress, prev)
			prev = st.Progress
		}
		f.store.mu.Unlock()

		// Completion event emitted exactly once.
		select {
		case ev := <-f.publisher.Events():
			assert.Equal(t, job.JobID, ev.JobID)
			assert.Equal(t, job.OwnerID, ev.OwnerID)
			assert.Equal(t, "what a wonderful morning", ev.Result.Transcript)
		default:
			t.Fatal("expected a completion event")
		}

		// Result memoized under the content fingerprint.
		cached, err := f.repo.Get(ctx, job.ContentFingerprint)
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.Equal(t, "blob://images/vivid.png", cached.ImageRef)

		// The in-flight guard was released with the terminal status.
		held, err := f.repo.Claim(ctx, job.ContentFingerprint, "job-next")
		require.NoError(t, err)
		assert.True(t, held)
	})

	t.Run("one failed image variant is tolerated", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		job := testutil.NewJob().Build()

		f.expectHappyTranscribe("rough day")
		f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testutil.Analysis("somber", "a rainy window"), nil)
		f.synthesizer.EXPECT().Generate(gomock.Any(), "a rainy window", "vivid", int64(0)).
			Return("", apperrors.UpstreamFailure("rate limited"))
		f.synthesizer.EXPECT().Generate(gomock.Any(), "a rainy window", "natural", int64(1)).
			Return("blob://images/natural.png", nil)
		f.synthesizer.EXPECT().Generate(gomock.Any(), "a rainy window", "abstract", int64(2)).
			Return("blob://images/abstract.png", nil)

		require.NoError(t, f.svc.Execute(ctx, job))

		final := f.store.last(t)
		require.Equal(t, model.StageComplete, final.Stage)
		// Canonical is the first success in submission order.
		assert.Equal(t, "blob://images/natural.png", final.Result.ImageRef)
		assert.Equal(t, []string{"blob://images/natural.png", "blob://images/abstract.png"}, final.Result.ImageRefs)
	})

	t.Run("all image variants failing fails the job", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		job := testutil.NewJob().Build()

		f.expectHappyTranscribe("rough day")
		f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testutil.Analysis("somber", "a rainy window"), nil)
		f.synthesizer.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return("", apperrors.UpstreamFailure("rate limited")).Times(3)

		err := f.svc.Execute(ctx, job)
		require.Error(t, err)
		assert.True(t, apperrors.IsGenerationFailed(err))

		final := f.store.last(t)
		require.Equal(t, model.StageError, final.Stage)
		assert.Equal(t, "generating stage failed", final.Message)
		require.NotNil(t, final.Error)
		assert.Equal(t, model.ErrorKindGenerationFailed, final.Error.Kind)
		assert.True(t, final.Error.Retryable)
		assert.Nil(t, final.Result)

		// No completion event on failure.
		select {
		case <-f.publisher.Events():
			t.Fatal("unexpected completion event")
		default:
		}
	})

	t.Run("transcription failure stops the pipeline", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		job := testutil.NewJob().Build()

		f.transcriber.EXPECT().Transcribe(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, apperrors.UpstreamTimeout("transcription did not complete"))

		err := f.svc.Execute(ctx, job)
		require.Error(t, err)
		assert.True(t, apperrors.IsUpstreamTimeout(err))

		final := f.store.last(t)
		assert.Equal(t, model.StageError, final.Stage)
		assert.Equal(t, "transcribing stage failed", final.Message)
		assert.Equal(t, model.ErrorKindUpstreamTimeout, final.Error.Kind)
	})

	t.Run("memoized analysis skips the analyzer", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		job := testutil.NewJob().Build()

		memo := testutil.Analysis("calm", "a quiet lake")
		key := core.AnalysisKey("hello again", "recorded in Lisbon")
		require.NoError(t, f.repo.PutAnalysis(ctx, key, memo))

		f.expectHappyTranscribe("hello again")
		// No Analyze expectation: calling it would fail the controller.
		f.synthesizer.EXPECT().Generate(gomock.Any(), "a quiet lake", gomock.Any(), gomock.Any()).
			Return("blob://images/x.png", nil).Times(3)

		require.NoError(t, f.svc.Execute(ctx, job))
		assert.Equal(t, model.StageComplete, f.store.last(t).Stage)
	})

	t.Run("memoized image variants skip their synthesis calls", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		job := testutil.NewJob().Build()

		require.NoError(t, f.repo.PutImageRef(ctx, core.ImageKey("a quiet lake", "vivid"), "blob://images/memo.png"))

		f.expectHappyTranscribe("hello again")
		f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testutil.Analysis("calm", "a quiet lake"), nil)
		f.synthesizer.EXPECT().Generate(gomock.Any(), "a quiet lake", "natural", int64(1)).
			Return("blob://images/natural.png", nil)
		f.synthesizer.EXPECT().Generate(gomock.Any(), "a quiet lake", "abstract", int64(2)).
			Return("blob://images/abstract.png", nil)

		require.NoError(t, f.svc.Execute(ctx, job))

		final := f.store.last(t)
		assert.Equal(t, "blob://images/memo.png", final.Result.ImageRef)
		assert.Len(t, final.Result.ImageRefs, 3)

		// Memo hits report the same per-variant progress as fresh
		// generations: one stage entry plus one update per style.
		var generating int
		f.store.mu.Lock()
		for _, st := range f.store.saved {
			if st.Stage == model.StageGenerating {
				generating++
			}
		}
		f.store.mu.Unlock()
		assert.Equal(t, 4, generating)
	})

	t.Run("fingerprint held by another process completes from its result", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		job := testutil.NewJob().Build()

		held, err := f.repo.Claim(ctx, job.ContentFingerprint, "peer-process")
		require.NoError(t, err)
		require.True(t, held)

		// No engine expectations: the run must wait for the peer instead of
		// processing the content a second time.
		done := make(chan error, 1)
		go func() { done <- f.svc.Execute(ctx, job) }()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, f.repo.Put(ctx, job.ContentFingerprint, &model.CachedResult{
			Transcript: "from the peer",
			Sentiment:  model.Sentiment{Mood: "calm"},
			ImageRef:   "blob://images/peer.png",
		}))

		require.NoError(t, <-done)
		final := f.store.last(t)
		assert.Equal(t, model.StageComplete, final.Stage)
		assert.Equal(t, "from the peer", final.Result.Transcript)
		assert.Equal(t, "blob://images/peer.png", final.Result.ImageRef)
	})

	t.Run("lapsed claim from a dead process is taken over", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		job := testutil.NewJob().Build()

		held, err := f.repo.Claim(ctx, job.ContentFingerprint, "peer-process")
		require.NoError(t, err)
		require.True(t, held)

		f.expectHappyTranscribe("second attempt")
		f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testutil.Analysis("calm", "a quiet lake"), nil)
		f.synthesizer.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return("blob://images/x.png", nil).Times(3)

		done := make(chan error, 1)
		go func() { done <- f.svc.Execute(ctx, job) }()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, f.repo.Release(ctx, job.ContentFingerprint))

		require.NoError(t, <-done)
		final := f.store.last(t)
		assert.Equal(t, model.StageComplete, final.Stage)
		assert.Equal(t, "second attempt", final.Result.Transcript)
	})

	t.Run("concurrent jobs with one fingerprint coalesce", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		leader := testutil.NewJob().WithJobID("job-leader").Build()
		waiter := testutil.NewJob().WithJobID("job-waiter").Build()

		started := make(chan struct{})
		proceed := make(chan struct{})
		f.transcriber.EXPECT().
			Transcribe(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, string, string, func(float64)) (*model.Transcript, error) {
				close(started)
				<-proceed
				return &model.Transcript{Text: "shared note", Confidence: 0.9}, nil
			})
		f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testutil.Analysis("calm", "a quiet lake"), nil)
		f.synthesizer.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return("blob://images/x.png", nil).Times(3)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.Execute(ctx, leader))
		}()
		<-started
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.Execute(ctx, waiter))
		}()
		time.Sleep(20 * time.Millisecond)
		close(proceed)
		wg.Wait()

		for _, id := range []string{"job-leader", "job-waiter"} {
			got, err := f.store.Load(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, got, id)
			assert.Equal(t, model.StageComplete, got.Stage, id)
			assert.Equal(t, "shared note", got.Result.Transcript, id)
		}

		// Only the leader emits a completion event.
		var events int
		for {
			select {
			case <-f.publisher.Events():
				events++
				continue
			default:
			}
			break
		}
		assert.Equal(t, 1, events)
	})
}

func TestPipelineSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("cached result short-circuits without engine calls", func(t *testing.T) {
		f := newPipelineFixture(t, true)
		job := testutil.NewJob().Build()

		cached := &model.CachedResult{
			Transcript: "hello world",
			Sentiment:  model.Sentiment{Mood: "joyful"},
			ImageRef:   "blob://images/a.png",
		}
		require.NoError(t, f.repo.Put(ctx, job.ContentFingerprint, cached))

		jobID, err := f.svc.Submit(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, job.JobID, jobID)

		final := f.store.last(t)
		assert.Equal(t, model.StageComplete, final.Stage)
		assert.Equal(t, "hello world", final.Result.Transcript)

		// Nothing enqueued and no duplicate completion event.
		assert.Empty(t, f.queue.jobs)
		select {
		case <-f.publisher.Events():
			t.Fatal("cache hits must not re-emit completion events")
		default:
		}
	})

	t.Run("uncached job is enqueued for the runner", func(t *testing.T) {
		f := newPipelineFixture(t, true)
		job := testutil.NewJob().Build()

		jobID, err := f.svc.Submit(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, job.JobID, jobID)

		require.Len(t, f.queue.jobs, 1)
		assert.Equal(t, job.JobID, f.queue.jobs[0].JobID)
		assert.Equal(t, model.StageUploaded, f.store.last(t).Stage)
	})

	t.Run("missing job id is assigned", func(t *testing.T) {
		f := newPipelineFixture(t, true)
		job := testutil.NewJob().WithJobID("").Build()

		jobID, err := f.svc.Submit(ctx, job)
		require.NoError(t, err)
		assert.NotEmpty(t, jobID)
	})

	t.Run("invalid job is rejected as validation", func(t *testing.T) {
		f := newPipelineFixture(t, true)
		job := testutil.NewJob().WithAudioRef("").Build()

		_, err := f.svc.Submit(ctx, job)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
		assert.Empty(t, f.queue.jobs)
	})

	t.Run("without a queue the job runs detached", func(t *testing.T) {
		f := newPipelineFixture(t, false)
		job := testutil.NewJob().Build()

		f.expectHappyTranscribe("detached run")
		f.analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(testutil.Analysis("calm", "a quiet lake"), nil)
		f.synthesizer.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return("blob://images/x.png", nil).Times(3)

		_, err := f.svc.Submit(ctx, job)
		require.NoError(t, err)
		f.svc.Wait()

		status, err := f.svc.GetStatus(ctx, job.JobID)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, model.StageComplete, status.Stage)
	})
}

func TestNewPipelineServiceValidation(t *testing.T) {
	_, err := NewPipelineService(PipelineServiceOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TranscriptionEngine")
}

var _ core.SubmissionQueue = (*fakeQueue)(nil)
